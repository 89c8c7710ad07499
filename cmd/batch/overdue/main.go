package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"go.uber.org/zap"

	"github.com/uma-arai/sbcntr-library/internal/common/config"
	"github.com/uma-arai/sbcntr-library/internal/common/logging"
	"github.com/uma-arai/sbcntr-library/internal/common/utils"
	"github.com/uma-arai/sbcntr-library/internal/service/batch"
)

const (
	projectName = "sbcntr-library-overdue"
)

func main() {
	// コマンドライン引数のパース
	timeout := flag.Duration("timeout", 5*time.Minute, "バッチ処理のタイムアウト時間")
	flag.Parse()

	// 最後の引数として渡されたタスクトークンを取得
	// ENV=LOCALの場合はタスクトークンを取得しない
	taskToken := "DUMMY_TASK_TOKEN"
	if os.Getenv("ENV") != "LOCAL" {
		if flag.NArg() == 0 {
			log.Fatalf("Task token is required")
		}
		taskToken = flag.Arg(flag.NArg() - 1)
	}

	// 設定の読み込み
	cfg, err := config.LoadConfig(taskToken)
	if err != nil {
		log.Fatalf("Failed to load config: %v\nStack trace:\n%s", err, debug.Stack())
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// X-Ray設定
	if cfg.EnableTracing {
		configureTracing(logger)
	}

	// Step Functionsクライアントの初期化
	var sfnClient *sfn.Client
	if !cfg.IsLocal() {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			logger.Fatal("failed to load aws config", zap.Error(err))
		}
		sfnClient = sfn.NewFromConfig(awsCfg)
	}

	// コンテキストの作成
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// X-Rayセグメントの作成
	if cfg.EnableTracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, projectName)
		defer seg.Close(nil)

		if err := seg.AddMetadata("timeout", timeout.String()); err != nil {
			logger.Warn("failed to add timeout metadata", zap.Error(err))
		}
	}

	// サービスの初期化
	var taskNotifier batch.TaskNotifier
	if sfnClient != nil {
		taskNotifier = sfnClient
	}
	service, err := batch.NewOverdueBatchService(ctx, cfg, taskNotifier, logger)
	if err != nil {
		logger.Fatal("failed to create overdue batch service", zap.Error(err))
	}
	defer service.Close()

	// シグナルハンドリングの設定
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// バッチ処理の実行
	errChan := make(chan error, 1)
	go func() {
		errChan <- utils.RunWithTimeout(ctx, *timeout, service.Run)
	}()

	// シグナルまたはエラーの待機
	select {
	case sig := <-sigChan:
		logger.Info("received signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Error("batch process failed", zap.Error(err))

			// ローカル環境以外の場合のみStep Functionsのエラー通知を行う
			if sfnClient != nil {
				input := &sfn.SendTaskFailureInput{
					TaskToken: aws.String(taskToken),
					Error:     aws.String("Overdue batch process failed"),
					Cause:     aws.String(err.Error()),
				}
				if _, err := sfnClient.SendTaskFailure(context.Background(), input); err != nil {
					logger.Error("failed to send task failure", zap.Error(err))
				}
			}

			service.Close()
			os.Exit(1)
		}
		logger.Info("batch process completed successfully")
	}
}

func configureTracing(logger *zap.Logger) {
	if err := xray.Configure(xray.Config{
		DaemonAddr:     "127.0.0.1:2000", // X-Rayデーモンのアドレス
		ServiceVersion: "1.0.0",
	}); err != nil {
		logger.Warn("failed to configure x-ray", zap.Error(err))
		// X-Ray設定失敗時はデフォルトの設定を使用
		if configErr := xray.Configure(xray.Config{}); configErr != nil {
			logger.Fatal("failed to configure default x-ray settings", zap.Error(configErr))
		}
	}
	os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/uma-arai/sbcntr-library/internal/common/config"
	"github.com/uma-arai/sbcntr-library/internal/common/logging"
	"github.com/uma-arai/sbcntr-library/internal/common/utils"
	"github.com/uma-arai/sbcntr-library/internal/model"
	"github.com/uma-arai/sbcntr-library/internal/service/batch"
)

const (
	projectName = "sbcntr-library-notification"
)

func main() {
	// コマンドライン引数のパース
	timeout := flag.Duration("timeout", 5*time.Minute, "バッチ処理のタイムアウト時間")
	flag.Parse()

	// 最後の引数として通知データ(JSON)を受け取る
	if flag.NArg() == 0 {
		log.Fatalf("Notification input is required")
	}
	input := flag.Arg(flag.NArg() - 1)

	// 設定の読み込み
	cfg, err := config.LoadConfig(input)
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

	notifications, err := parseNotifications(input)
	if err != nil {
		logger.Fatal("failed to parse notifications", zap.Error(err))
	}

	// コンテキストを作成
	ctx, cancel := context.WithCancel(context.Background())
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

	// 通知バッチサービスを作成
	service, err := batch.NewNotificationBatchService(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to create notification batch service", zap.Error(err))
	}
	defer service.Close()

	service.SetArgs(notifications)

	// シグナルハンドリング
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// バッチ処理の実行
	errChan := make(chan error, 1)
	go func() {
		errChan <- utils.RunWithTimeout(ctx, *timeout, service.Run)
	}()

	// シグナルを待機
	select {
	case sig := <-sigChan:
		logger.Info("received signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Error("batch process failed", zap.Error(err))
			service.Close()
			os.Exit(1)
		}
		logger.Info("batch process completed successfully")
	}
}

// parseNotifications は期限超過バッチの出力(JSON)から通知データを生成します
func parseNotifications(input string) ([]model.Notification, error) {
	var payload struct {
		Notifications []model.Notification `json:"notifications"`
	}

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal([]byte(input), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse notification input: %w", err)
	}

	return payload.Notifications, nil
}

package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/uma-arai/sbcntr-library/internal/auth"
	"github.com/uma-arai/sbcntr-library/internal/common/config"
	"github.com/uma-arai/sbcntr-library/internal/common/logging"
	"github.com/uma-arai/sbcntr-library/internal/repository"
	"github.com/uma-arai/sbcntr-library/internal/server"
	"github.com/uma-arai/sbcntr-library/internal/service/library"
)

const (
	projectName     = "sbcntr-library"
	shutdownTimeout = 10 * time.Second
)

func main() {
	// 設定の読み込み
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
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
		}
		os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := repository.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open stores", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer stores.Close()

	opts := []library.Option{
		library.WithDefaultLoanPeriod(cfg.Library.DefaultLoanPeriod),
	}
	if stores.Notifications != nil {
		opts = append(opts, library.WithNotifier(
			library.NewRecordingNotifier(stores.Books, stores.Notifications, logger.Named("notifier")),
		))
	}
	svc := library.New(stores.Books, stores.Reservations, logger.Named("library"), opts...)

	directory, err := auth.NewStaticDirectory(auth.DemoCredentials, bcrypt.DefaultCost)
	if err != nil {
		logger.Fatal("failed to create user directory", zap.Error(err))
	}
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	srv := server.New(svc, directory, tokens, logger.Named("http"), server.Options{
		ServiceName:   projectName,
		EnableTracing: cfg.EnableTracing,
		Notifications: stores.Notifications,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(net.JoinHostPort("", cfg.HTTP.Port))
	}()

	logger.Info("library api started",
		zap.String("port", cfg.HTTP.Port),
		zap.String("backend", cfg.Store.Backend),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errChan:
		if err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown http server", zap.Error(err))
	}
}

package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/uma-arai/sbcntr-library/internal/common/database"
)

const (
	// StoreBackendJSON は books.json / reservations.json に保存するバックエンドです
	StoreBackendJSON = "json"
	// StoreBackendPostgres は PostgreSQL に保存するバックエンドです
	StoreBackendPostgres = "postgres"
)

type Config struct {
	Env   string
	DB    database.Config
	Store struct {
		Backend string
		DataDir string
	}
	HTTP struct {
		Port string
	}
	Auth struct {
		JWTSecret string
		TokenTTL  time.Duration
	}
	Library struct {
		DefaultLoanPeriod time.Duration
	}
	SFN struct {
		TaskToken string
	}
	EnableTracing bool
}

// LoadConfig は設定を読み込みます
// taskToken はバッチ実行時に Step Functions から渡されるトークンで、API サーバーでは空です
func LoadConfig(taskToken string) (*Config, error) {
	cfg := &Config{
		Env: os.Getenv("ENV"),
		DB: database.Config{
			Driver:   getEnvOrDefault("DB_DRIVER", database.DriverPostgres),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvAsIntOrDefault("DB_PORT", 5432),
			UserName: getEnvOrDefault("DB_USERNAME", "sbcntrapp"),
			Password: getEnvOrDefault("DB_PASSWORD", "password"),
			DBName:   getEnvOrDefault("DB_NAME", "sbcntrlibrary"),
		},
		EnableTracing: false,
	}

	cfg.Store.Backend = strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreBackendJSON))
	cfg.Store.DataDir = getEnvOrDefault("DATA_DIR", "./data")
	cfg.HTTP.Port = getEnvOrDefault("HTTP_PORT", "3001")
	cfg.Auth.JWTSecret = getEnvOrDefault("JWT_SECRET", "local_dev_secret")
	cfg.Auth.TokenTTL = getEnvAsDurationOrDefault("JWT_TTL", 12*time.Hour)
	cfg.Library.DefaultLoanPeriod = time.Duration(getEnvAsIntOrDefault("DEFAULT_LOAN_DAYS", 14)) * 24 * time.Hour
	cfg.SFN.TaskToken = taskToken

	// 環境変数[SBCNTR_ENABLE_TRACING]を見てトレースを有効にする。対応しているTracingはAWS_XRAYのみ。
	// 環境変数[AWS_XRAY_SDK_DISABLED]がtrueの場合は必ずトレースを無効にする。
	enableKey := os.Getenv("SBCNTR_ENABLE_TRACING")
	if !sdkDisabled() && (strings.ToLower(enableKey) == "true" || enableKey == "1") {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		cfg.EnableTracing = true
	} else {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
		cfg.EnableTracing = false
	}

	return cfg, nil
}

// IsLocal はローカル実行(AWS呼び出しなし)かを返します
func (c *Config) IsLocal() bool {
	return c.Env == "LOCAL"
}

// BooksFile は書籍ドキュメントのパスを返します
func (c *Config) BooksFile() string {
	return filepath.Join(c.Store.DataDir, "books.json")
}

// ReservationsFile は予約ドキュメントのパスを返します
func (c *Config) ReservationsFile() string {
	return filepath.Join(c.Store.DataDir, "reservations.json")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Printf("Environment variable %s is not set, using default value", key)
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Environment variable %s is not a valid duration, using default value", key)
	}
	return defaultValue
}

// Check if SDK is disabled
func sdkDisabled() bool {
	disableKey := os.Getenv("AWS_XRAY_SDK_DISABLED")
	return strings.ToLower(disableKey) == "true"
}

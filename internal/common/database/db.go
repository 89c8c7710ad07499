package database

import (
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	// DriverPostgres は lib/pq ドライバーです
	DriverPostgres = "postgres"
	// DriverPgx は pgx の database/sql ドライバーです
	DriverPgx = "pgx"
)

type DB struct {
	*sqlx.DB
}

type Config struct {
	Driver   string
	Host     string
	Port     int
	UserName string
	Password string
	DBName   string
}

// DSN は接続文字列を返します
// localhostのDBの場合はSSLを無効化します
func (cfg Config) DSN() string {
	var sslModeValue string
	if cfg.Host == "localhost" || os.Getenv("DB_HOST") == "localhost" {
		sslModeValue = "disable"
	} else {
		sslModeValue = "require" // 本番環境ではSSLを有効にする
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.UserName,
		cfg.Password,
		cfg.DBName,
		sslModeValue,
	)
}

func NewDB(cfg Config) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverPostgres
	}
	if driver != DriverPostgres && driver != DriverPgx {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	// X-Ray対応のSQLコンテキストを作成
	db, err := xray.SQLContext(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database with X-Ray: %w", err)
	}

	// コネクションプールの設定
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 接続テスト
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlx のバインド形式は両ドライバーとも $1 形式
	return &DB{sqlx.NewDb(db, DriverPostgres)}, nil
}

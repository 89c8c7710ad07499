package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
)

// DB は X-Ray のサブセグメントを付与する sqlx.DB のラッパーです
type DB struct {
	*sqlx.DB
}

// Close closes the database connection
func (db *DB) Close() error {
	_, seg := xray.BeginSegment(context.Background(), "DB.Close")
	defer seg.Close(nil)

	return db.DB.Close()
}

// BeginTxx starts a new transaction with X-Ray tracing
func (db *DB) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.BeginTx")
	defer seg.Close(nil)

	return db.DB.BeginTxx(ctx, opts)
}

// GetContext wraps sqlx.DB.GetContext with X-Ray tracing
func (db *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.Get")
	if seg == nil {
		return db.DB.GetContext(ctx, dest, query, args...)
	}
	defer seg.Close(nil)

	addQueryMetadata(seg, query)

	if err := db.DB.GetContext(ctx, dest, query, args...); err != nil {
		seg.Close(err)
		return err
	}
	return nil
}

// SelectContext wraps sqlx.DB.SelectContext with X-Ray tracing
func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.Select")
	if seg == nil {
		return db.DB.SelectContext(ctx, dest, query, args...)
	}
	defer seg.Close(nil)

	addQueryMetadata(seg, query)

	if err := db.DB.SelectContext(ctx, dest, query, args...); err != nil {
		seg.Close(err)
		return err
	}
	return nil
}

// ExecContext wraps sqlx.DB.ExecContext with X-Ray tracing
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.Exec")
	if seg == nil {
		return db.DB.ExecContext(ctx, query, args...)
	}
	defer seg.Close(nil)

	addQueryMetadata(seg, query)

	result, err := db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		seg.Close(err)
		return nil, err
	}

	return result, nil
}

// クエリをメタデータとして追加
func addQueryMetadata(seg *xray.Segment, query string) {
	if err := seg.AddMetadata("query", query); err != nil {
		log.Printf("Failed to add query metadata: %v", err)
	}
}

// InTx は fn をトランザクション内で実行します
// fn がエラーを返した場合はロールバックし、元のエラーを返します
func (db *DB) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Printf("rollback failed: %v, original error: %v", rbErr, err)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/uma-arai/sbcntr-library/internal/common/config"
	"github.com/uma-arai/sbcntr-library/internal/common/database"
)

// Stores は設定されたバックエンドの蔵書・予約ストアをまとめたものです
// Notifications は PostgreSQL バックエンドの場合のみ設定されます
type Stores struct {
	Books         BookRepository
	Reservations  ReservationRepository
	Notifications NotificationRepository
	db            *DB
}

// Open は設定に応じてストアを作成します
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendJSON:
		return &Stores{
			Books:        NewBookDocumentRepository(cfg.BooksFile()),
			Reservations: NewReservationDocumentRepository(cfg.ReservationsFile()),
		}, nil

	case config.StoreBackendPostgres:
		conn, err := database.NewDB(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to create database connection: %w", err)
		}

		// database.DBをrepository.DBに変換
		db := &DB{DB: conn.DB}
		if err := EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}

		return &Stores{
			Books:         NewBookRepository(db),
			Reservations:  NewReservationRepository(db),
			Notifications: NewNotificationRepository(db),
			db:            db,
		}, nil
	}

	return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
}

// Close は終了処理を行います
func (s *Stores) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

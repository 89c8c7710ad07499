package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-library/internal/model"
)

// NotificationRepository は利用者向け通知の永続化を担当するインターフェースです
type NotificationRepository interface {
	CreateNotifications(ctx context.Context, records []model.NotificationRecord) error
	GetByUserID(ctx context.Context, userID string) ([]model.NotificationRecord, error)
	UpdateIsRead(ctx context.Context, id int, isRead bool) error
}

// NotificationRepositoryImpl は通知の永続化を担当します
type NotificationRepositoryImpl struct {
	db *DB
}

// NewNotificationRepository は新しいNotificationRepositoryを作成します
func NewNotificationRepository(db *DB) *NotificationRepositoryImpl {
	return &NotificationRepositoryImpl{
		db: db,
	}
}

// CreateNotifications は複数の通知レコードを1トランザクションで作成します
func (r *NotificationRepositoryImpl) CreateNotifications(ctx context.Context, records []model.NotificationRecord) error {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.CreateNotifications")
	defer seg.Close(nil)

	err := r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		for i := range records {
			if err := r.create(ctx, tx, &records[i]); err != nil {
				return fmt.Errorf("failed to create notification: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		seg.Close(err)
		return err
	}

	return nil
}

// create は単一の通知レコードを作成し、採番されたIDを record に設定します
func (r *NotificationRepositoryImpl) create(ctx context.Context, tx *sqlx.Tx, record *model.NotificationRecord) error {
	query := `
		INSERT INTO notifications (
			user_id, title, message, is_read, type, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING id`

	return tx.QueryRowContext(ctx,
		query,
		record.UserID,
		record.Title,
		record.Message,
		record.IsRead,
		string(record.Type),
		record.CreatedAt,
		record.UpdatedAt,
	).Scan(&record.ID)
}

// GetByUserID は指定された利用者の通知を新しい順に取得します
func (r *NotificationRepositoryImpl) GetByUserID(ctx context.Context, userID string) ([]model.NotificationRecord, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.GetByUserID")
	defer seg.Close(nil)

	query := `
		SELECT id, user_id, title, message, is_read, type, created_at, updated_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC`

	records := []model.NotificationRecord{}
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}

	return records, nil
}

// UpdateIsRead は通知の既読状態を更新します
func (r *NotificationRepositoryImpl) UpdateIsRead(ctx context.Context, id int, isRead bool) error {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.UpdateIsRead")
	defer seg.Close(nil)

	query := `
		UPDATE notifications
		SET is_read = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, isRead, id)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to update notification is_read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err := fmt.Errorf("%w: notification %d", model.ErrNotFound, id)
		seg.Close(err)
		return err
	}

	return nil
}

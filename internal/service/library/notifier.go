package library

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"go.uber.org/zap"

	"github.com/uma-arai/sbcntr-library/internal/model"
	"github.com/uma-arai/sbcntr-library/internal/repository"
)

// RecordingNotifier は予約イベントを利用者向けの通知レコードとして保存します
// 承認・却下・期限超過以外のイベントは記録しません
type RecordingNotifier struct {
	books         repository.BookRepository
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

// NewRecordingNotifier は新しいRecordingNotifierを作成します
func NewRecordingNotifier(books repository.BookRepository, notifications repository.NotificationRepository, logger *zap.Logger) *RecordingNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingNotifier{
		books:         books,
		notifications: notifications,
		logger:        logger,
	}
}

// Notify はイベントを通知レコードに変換して保存します
func (n *RecordingNotifier) Notify(ctx context.Context, event model.ReservationEvent) error {
	if !event.IsNotifiable() {
		return nil
	}

	ctx, seg := xray.BeginSubsegment(ctx, "RecordingNotifier.Notify")
	defer seg.Close(nil)

	book, err := n.books.Get(ctx, event.BookID)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to resolve book title for %s: %w", event.BookID, err)
	}

	record, err := model.NewReservationNotification(event).ToNotificationRecord(map[string]string{
		book.ID: book.Title,
	})
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to build notification: %w", err)
	}

	if err := n.notifications.CreateNotifications(ctx, []model.NotificationRecord{*record}); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to store notification: %w", err)
	}

	n.logger.Debug("notification recorded",
		zap.String("user_id", record.UserID),
		zap.String("type", string(record.Type)),
	)
	return nil
}

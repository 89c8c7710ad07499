package batch

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"go.uber.org/zap"

	"github.com/uma-arai/sbcntr-library/internal/common/config"
	"github.com/uma-arai/sbcntr-library/internal/model"
	"github.com/uma-arai/sbcntr-library/internal/repository"
)

// NotificationBatchService は通知バッチ処理を担当します
type NotificationBatchService struct {
	args             []model.Notification
	stores           *repository.Stores
	notificationRepo repository.NotificationRepository
	bookRepo         repository.BookRepository
	cfg              *config.Config
	logger           *zap.Logger
}

// NewNotificationBatchService は新しいNotificationBatchServiceを作成します
// 通知の保存先は PostgreSQL のみです
func NewNotificationBatchService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*NotificationBatchService, error) {
	stores, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}
	if stores.Notifications == nil {
		stores.Close()
		return nil, fmt.Errorf("notification store is not available for backend %q", cfg.Store.Backend)
	}

	return &NotificationBatchService{
		stores:           stores,
		notificationRepo: stores.Notifications,
		bookRepo:         stores.Books,
		cfg:              cfg,
		logger:           logger,
	}, nil
}

// Close は終了処理を行います
func (s *NotificationBatchService) Close() error {
	if s.stores != nil {
		return s.stores.Close()
	}
	return nil
}

// SetArgs は通知バッチ処理の引数を設定します
func (s *NotificationBatchService) SetArgs(args []model.Notification) {
	s.args = args
}

// Run は通知バッチ処理を実行します
func (s *NotificationBatchService) Run(ctx context.Context) error {
	// X-Rayセグメントの作成
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationBatchService.Run")
	defer seg.Close(nil)

	notifications := s.args
	s.logger.Info("starting notification batch process", zap.Int("notification_count", len(notifications)))

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("notification_count", len(notifications)); err != nil {
		s.logger.Warn("failed to add notification_count metadata", zap.Error(err))
	}

	startTime := time.Now()

	// 書名を取得
	bookTitleMap, err := s.getBookTitleMap(ctx, notifications)
	if err != nil {
		seg.Close(err)
		return err
	}

	// 通知をレコードに変換
	records := make([]model.NotificationRecord, len(notifications))
	for i, notification := range notifications {
		record, err := notification.ToNotificationRecord(bookTitleMap)
		if err != nil {
			seg.Close(err)
			return err
		}
		records[i] = *record
	}

	// 通知レコードを作成
	if err := s.notificationRepo.CreateNotifications(ctx, records); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to create notifications: %w", err)
	}

	duration := time.Since(startTime)

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("duration", duration.String()); err != nil {
		s.logger.Warn("failed to add duration metadata", zap.Error(err))
	}
	if err := seg.AddMetadata("book_count", len(bookTitleMap)); err != nil {
		s.logger.Warn("failed to add book_count metadata", zap.Error(err))
	}

	s.logger.Info("notification batch process completed", zap.Duration("duration", duration))
	return nil
}

// 通知データに含まれる書籍IDから書名を取得する
// N+1とならないように先に重複がない書籍IDを取得をしておく
// 1. 重複がない書籍IDを取得
// 2. 書籍IDから書名を取得してMapとして保持する
func (s *NotificationBatchService) getBookTitleMap(ctx context.Context, notifications []model.Notification) (map[string]string, error) {
	// X-Rayセグメントの作成
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationBatchService.getBookTitleMap")
	defer seg.Close(nil)

	bookIDs := make([]string, 0)
	bookTitleMap := make(map[string]string)
	for _, notification := range notifications {
		// 共通通知は書籍を参照しない
		if notification.Type == model.NotificationTypeCommon {
			continue
		}

		data, ok := notification.Data.(map[string]interface{})
		if !ok {
			err := fmt.Errorf("invalid notification data format")
			seg.Close(err)
			return nil, err
		}

		bookID, ok := data["book_id"].(string)
		if !ok {
			err := fmt.Errorf("book_id is not a string")
			seg.Close(err)
			return nil, err
		}

		// 書籍IDが重複している場合はスキップ
		if slices.Contains(bookIDs, bookID) {
			continue
		}

		bookIDs = append(bookIDs, bookID)
	}

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("unique_book_count", len(bookIDs)); err != nil {
		s.logger.Warn("failed to add unique_book_count metadata", zap.Error(err))
	}

	for _, bookID := range bookIDs {
		book, err := s.bookRepo.Get(ctx, bookID)
		if err != nil {
			seg.Close(err)
			return nil, fmt.Errorf("failed to get book %s: %w", bookID, err)
		}
		bookTitleMap[bookID] = book.Title
	}

	return bookTitleMap, nil
}

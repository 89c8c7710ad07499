package batch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/uma-arai/sbcntr-library/internal/common/config"
	"github.com/uma-arai/sbcntr-library/internal/common/utils"
	"github.com/uma-arai/sbcntr-library/internal/model"
	"github.com/uma-arai/sbcntr-library/internal/repository"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TaskNotifier は Step Functions のタスク結果通知を担当するインターフェースです
// *sfn.Client が満たします
type TaskNotifier interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
}

// statusLister はステータスで絞り込んで予約を取得できるストアです
type statusLister interface {
	ListByStatus(ctx context.Context, status model.ReservationStatus) ([]model.Reservation, error)
}

// OverdueBatchService は返却期限を過ぎた貸出を検出するバッチ処理を担当します
type OverdueBatchService struct {
	stores          *repository.Stores
	reservationRepo repository.ReservationRepository
	taskNotifier    TaskNotifier
	cfg             *config.Config
	logger          *zap.Logger
	now             func() time.Time
}

// NewOverdueBatchService は新しいOverdueBatchServiceを作成します
func NewOverdueBatchService(ctx context.Context, cfg *config.Config, taskNotifier TaskNotifier, logger *zap.Logger) (*OverdueBatchService, error) {
	stores, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}

	return &OverdueBatchService{
		stores:          stores,
		reservationRepo: stores.Reservations,
		taskNotifier:    taskNotifier,
		cfg:             cfg,
		logger:          logger,
		now:             time.Now,
	}, nil
}

// Close は終了処理を行います
func (s *OverdueBatchService) Close() error {
	if s.stores != nil {
		return s.stores.Close()
	}
	return nil
}

// Run は返却期限超過の検出バッチ処理を実行します
func (s *OverdueBatchService) Run(ctx context.Context) error {
	// X-Rayセグメントの作成
	ctx, seg := xray.BeginSubsegment(ctx, "OverdueBatchService.Run")
	defer seg.Close(nil)

	startTime := time.Now()

	events, err := s.collectOverdue(ctx)
	if err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to collect overdue reservations: %w", err))
	}

	if err := s.sendTaskSuccess(ctx, events); err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to send task success: %w", err))
	}

	duration := time.Since(startTime)

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("duration", duration.String()); err != nil {
		s.logger.Warn("failed to add duration metadata", zap.Error(err))
	}
	if err := seg.AddMetadata("overdue_count", len(events)); err != nil {
		s.logger.Warn("failed to add overdue_count metadata", zap.Error(err))
	}

	s.logger.Info("overdue batch process completed",
		zap.Int("overdue_count", len(events)),
		zap.Duration("duration", duration),
	)
	return nil
}

// collectOverdue は承認済みで返却期限を過ぎた予約のイベントを作成します
func (s *OverdueBatchService) collectOverdue(ctx context.Context) ([]model.ReservationEvent, error) {
	var (
		reservations []model.Reservation
		err          error
	)
	if lister, ok := s.reservationRepo.(statusLister); ok {
		reservations, err = lister.ListByStatus(ctx, model.StatusApproved)
	} else {
		reservations, err = s.reservationRepo.List(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	now := s.now()
	events := make([]model.ReservationEvent, 0)
	for _, r := range reservations {
		if !r.IsOverdue(now) {
			continue
		}
		s.logger.Info("reservation is overdue",
			zap.String("reservation_id", r.ID),
			zap.String("user_email", r.UserEmail),
			zap.Timep("due_date", r.DueDate),
		)
		events = append(events, model.NewReservationEvent(model.EventOverdue, r, now))
	}

	return events, nil
}

// sendTaskSuccess は、Step Functionsのタスク成功を通知し、期限超過の通知を後続に渡します
func (s *OverdueBatchService) sendTaskSuccess(ctx context.Context, events []model.ReservationEvent) error {
	// ローカルの場合はStep Functionsの処理をスキップ
	if os.Getenv("ENV") == "LOCAL" || s.taskNotifier == nil {
		s.logger.Info("local environment detected, skipping step functions task success notification",
			zap.Int("overdue_count", len(events)))
		return nil
	}

	// イベントを通知形式に変換
	notifications := make([]model.Notification, len(events))
	for i, event := range events {
		notifications[i] = model.NewReservationNotification(event)
	}

	output, err := json.Marshal(map[string]any{
		"notifications": notifications,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notifications: %w", err)
	}

	taskToken := s.cfg.SFN.TaskToken
	if taskToken == "" {
		return fmt.Errorf("SFN_TASK_TOKEN is not set in config")
	}

	_, err = s.taskNotifier.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(taskToken),
		Output:    aws.String(string(output)),
	})
	if err != nil {
		return fmt.Errorf("failed to send task success: %w", err)
	}

	s.logger.Info("sent task success", zap.Int("notification_count", len(notifications)))
	return nil
}

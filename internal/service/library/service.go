// Package library は蔵書カタログと貸出予約のワークフローを提供します
//
// 予約のステータス遷移と書籍の貸出可能数の更新はすべてこのパッケージの Service を経由します。
// 書籍ストアと予約ストアへの書き込みは順に行われ、トランザクションでは結ばれていません。
// 書籍側の書き込み後に予約側の書き込みが失敗した場合、両者は不整合のまま残ります(ログに記録します)。
package library

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uma-arai/sbcntr-library/internal/model"
	"github.com/uma-arai/sbcntr-library/internal/repository"
)

// DefaultLoanPeriod は承認時に返却期限が指定されなかった場合の貸出期間です
const DefaultLoanPeriod = 14 * 24 * time.Hour

// Notifier は予約イベントの通知先です
type Notifier interface {
	Notify(ctx context.Context, event model.ReservationEvent) error
}

// Service は予約ワークフローエンジンです
type Service struct {
	// 更新系の操作は mu で直列化する
	mu sync.Mutex

	books        repository.BookRepository
	reservations repository.ReservationRepository
	notifier     Notifier
	logger       *zap.Logger

	now               func() time.Time
	newID             func() string
	defaultLoanPeriod time.Duration
}

// Option は Service の設定を変更します
type Option func(*Service)

// WithClock は時刻の取得元を差し替えます
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator はIDの採番方法を差し替えます
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// WithDefaultLoanPeriod は返却期限の既定の期間を変更します
func WithDefaultLoanPeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.defaultLoanPeriod = d
		}
	}
}

// WithNotifier は予約イベントの通知先を設定します
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// New は新しいServiceを作成します
func New(books repository.BookRepository, reservations repository.ReservationRepository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		books:             books,
		reservations:      reservations,
		logger:            logger,
		now:               time.Now,
		newID:             uuid.NewString,
		defaultLoanPeriod: DefaultLoanPeriod,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// publish は通知先にイベントを渡します
// 通知の失敗は操作の結果に影響させません
func (s *Service) publish(ctx context.Context, eventType model.ReservationEventType, r model.Reservation) {
	if s.notifier == nil {
		return
	}

	event := model.NewReservationEvent(eventType, r, s.now())
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("failed to notify reservation event",
			zap.String("event", string(eventType)),
			zap.String("reservation_id", r.ID),
			zap.Error(err),
		)
	}
}

package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"go.uber.org/zap"

	"github.com/uma-arai/sbcntr-library/internal/common/config"
	"github.com/uma-arai/sbcntr-library/internal/model"
	"github.com/uma-arai/sbcntr-library/internal/repository"
)

// MockNotificationRepository はテスト用のモックリポジトリです
type MockNotificationRepository struct {
	createNotificationsCalled bool
	createNotificationsError  error
	notifications             []model.NotificationRecord
}

func (m *MockNotificationRepository) CreateNotifications(ctx context.Context, records []model.NotificationRecord) error {
	m.createNotificationsCalled = true
	m.notifications = records
	return m.createNotificationsError
}

func (m *MockNotificationRepository) GetByUserID(ctx context.Context, userID string) ([]model.NotificationRecord, error) {
	return nil, nil
}

func (m *MockNotificationRepository) UpdateIsRead(ctx context.Context, id int, isRead bool) error {
	return nil
}

// MockBookRepository はテスト用のモックリポジトリです
type MockBookRepository struct {
	repository.BookRepository
	getCalls int
	getError error
}

func (m *MockBookRepository) Get(ctx context.Context, id string) (model.Book, error) {
	m.getCalls++
	if m.getError != nil {
		return model.Book{}, m.getError
	}
	return model.Book{ID: id, Title: "TestBook"}, nil
}

// newTestNotificationBatchService はテスト用のNotificationBatchServiceを作成します
func newTestNotificationBatchService(mockNotificationRepo *MockNotificationRepository, mockBookRepo *MockBookRepository) *NotificationBatchService {
	return &NotificationBatchService{
		notificationRepo: mockNotificationRepo,
		bookRepo:         mockBookRepo,
		cfg:              &config.Config{},
		logger:           zap.NewNop(),
	}
}

func TestNotificationBatchService_Run(t *testing.T) {
	// X-Rayのセグメントを設定
	ctx, seg := xray.BeginSegment(context.Background(), "TestNotificationBatchService_Run")
	defer seg.Close(nil)

	now := time.Now().UTC()
	due := now.Add(14 * 24 * time.Hour).Format(time.RFC3339)
	tests := []struct {
		name          string
		notifications []model.Notification
		wantBookCalls int
	}{
		{
			name:          "0件の通知を正常に処理",
			notifications: []model.Notification{},
			wantBookCalls: 0,
		},
		{
			name: "1件の通知を正常に処理",
			notifications: []model.Notification{
				{
					Type:      model.NotificationTypeApproved,
					Data:      map[string]interface{}{"user_id": "user1", "book_id": "book1", "due_date": due},
					CreatedAt: now,
				},
			},
			wantBookCalls: 1,
		},
		{
			name: "同じ書籍の通知は書名を1回だけ取得する",
			notifications: []model.Notification{
				{
					Type:      model.NotificationTypeOverdue,
					Data:      map[string]interface{}{"user_id": "user1", "book_id": "book1", "due_date": due},
					CreatedAt: now,
				},
				{
					Type:      model.NotificationTypeRejected,
					Data:      map[string]interface{}{"user_id": "user2", "book_id": "book1"},
					CreatedAt: now,
				},
			},
			wantBookCalls: 1,
		},
		{
			name: "共通通知は書籍を参照しない",
			notifications: []model.Notification{
				{
					Type:      model.NotificationTypeCommon,
					Data:      map[string]interface{}{"user_id": "user1"},
					CreatedAt: now,
				},
			},
			wantBookCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockNotificationRepo := &MockNotificationRepository{}
			mockBookRepo := &MockBookRepository{}

			service := newTestNotificationBatchService(mockNotificationRepo, mockBookRepo)
			service.SetArgs(tt.notifications)
			if err := service.Run(ctx); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if !mockNotificationRepo.createNotificationsCalled {
				t.Error("CreateNotifications was not called")
			}

			if len(mockNotificationRepo.notifications) != len(tt.notifications) {
				t.Errorf("Expected %d notifications, got %d", len(tt.notifications), len(mockNotificationRepo.notifications))
			}

			if mockBookRepo.getCalls != tt.wantBookCalls {
				t.Errorf("Expected %d book lookups, got %d", tt.wantBookCalls, mockBookRepo.getCalls)
			}
		})
	}
}

func TestNotificationBatchService_RunErrors(t *testing.T) {
	// X-Rayのセグメントを設定
	ctx, seg := xray.BeginSegment(context.Background(), "TestNotificationBatchService_RunErrors")
	defer seg.Close(nil)

	now := time.Now().UTC()
	rejected := []model.Notification{
		{
			Type:      model.NotificationTypeRejected,
			Data:      map[string]interface{}{"user_id": "user1", "book_id": "book1"},
			CreatedAt: now,
		},
	}

	tests := []struct {
		name          string
		notifications []model.Notification
		bookErr       error
		createErr     error
		wantCreate    bool
	}{
		{
			name:          "書籍が存在しない",
			notifications: rejected,
			bookErr:       model.ErrNotFound,
			wantCreate:    false,
		},
		{
			name:          "通知の保存に失敗",
			notifications: rejected,
			createErr:     errors.New("connection refused"),
			wantCreate:    true,
		},
		{
			name: "書籍IDが文字列でない",
			notifications: []model.Notification{
				{
					Type:      model.NotificationTypeRejected,
					Data:      map[string]interface{}{"user_id": "user1", "book_id": 1},
					CreatedAt: now,
				},
			},
			wantCreate: false,
		},
		{
			name: "承認通知に返却期限がない",
			notifications: []model.Notification{
				{
					Type:      model.NotificationTypeApproved,
					Data:      map[string]interface{}{"user_id": "user1", "book_id": "book1"},
					CreatedAt: now,
				},
			},
			wantCreate: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockNotificationRepo := &MockNotificationRepository{createNotificationsError: tt.createErr}
			mockBookRepo := &MockBookRepository{getError: tt.bookErr}

			service := newTestNotificationBatchService(mockNotificationRepo, mockBookRepo)
			service.SetArgs(tt.notifications)
			if err := service.Run(ctx); err == nil {
				t.Fatal("Run() error = nil, want error")
			}

			if mockNotificationRepo.createNotificationsCalled != tt.wantCreate {
				t.Errorf("CreateNotifications called = %v, want %v", mockNotificationRepo.createNotificationsCalled, tt.wantCreate)
			}
		})
	}
}

package model

import (
	"fmt"
	"time"
)

// NotificationType は通知の種類を表します
type NotificationType string

const (
	// NotificationTypeApproved は予約承認の通知を表します
	NotificationTypeApproved NotificationType = "reservation_approved"
	// NotificationTypeRejected は予約却下の通知を表します
	NotificationTypeRejected NotificationType = "reservation_rejected"
	// NotificationTypeOverdue は返却期限超過の通知を表します
	NotificationTypeOverdue NotificationType = "reservation_overdue"
	// NotificationTypeCommon は共通の通知を表します
	NotificationTypeCommon NotificationType = "common"
)

// Notification はイベントIFを受け取るための定義です
// アプリケーションサービス層で利用されます
type Notification struct {
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"created_at"`
	Data      interface{}      `json:"data"`
}

// NotificationRecord は通知のドメインモデルです
// データベースに永続化される通知レコードと今回は一致しています
type NotificationRecord struct {
	ID        int              `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"userId"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	IsRead    bool             `db:"is_read" json:"isRead"`
	Type      NotificationType `db:"type" json:"type"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time        `db:"updated_at" json:"updatedAt"`
}

// notificationTitles は通知種別ごとのタイトルです
var notificationTitles = map[NotificationType]string{
	NotificationTypeApproved: "予約が承認されました",
	NotificationTypeRejected: "予約が却下されました",
	NotificationTypeOverdue:  "返却期限を過ぎています",
}

// ToNotificationRecord は通知を通知レコードに変換します
// bookTitleMap は書籍IDから書名を引くためのMapです
func (n Notification) ToNotificationRecord(bookTitleMap map[string]string) (*NotificationRecord, error) {
	data, ok := n.Data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid notification data format")
	}

	userID, ok := data["user_id"].(string)
	if !ok {
		return nil, fmt.Errorf("user_id is not a string")
	}

	title, isReservation := notificationTitles[n.Type]
	if !isReservation {
		return &NotificationRecord{
			UserID:    userID,
			Title:     "新しい通知が届きました。",
			Message:   "新しい通知です。",
			IsRead:    false,
			Type:      NotificationTypeCommon,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.CreatedAt,
		}, nil
	}

	bookID, _ := data["book_id"].(string)
	bookTitle, ok := bookTitleMap[bookID]
	if !ok {
		return nil, fmt.Errorf("book_id not found in bookTitleMap")
	}

	message := fmt.Sprintf("%s\n書名: %s", title, bookTitle)
	if n.Type != NotificationTypeRejected {
		// 期限は JSON を経由すると文字列になる
		var dueDate time.Time
		switch v := data["due_date"].(type) {
		case time.Time:
			dueDate = v
		case *time.Time:
			if v == nil {
				return nil, fmt.Errorf("due_date is required for %s", n.Type)
			}
			dueDate = *v
		case string:
			parsedTime, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("invalid due_date format: %v", err)
			}
			dueDate = parsedTime
		default:
			return nil, fmt.Errorf("unexpected type for due_date: %T", v)
		}
		message += fmt.Sprintf("\n返却期限: %s", dueDate.Format("2006-01-02"))
	}

	return &NotificationRecord{
		UserID:    userID,
		Title:     title,
		Message:   message,
		IsRead:    false,
		Type:      n.Type,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.CreatedAt,
	}, nil
}

// NewReservationNotification は予約イベントから通知を作成します
// 通知対象外のイベントは共通通知になります
func NewReservationNotification(event ReservationEvent) Notification {
	notificationType := NotificationTypeCommon
	switch event.Type {
	case EventApproved:
		notificationType = NotificationTypeApproved
	case EventRejected:
		notificationType = NotificationTypeRejected
	case EventOverdue:
		notificationType = NotificationTypeOverdue
	}

	data := map[string]interface{}{
		"user_id":        event.UserEmail,
		"book_id":        event.BookID,
		"reservation_id": event.ReservationID,
	}
	if event.DueDate != nil {
		data["due_date"] = *event.DueDate
	}

	return Notification{
		Type:      notificationType,
		CreatedAt: event.CreatedAt,
		Data:      data,
	}
}

// IsNotifiable は利用者への通知対象となるイベントかを返します
func (e ReservationEvent) IsNotifiable() bool {
	switch e.Type {
	case EventApproved, EventRejected, EventOverdue:
		return true
	}
	return false
}

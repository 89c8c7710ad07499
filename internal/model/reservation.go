package model

import (
	"fmt"
	"time"
)

// ReservationStatus は予約のステータスです
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusApproved  ReservationStatus = "approved"
	StatusRejected  ReservationStatus = "rejected"
	StatusCompleted ReservationStatus = "completed"
	StatusReturned  ReservationStatus = "returned"
)

const (
	// MinReservationPeriod と MaxReservationPeriod は予約期間(日数)の許容範囲です
	MinReservationPeriod = 1
	MaxReservationPeriod = 30
)

// transitions は各ステータスから遷移可能なステータスです
var transitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusCompleted, StatusReturned},
}

// IsActive は重複予約チェックの対象となるステータスかを返します
func (s ReservationStatus) IsActive() bool {
	return s == StatusPending || s == StatusApproved
}

// IsTerminal はこれ以上遷移できないステータスかを返します
func (s ReservationStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusReturned
}

// CanTransitionTo は s から next への遷移が許可されているかを返します
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reservation は書籍の貸出予約です
// BookTitle は予約時点の書名のスナップショットで、書籍側の変更には追従しません
type Reservation struct {
	ID                string            `json:"id" db:"id"`
	BookID            string            `json:"bookId" db:"book_id"`
	UserEmail         string            `json:"userEmail" db:"user_email"`
	UserName          string            `json:"userName" db:"user_name"`
	BookTitle         string            `json:"bookTitle" db:"book_title"`
	RequestDate       time.Time         `json:"requestDate" db:"request_date"`
	Status            ReservationStatus `json:"status" db:"status"`
	ReservationPeriod int               `json:"reservationPeriod" db:"reservation_period"`
	ApprovedBy        string            `json:"approvedBy,omitempty" db:"approved_by"`
	ApprovedDate      *time.Time        `json:"approvedDate,omitempty" db:"approved_date"`
	DueDate           *time.Time        `json:"dueDate,omitempty" db:"due_date"`
	RejectedBy        string            `json:"rejectedBy,omitempty" db:"rejected_by"`
	RejectedDate      *time.Time        `json:"rejectedDate,omitempty" db:"rejected_date"`
	Notes             string            `json:"notes,omitempty" db:"notes"`
	CompletedDate     *time.Time        `json:"completedDate,omitempty" db:"completed_date"`
	ReturnedDate      *time.Time        `json:"returnedDate,omitempty" db:"returned_date"`
}

// CheckTransition は現在のステータスから next へ遷移できるかを検証します
func (r Reservation) CheckTransition(next ReservationStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: reservation %s is %s, cannot become %s", ErrInvalidState, r.ID, r.Status, next)
	}
	return nil
}

func (r *Reservation) transition(next ReservationStatus) error {
	if err := r.CheckTransition(next); err != nil {
		return err
	}
	r.Status = next
	return nil
}

// Approve は pending の予約を承認します
func (r *Reservation) Approve(by string, at, due time.Time) error {
	if err := r.transition(StatusApproved); err != nil {
		return err
	}
	r.ApprovedBy = by
	r.ApprovedDate = &at
	r.DueDate = &due
	return nil
}

// Reject は pending の予約を却下します
func (r *Reservation) Reject(by, notes string, at time.Time) error {
	if err := r.transition(StatusRejected); err != nil {
		return err
	}
	r.RejectedBy = by
	r.RejectedDate = &at
	r.Notes = notes
	return nil
}

// Complete は承認済みの予約を完了にします
func (r *Reservation) Complete(at time.Time) error {
	if err := r.transition(StatusCompleted); err != nil {
		return err
	}
	r.CompletedDate = &at
	return nil
}

// Return は承認済みの予約を返却済みにします
func (r *Reservation) Return(at time.Time) error {
	if err := r.transition(StatusReturned); err != nil {
		return err
	}
	r.ReturnedDate = &at
	return nil
}

// IsOverdue は承認済みで返却期限を過ぎているかを返します
func (r Reservation) IsOverdue(now time.Time) bool {
	return r.Status == StatusApproved && r.DueDate != nil && r.DueDate.Before(now)
}

// ReservationEventType は予約イベントの種類です
type ReservationEventType string

const (
	EventCreated   ReservationEventType = "created"
	EventApproved  ReservationEventType = "approved"
	EventRejected  ReservationEventType = "rejected"
	EventCompleted ReservationEventType = "completed"
	EventReturned  ReservationEventType = "returned"
	EventRemoved   ReservationEventType = "removed"
	EventOverdue   ReservationEventType = "overdue"
)

// ReservationEvent は予約のステータス変化時に発行されるイベントの構造体
type ReservationEvent struct {
	Type          ReservationEventType `json:"type"`
	ReservationID string               `json:"reservation_id"`
	UserEmail     string               `json:"user_email"`
	BookID        string               `json:"book_id"`
	DueDate       *time.Time           `json:"due_date,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// NewReservationEvent は予約の現在の状態からイベントを作成します
func NewReservationEvent(t ReservationEventType, r Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:          t,
		ReservationID: r.ID,
		UserEmail:     r.UserEmail,
		BookID:        r.BookID,
		DueDate:       r.DueDate,
		CreatedAt:     at,
	}
}

package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/uma-arai/sbcntr-library/internal/model"
)

// CreateReservationInput は予約作成時の入力です
type CreateReservationInput struct {
	BookID            string
	UserEmail         string
	UserName          string
	ReservationPeriod int
}

// CreateReservation は pending の予約を作成します
// 書籍の貸出可能数はこの時点では変更しません
func (s *Service) CreateReservation(ctx context.Context, in CreateReservationInput) (model.Reservation, error) {
	bookID := strings.TrimSpace(in.BookID)
	email := strings.TrimSpace(in.UserEmail)
	name := strings.TrimSpace(in.UserName)
	if bookID == "" || email == "" || name == "" {
		return model.Reservation{}, fmt.Errorf("%w: bookId, userEmail and userName are required", model.ErrInvalidArgument)
	}
	if in.ReservationPeriod < model.MinReservationPeriod || in.ReservationPeriod > model.MaxReservationPeriod {
		return model.Reservation{}, fmt.Errorf("%w: reservationPeriod must be between %d and %d days",
			model.ErrInvalidArgument, model.MinReservationPeriod, model.MaxReservationPeriod)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	book, err := s.books.Get(ctx, bookID)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("failed to get book %s: %w", bookID, err)
	}
	if !book.IsReservable() {
		return model.Reservation{}, fmt.Errorf("%w: book %s is not available for reservation", model.ErrConflict, bookID)
	}

	existing, err := s.reservations.ListByUser(ctx, email)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("failed to list reservations for %s: %w", email, err)
	}
	for _, r := range existing {
		if r.BookID == bookID && r.Status.IsActive() {
			return model.Reservation{}, fmt.Errorf("%w: user %s already has an active reservation %s for book %s",
				model.ErrConflict, email, r.ID, bookID)
		}
	}

	created, err := s.reservations.Add(ctx, model.Reservation{
		ID:                s.newID(),
		BookID:            bookID,
		UserEmail:         email,
		UserName:          name,
		BookTitle:         book.Title,
		RequestDate:       s.now(),
		Status:            model.StatusPending,
		ReservationPeriod: in.ReservationPeriod,
	})
	if err != nil {
		s.logWriteFailure("create", "", bookID, err)
		return model.Reservation{}, fmt.Errorf("failed to add reservation: %w", err)
	}

	s.logger.Info("reservation created",
		zap.String("reservation_id", created.ID),
		zap.String("book_id", bookID),
		zap.String("user_email", email),
	)
	s.publish(ctx, model.EventCreated, created)

	return created, nil
}

// ApproveReservation は pending の予約を承認し、書籍の貸出可能数を1減らします
// dueDate が nil の場合は承認日時から既定の貸出期間後を返却期限にします
func (s *Service) ApproveReservation(ctx context.Context, id, approvedBy string, dueDate *time.Time) (model.Reservation, error) {
	approvedBy = strings.TrimSpace(approvedBy)
	if approvedBy == "" {
		return model.Reservation{}, fmt.Errorf("%w: approvedBy is required", model.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getForTransition(ctx, id, model.StatusApproved)
	if err != nil {
		return model.Reservation{}, err
	}

	now := s.now()
	due := now.Add(s.defaultLoanPeriod)
	if dueDate != nil {
		due = *dueDate
	}

	if err := s.adjustCopies(ctx, current, (*model.Book).CheckOut); err != nil {
		return model.Reservation{}, err
	}

	updated, err := s.reservations.Update(ctx, id, func(r *model.Reservation) error {
		return r.Approve(approvedBy, now, due)
	})
	if err != nil {
		s.logDivergence(current, "approve", err)
		return model.Reservation{}, fmt.Errorf("failed to approve reservation %s: %w", id, err)
	}

	s.logger.Info("reservation approved",
		zap.String("reservation_id", id),
		zap.String("approved_by", approvedBy),
		zap.Time("due_date", due),
	)
	s.publish(ctx, model.EventApproved, updated)

	return updated, nil
}

// RejectReservation は pending の予約を却下します
func (s *Service) RejectReservation(ctx context.Context, id, rejectedBy, notes string) (model.Reservation, error) {
	rejectedBy = strings.TrimSpace(rejectedBy)
	if rejectedBy == "" {
		return model.Reservation{}, fmt.Errorf("%w: rejectedBy is required", model.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getForTransition(ctx, id, model.StatusRejected); err != nil {
		return model.Reservation{}, err
	}

	now := s.now()
	updated, err := s.reservations.Update(ctx, id, func(r *model.Reservation) error {
		return r.Reject(rejectedBy, strings.TrimSpace(notes), now)
	})
	if err != nil {
		s.logWriteFailure("reject", id, "", err)
		return model.Reservation{}, fmt.Errorf("failed to reject reservation %s: %w", id, err)
	}

	s.logger.Info("reservation rejected",
		zap.String("reservation_id", id),
		zap.String("rejected_by", rejectedBy),
	)
	s.publish(ctx, model.EventRejected, updated)

	return updated, nil
}

// CompleteReservation は承認済みの予約を完了にし、書籍の貸出可能数を1増やします
func (s *Service) CompleteReservation(ctx context.Context, id string) (model.Reservation, error) {
	return s.checkIn(ctx, id, model.StatusCompleted, model.EventCompleted, (*model.Reservation).Complete)
}

// ReturnReservation は承認済みの予約を返却済みにし、書籍の貸出可能数を1増やします
func (s *Service) ReturnReservation(ctx context.Context, id string) (model.Reservation, error) {
	return s.checkIn(ctx, id, model.StatusReturned, model.EventReturned, (*model.Reservation).Return)
}

// RemoveReservation は予約を削除します
// 承認済みの予約を削除した場合は書籍の貸出可能数を1増やします
func (s *Service) RemoveReservation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.reservations.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get reservation %s: %w", id, err)
	}

	if current.Status == model.StatusApproved {
		if err := s.adjustCopies(ctx, current, (*model.Book).CheckIn); err != nil {
			return err
		}
	}

	removed, err := s.reservations.Remove(ctx, id)
	if err != nil {
		if current.Status == model.StatusApproved {
			s.logDivergence(current, "remove", err)
		} else {
			s.logWriteFailure("remove", id, current.BookID, err)
		}
		return fmt.Errorf("failed to remove reservation %s: %w", id, err)
	}
	if !removed {
		return fmt.Errorf("reservation %s: %w", id, model.ErrNotFound)
	}

	s.logger.Info("reservation removed",
		zap.String("reservation_id", id),
		zap.String("status", string(current.Status)),
	)
	s.publish(ctx, model.EventRemoved, current)

	return nil
}

// ListReservations は全予約を作成順に返します
func (s *Service) ListReservations(ctx context.Context) ([]model.Reservation, error) {
	reservations, err := s.reservations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

// ListReservationsForUser は利用者の予約を作成順に返します
func (s *Service) ListReservationsForUser(ctx context.Context, email string) ([]model.Reservation, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: userEmail is required", model.ErrInvalidArgument)
	}

	reservations, err := s.reservations.ListByUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations for %s: %w", email, err)
	}
	return reservations, nil
}

// checkIn は approved からの遷移(完了・返却)を行います
func (s *Service) checkIn(
	ctx context.Context,
	id string,
	next model.ReservationStatus,
	eventType model.ReservationEventType,
	apply func(*model.Reservation, time.Time) error,
) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getForTransition(ctx, id, next)
	if err != nil {
		return model.Reservation{}, err
	}

	if err := s.adjustCopies(ctx, current, (*model.Book).CheckIn); err != nil {
		return model.Reservation{}, err
	}

	now := s.now()
	updated, err := s.reservations.Update(ctx, id, func(r *model.Reservation) error {
		return apply(r, now)
	})
	if err != nil {
		s.logDivergence(current, string(next), err)
		return model.Reservation{}, fmt.Errorf("failed to mark reservation %s as %s: %w", id, next, err)
	}

	s.logger.Info("reservation checked in",
		zap.String("reservation_id", id),
		zap.String("status", string(next)),
	)
	s.publish(ctx, eventType, updated)

	return updated, nil
}

// getForTransition は予約を取得し、next へ遷移できることを確認します
// 書籍側を更新する前に呼び出し、不正な遷移では何も変更しません
func (s *Service) getForTransition(ctx context.Context, id string, next model.ReservationStatus) (model.Reservation, error) {
	if strings.TrimSpace(id) == "" {
		return model.Reservation{}, fmt.Errorf("%w: reservation id is required", model.ErrInvalidArgument)
	}

	current, err := s.reservations.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("failed to get reservation %s: %w", id, err)
	}
	if err := current.CheckTransition(next); err != nil {
		return model.Reservation{}, err
	}
	return current, nil
}

// adjustCopies は予約対象の書籍の貸出可能数を更新します
// 書籍が既に存在しない場合は警告を出して更新を省略します
func (s *Service) adjustCopies(ctx context.Context, r model.Reservation, adjust func(*model.Book)) error {
	_, err := s.books.Update(ctx, r.BookID, func(b *model.Book) error {
		adjust(b)
		return nil
	})
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Warn("book for reservation no longer exists, skipping copy adjustment",
			zap.String("reservation_id", r.ID),
			zap.String("book_id", r.BookID),
		)
		return nil
	}
	if err != nil {
		s.logWriteFailure("adjust copies", r.ID, r.BookID, err)
		return fmt.Errorf("failed to update book %s: %w", r.BookID, err)
	}
	return nil
}

// logWriteFailure はストアへの書き込み失敗を記録します
func (s *Service) logWriteFailure(op, reservationID, bookID string, err error) {
	s.logger.Error("store write failed",
		zap.String("operation", op),
		zap.String("reservation_id", reservationID),
		zap.String("book_id", bookID),
		zap.Error(err),
	)
}

// logDivergence は書籍の更新後に予約の更新が失敗したことを記録します
func (s *Service) logDivergence(r model.Reservation, op string, err error) {
	s.logger.Error("book copies were updated but the reservation write failed",
		zap.String("operation", op),
		zap.String("reservation_id", r.ID),
		zap.String("book_id", r.BookID),
		zap.Error(err),
	)
}

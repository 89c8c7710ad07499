package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/uma-arai/sbcntr-library/internal/model"
)

// ReservationDocumentRepository は reservations.json に予約を保存する ReservationRepository の実装です
type ReservationDocumentRepository struct {
	doc *document[model.Reservation]
}

// NewReservationDocumentRepository は新しいReservationDocumentRepositoryを作成します
func NewReservationDocumentRepository(path string) *ReservationDocumentRepository {
	return &ReservationDocumentRepository{doc: newDocument[model.Reservation](path)}
}

// Add は予約を末尾に追加します
func (r *ReservationDocumentRepository) Add(ctx context.Context, reservation model.Reservation) (model.Reservation, error) {
	err := r.doc.modify(ctx, func(reservations []model.Reservation) ([]model.Reservation, error) {
		for _, existing := range reservations {
			if existing.ID == reservation.ID {
				return nil, fmt.Errorf("%w: reservation %s already exists", model.ErrConflict, reservation.ID)
			}
		}
		return append(reservations, reservation), nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return reservation, nil
}

// Get は指定されたIDの予約を取得します
func (r *ReservationDocumentRepository) Get(ctx context.Context, id string) (model.Reservation, error) {
	var found model.Reservation
	err := r.doc.view(ctx, func(reservations []model.Reservation) error {
		for _, existing := range reservations {
			if existing.ID == id {
				found = existing
				return nil
			}
		}
		return fmt.Errorf("%w: reservation %s", model.ErrNotFound, id)
	})
	return found, err
}

// List は作成順に全予約を返します
func (r *ReservationDocumentRepository) List(ctx context.Context) ([]model.Reservation, error) {
	var out []model.Reservation
	err := r.doc.view(ctx, func(reservations []model.Reservation) error {
		out = reservations
		return nil
	})
	return out, err
}

// ListByUser は指定された利用者の予約を作成順に返します
func (r *ReservationDocumentRepository) ListByUser(ctx context.Context, email string) ([]model.Reservation, error) {
	out := []model.Reservation{}
	err := r.doc.view(ctx, func(reservations []model.Reservation) error {
		for _, existing := range reservations {
			if existing.UserEmail == email {
				out = append(out, existing)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update は予約を読み込み、mutate を適用して保存します
func (r *ReservationDocumentRepository) Update(ctx context.Context, id string, mutate ReservationMutator) (model.Reservation, error) {
	var updated model.Reservation
	err := r.doc.modify(ctx, func(reservations []model.Reservation) ([]model.Reservation, error) {
		for i := range reservations {
			if reservations[i].ID != id {
				continue
			}
			res := reservations[i]
			if err := mutate(&res); err != nil {
				return nil, err
			}
			res.ID = id
			reservations[i] = res
			updated = res
			return reservations, nil
		}
		return nil, fmt.Errorf("%w: reservation %s", model.ErrNotFound, id)
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return updated, nil
}

// Remove は予約を削除し、存在していたかを返します
func (r *ReservationDocumentRepository) Remove(ctx context.Context, id string) (bool, error) {
	removed := false
	err := r.doc.modify(ctx, func(reservations []model.Reservation) ([]model.Reservation, error) {
		filtered := slices.DeleteFunc(reservations, func(existing model.Reservation) bool {
			return existing.ID == id
		})
		removed = len(filtered) != len(reservations)
		return filtered, nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

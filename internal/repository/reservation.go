package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-library/internal/model"
)

const reservationsTable = "reservations"

var reservationColumns = []interface{}{
	"id", "book_id", "user_email", "user_name", "book_title", "request_date", "status", "reservation_period",
	"approved_by", "approved_date", "due_date", "rejected_by", "rejected_date", "notes", "completed_date", "returned_date",
}

// ReservationRepositoryImpl は PostgreSQL に予約を保存する ReservationRepository の実装です
type ReservationRepositoryImpl struct {
	db *DB
}

// NewReservationRepository は新しいReservationRepositoryImplを作成します
func NewReservationRepository(db *DB) *ReservationRepositoryImpl {
	return &ReservationRepositoryImpl{db: db}
}

// Add は予約を作成します
func (r *ReservationRepositoryImpl) Add(ctx context.Context, reservation model.Reservation) (model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.Add")
	defer seg.Close(nil)

	record := reservationRecord(reservation)
	record["id"] = reservation.ID
	record["book_id"] = reservation.BookID
	record["user_email"] = reservation.UserEmail
	record["user_name"] = reservation.UserName
	record["book_title"] = reservation.BookTitle
	record["request_date"] = reservation.RequestDate
	record["reservation_period"] = reservation.ReservationPeriod

	query, args, err := dialect.Insert(reservationsTable).
		Rows(record).
		OnConflict(goqu.DoNothing()).
		Prepared(true).
		ToSQL()
	if err != nil {
		seg.Close(err)
		return model.Reservation{}, fmt.Errorf("failed to build insert reservation query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		seg.Close(err)
		return model.Reservation{}, fmt.Errorf("failed to create reservation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return model.Reservation{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.Reservation{}, fmt.Errorf("%w: reservation %s already exists", model.ErrConflict, reservation.ID)
	}

	return reservation, nil
}

// Get は指定されたIDの予約を取得します
func (r *ReservationRepositoryImpl) Get(ctx context.Context, id string) (model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.Get")
	defer seg.Close(nil)

	query, args, err := dialect.From(reservationsTable).
		Select(reservationColumns...).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		seg.Close(err)
		return model.Reservation{}, fmt.Errorf("failed to build select reservation query: %w", err)
	}

	var reservation model.Reservation
	if err := r.db.GetContext(ctx, &reservation, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, fmt.Errorf("%w: reservation %s", model.ErrNotFound, id)
		}
		seg.Close(err)
		return model.Reservation{}, fmt.Errorf("failed to get reservation: %w", err)
	}

	return reservation, nil
}

// List は作成順に全予約を返します
func (r *ReservationRepositoryImpl) List(ctx context.Context) ([]model.Reservation, error) {
	return r.list(ctx, "ReservationRepository.List", nil)
}

// ListByUser は指定された利用者の予約を作成順に返します
func (r *ReservationRepositoryImpl) ListByUser(ctx context.Context, email string) ([]model.Reservation, error) {
	return r.list(ctx, "ReservationRepository.ListByUser", goqu.C("user_email").Eq(email))
}

// ListByStatus は指定されたステータスの予約を作成順に返します
func (r *ReservationRepositoryImpl) ListByStatus(ctx context.Context, status model.ReservationStatus) ([]model.Reservation, error) {
	return r.list(ctx, "ReservationRepository.ListByStatus", goqu.C("status").Eq(string(status)))
}

func (r *ReservationRepositoryImpl) list(ctx context.Context, name string, where exp.Expression) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, name)
	defer seg.Close(nil)

	ds := dialect.From(reservationsTable).
		Select(reservationColumns...).
		Order(goqu.C("seq").Asc())
	if where != nil {
		ds = ds.Where(where)
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to build list reservations query: %w", err)
	}

	reservations := []model.Reservation{}
	if err := r.db.SelectContext(ctx, &reservations, query, args...); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}

	return reservations, nil
}

// Update は行ロックを取得した予約に mutate を適用して保存します
func (r *ReservationRepositoryImpl) Update(ctx context.Context, id string, mutate ReservationMutator) (model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.Update")
	defer seg.Close(nil)

	var updated model.Reservation
	err := r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := dialect.From(reservationsTable).
			Select(reservationColumns...).
			Where(goqu.C("id").Eq(id)).
			ForUpdate(exp.Wait).
			Prepared(true).
			ToSQL()
		if err != nil {
			return fmt.Errorf("failed to build select reservation query: %w", err)
		}

		var reservation model.Reservation
		if err := tx.GetContext(ctx, &reservation, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: reservation %s", model.ErrNotFound, id)
			}
			return fmt.Errorf("failed to lock reservation: %w", err)
		}

		if err := mutate(&reservation); err != nil {
			return err
		}
		reservation.ID = id

		query, args, err = dialect.Update(reservationsTable).
			Set(reservationRecord(reservation)).
			Where(goqu.C("id").Eq(id)).
			Prepared(true).
			ToSQL()
		if err != nil {
			return fmt.Errorf("failed to build update reservation query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update reservation: %w", err)
		}

		updated = reservation
		return nil
	})
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) && !errors.Is(err, model.ErrInvalidState) {
			seg.Close(err)
		}
		return model.Reservation{}, err
	}

	return updated, nil
}

// Remove は予約を削除し、存在していたかを返します
func (r *ReservationRepositoryImpl) Remove(ctx context.Context, id string) (bool, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.Remove")
	defer seg.Close(nil)

	query, args, err := dialect.Delete(reservationsTable).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		seg.Close(err)
		return false, fmt.Errorf("failed to build delete reservation query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		seg.Close(err)
		return false, fmt.Errorf("failed to delete reservation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// reservationRecord はステータス遷移で変化する列を返します
func reservationRecord(r model.Reservation) goqu.Record {
	return goqu.Record{
		"status":         string(r.Status),
		"approved_by":    r.ApprovedBy,
		"approved_date":  r.ApprovedDate,
		"due_date":       r.DueDate,
		"rejected_by":    r.RejectedBy,
		"rejected_date":  r.RejectedDate,
		"notes":          r.Notes,
		"completed_date": r.CompletedDate,
		"returned_date":  r.ReturnedDate,
	}
}

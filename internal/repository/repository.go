package repository

import (
	"context"

	"github.com/uma-arai/sbcntr-library/internal/model"
)

// BookMutator は Update 内で書籍を書き換える関数です
// エラーを返した場合は何も保存されません
type BookMutator func(book *model.Book) error

// ReservationMutator は Update 内で予約を書き換える関数です
// エラーを返した場合は何も保存されません
type ReservationMutator func(reservation *model.Reservation) error

// BookRepository は蔵書(カタログ)の永続化を担当するインターフェースです
type BookRepository interface {
	Add(ctx context.Context, book model.Book) (model.Book, error)
	Get(ctx context.Context, id string) (model.Book, error)
	List(ctx context.Context) ([]model.Book, error)
	Update(ctx context.Context, id string, mutate BookMutator) (model.Book, error)
}

// ReservationRepository は予約の永続化を担当するインターフェースです
type ReservationRepository interface {
	Add(ctx context.Context, reservation model.Reservation) (model.Reservation, error)
	Get(ctx context.Context, id string) (model.Reservation, error)
	List(ctx context.Context) ([]model.Reservation, error)
	ListByUser(ctx context.Context, email string) ([]model.Reservation, error)
	Update(ctx context.Context, id string, mutate ReservationMutator) (model.Reservation, error)
	Remove(ctx context.Context, id string) (bool, error)
}

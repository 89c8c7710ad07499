package library

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/uma-arai/sbcntr-library/internal/model"
	"github.com/uma-arai/sbcntr-library/internal/repository"
)

var testNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

// fakeNotifier は受け取ったイベントを保持します
type fakeNotifier struct {
	mu     sync.Mutex
	events []model.ReservationEvent
	err    error
}

func (n *fakeNotifier) Notify(_ context.Context, event model.ReservationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *fakeNotifier) types() []model.ReservationEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]model.ReservationEventType, len(n.events))
	for i, e := range n.events {
		types[i] = e.Type
	}
	return types
}

type fixture struct {
	svc          *Service
	books        *repository.BookDocumentRepository
	reservations *repository.ReservationDocumentRepository
	notifier     *fakeNotifier
	logs         *observer.ObservedLogs
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	dir := t.TempDir()
	core, logs := observer.New(zap.DebugLevel)

	f := &fixture{
		books:        repository.NewBookDocumentRepository(filepath.Join(dir, "books.json")),
		reservations: repository.NewReservationDocumentRepository(filepath.Join(dir, "reservations.json")),
		notifier:     &fakeNotifier{},
		logs:         logs,
	}

	seq := 0
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
		WithNotifier(f.notifier),
	}
	f.svc = New(f.books, f.reservations, zap.New(core), append(base, opts...)...)
	return f
}

func (f *fixture) seedBook(t *testing.T, id string, total, available int) {
	t.Helper()
	_, err := f.books.Add(context.Background(), model.Book{
		ID:              id,
		Title:           "Book " + id,
		Author:          "Author",
		Year:            2000,
		Available:       available > 0,
		TotalCopies:     total,
		AvailableCopies: available,
	})
	require.NoError(t, err)
}

func (f *fixture) book(t *testing.T, id string) model.Book {
	t.Helper()
	b, err := f.books.Get(context.Background(), id)
	require.NoError(t, err)
	return b
}

func (f *fixture) create(t *testing.T, bookID, email string) model.Reservation {
	t.Helper()
	r, err := f.svc.CreateReservation(context.Background(), CreateReservationInput{
		BookID:            bookID,
		UserEmail:         email,
		UserName:          "User " + email,
		ReservationPeriod: 14,
	})
	require.NoError(t, err)
	return r
}

func TestService_ReservationLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedBook(t, "b1", 1, 1)

	// 予約作成
	r := f.create(t, "b1", "alice@example.com")
	assert.Equal(t, model.StatusPending, r.Status)
	assert.Equal(t, "Book b1", r.BookTitle)
	assert.True(t, testNow.Equal(r.RequestDate))
	assert.Equal(t, 1, f.book(t, "b1").AvailableCopies, "作成時点では貸出可能数は変わらない")

	// 同一利用者・同一書籍の重複予約
	_, err := f.svc.CreateReservation(ctx, CreateReservationInput{
		BookID: "b1", UserEmail: "alice@example.com", UserName: "Alice", ReservationPeriod: 7,
	})
	assert.ErrorIs(t, err, model.ErrConflict)

	// 承認(返却期限は既定の14日後)
	approved, err := f.svc.ApproveReservation(ctx, r.ID, "lib1", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
	assert.Equal(t, "lib1", approved.ApprovedBy)
	require.NotNil(t, approved.DueDate)
	assert.True(t, testNow.Add(14*24*time.Hour).Equal(*approved.DueDate))

	b := f.book(t, "b1")
	assert.Equal(t, 0, b.AvailableCopies)
	assert.False(t, b.Available)

	// 貸出不可の書籍への予約
	_, err = f.svc.CreateReservation(ctx, CreateReservationInput{
		BookID: "b1", UserEmail: "bob@example.com", UserName: "Bob", ReservationPeriod: 7,
	})
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.Contains(t, err.Error(), "not available")

	// 完了
	completed, err := f.svc.CompleteReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedDate)

	b = f.book(t, "b1")
	assert.Equal(t, 1, b.AvailableCopies)
	assert.True(t, b.Available)

	assert.Equal(t, []model.ReservationEventType{
		model.EventCreated, model.EventApproved, model.EventCompleted,
	}, f.notifier.types())
}

func TestService_ApproveWithExplicitDueDate(t *testing.T) {
	f := newFixture(t)
	f.seedBook(t, "b1", 2, 2)
	r := f.create(t, "b1", "alice@example.com")

	due := testNow.Add(3 * 24 * time.Hour)
	approved, err := f.svc.ApproveReservation(context.Background(), r.ID, "lib1", &due)
	require.NoError(t, err)
	require.NotNil(t, approved.DueDate)
	assert.True(t, due.Equal(*approved.DueDate))
	assert.Equal(t, 1, f.book(t, "b1").AvailableCopies)
	assert.True(t, f.book(t, "b1").Available)
}

func TestService_DefaultLoanPeriodOption(t *testing.T) {
	f := newFixture(t, WithDefaultLoanPeriod(7*24*time.Hour))
	f.seedBook(t, "b1", 1, 1)
	r := f.create(t, "b1", "alice@example.com")

	approved, err := f.svc.ApproveReservation(context.Background(), r.ID, "lib1", nil)
	require.NoError(t, err)
	assert.True(t, testNow.Add(7*24*time.Hour).Equal(*approved.DueDate))
}

func TestService_RejectLeavesCopiesUnchanged(t *testing.T) {
	f := newFixture(t)
	f.seedBook(t, "b1", 3, 3)
	r := f.create(t, "b1", "alice@example.com")

	rejected, err := f.svc.RejectReservation(context.Background(), r.ID, "lib1", "  damaged copy ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)
	assert.Equal(t, "lib1", rejected.RejectedBy)
	assert.Equal(t, "damaged copy", rejected.Notes)
	require.NotNil(t, rejected.RejectedDate)
	assert.Equal(t, 3, f.book(t, "b1").AvailableCopies)

	// 却下後は同じ書籍を再度予約できる
	f.create(t, "b1", "alice@example.com")
}

func TestService_ReturnRestoresCopies(t *testing.T) {
	f := newFixture(t)
	f.seedBook(t, "b1", 2, 2)
	r := f.create(t, "b1", "alice@example.com")

	_, err := f.svc.ApproveReservation(context.Background(), r.ID, "lib1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.book(t, "b1").AvailableCopies)

	returned, err := f.svc.ReturnReservation(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedDate)
	assert.Equal(t, 2, f.book(t, "b1").AvailableCopies)
}

func TestService_RemoveReservation(t *testing.T) {
	ctx := context.Background()

	t.Run("承認済みの予約を削除すると貸出可能数が戻る", func(t *testing.T) {
		f := newFixture(t)
		f.seedBook(t, "b1", 1, 1)
		r := f.create(t, "b1", "alice@example.com")
		_, err := f.svc.ApproveReservation(ctx, r.ID, "lib1", nil)
		require.NoError(t, err)

		require.NoError(t, f.svc.RemoveReservation(ctx, r.ID))

		_, err = f.reservations.Get(ctx, r.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
		b := f.book(t, "b1")
		assert.Equal(t, 1, b.AvailableCopies)
		assert.True(t, b.Available)
		assert.Contains(t, f.notifier.types(), model.EventRemoved)
	})

	t.Run("pendingの予約を削除しても貸出可能数は変わらない", func(t *testing.T) {
		f := newFixture(t)
		f.seedBook(t, "b1", 1, 1)
		r := f.create(t, "b1", "alice@example.com")

		require.NoError(t, f.svc.RemoveReservation(ctx, r.ID))
		assert.Equal(t, 1, f.book(t, "b1").AvailableCopies)
	})

	t.Run("不整合な状態では上限を超えて増加する", func(t *testing.T) {
		f := newFixture(t)
		f.seedBook(t, "b1", 1, 1)
		r := f.create(t, "b1", "alice@example.com")
		_, err := f.svc.ApproveReservation(ctx, r.ID, "lib1", nil)
		require.NoError(t, err)

		// 承認済みのまま書籍側だけ戻された状態
		_, err = f.books.Update(ctx, "b1", func(b *model.Book) error {
			b.CheckIn()
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, f.svc.RemoveReservation(ctx, r.ID))
		assert.Equal(t, 2, f.book(t, "b1").AvailableCopies)
	})

	t.Run("存在しない予約", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.RemoveReservation(ctx, "missing")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestService_InvalidTransitionsDoNotMutate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		setup  func(t *testing.T, f *fixture, id string)
		action func(f *fixture, id string) error
	}{
		{
			name: "pendingの予約は完了できない",
			action: func(f *fixture, id string) error {
				_, err := f.svc.CompleteReservation(ctx, id)
				return err
			},
		},
		{
			name: "pendingの予約は返却できない",
			action: func(f *fixture, id string) error {
				_, err := f.svc.ReturnReservation(ctx, id)
				return err
			},
		},
		{
			name: "承認済みの予約は再承認できない",
			setup: func(t *testing.T, f *fixture, id string) {
				_, err := f.svc.ApproveReservation(ctx, id, "lib1", nil)
				require.NoError(t, err)
			},
			action: func(f *fixture, id string) error {
				_, err := f.svc.ApproveReservation(ctx, id, "lib2", nil)
				return err
			},
		},
		{
			name: "承認済みの予約は却下できない",
			setup: func(t *testing.T, f *fixture, id string) {
				_, err := f.svc.ApproveReservation(ctx, id, "lib1", nil)
				require.NoError(t, err)
			},
			action: func(f *fixture, id string) error {
				_, err := f.svc.RejectReservation(ctx, id, "lib2", "")
				return err
			},
		},
		{
			name: "完了済みの予約は返却できない",
			setup: func(t *testing.T, f *fixture, id string) {
				_, err := f.svc.ApproveReservation(ctx, id, "lib1", nil)
				require.NoError(t, err)
				_, err = f.svc.CompleteReservation(ctx, id)
				require.NoError(t, err)
			},
			action: func(f *fixture, id string) error {
				_, err := f.svc.ReturnReservation(ctx, id)
				return err
			},
		},
		{
			name: "却下済みの予約は承認できない",
			setup: func(t *testing.T, f *fixture, id string) {
				_, err := f.svc.RejectReservation(ctx, id, "lib1", "")
				require.NoError(t, err)
			},
			action: func(f *fixture, id string) error {
				_, err := f.svc.ApproveReservation(ctx, id, "lib1", nil)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedBook(t, "b1", 2, 2)
			r := f.create(t, "b1", "alice@example.com")
			if tt.setup != nil {
				tt.setup(t, f, r.ID)
			}

			bookBefore := f.book(t, "b1")
			reservationBefore, err := f.reservations.Get(ctx, r.ID)
			require.NoError(t, err)
			eventsBefore := len(f.notifier.types())

			err = tt.action(f, r.ID)
			assert.ErrorIs(t, err, model.ErrInvalidState)

			assert.Equal(t, bookBefore, f.book(t, "b1"))
			reservationAfter, err := f.reservations.Get(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, reservationBefore, reservationAfter)
			assert.Len(t, f.notifier.types(), eventsBefore)
		})
	}
}

func TestService_CreateReservationValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateReservationInput
		wantErr error
	}{
		{
			name:    "書籍IDが空",
			input:   CreateReservationInput{UserEmail: "a@example.com", UserName: "A", ReservationPeriod: 7},
			wantErr: model.ErrInvalidArgument,
		},
		{
			name:    "メールアドレスが空白のみ",
			input:   CreateReservationInput{BookID: "b1", UserEmail: "  ", UserName: "A", ReservationPeriod: 7},
			wantErr: model.ErrInvalidArgument,
		},
		{
			name:    "利用者名が空",
			input:   CreateReservationInput{BookID: "b1", UserEmail: "a@example.com", ReservationPeriod: 7},
			wantErr: model.ErrInvalidArgument,
		},
		{
			name:    "予約期間が0日",
			input:   CreateReservationInput{BookID: "b1", UserEmail: "a@example.com", UserName: "A", ReservationPeriod: 0},
			wantErr: model.ErrInvalidArgument,
		},
		{
			name:    "予約期間が31日",
			input:   CreateReservationInput{BookID: "b1", UserEmail: "a@example.com", UserName: "A", ReservationPeriod: 31},
			wantErr: model.ErrInvalidArgument,
		},
		{
			name:    "存在しない書籍",
			input:   CreateReservationInput{BookID: "missing", UserEmail: "a@example.com", UserName: "A", ReservationPeriod: 7},
			wantErr: model.ErrNotFound,
		},
		{
			name:    "貸出可能数が0の書籍",
			input:   CreateReservationInput{BookID: "b0", UserEmail: "a@example.com", UserName: "A", ReservationPeriod: 7},
			wantErr: model.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedBook(t, "b1", 1, 1)
			f.seedBook(t, "b0", 1, 0)

			_, err := f.svc.CreateReservation(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)

			all, err := f.reservations.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestService_CreateReservationPeriodBounds(t *testing.T) {
	f := newFixture(t)
	f.seedBook(t, "b1", 5, 5)

	for i, period := range []int{model.MinReservationPeriod, model.MaxReservationPeriod} {
		r, err := f.svc.CreateReservation(context.Background(), CreateReservationInput{
			BookID:            "b1",
			UserEmail:         fmt.Sprintf("user%d@example.com", i),
			UserName:          "User",
			ReservationPeriod: period,
		})
		require.NoError(t, err)
		assert.Equal(t, period, r.ReservationPeriod)
	}
}

func TestService_TransitionArgumentValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedBook(t, "b1", 1, 1)
	r := f.create(t, "b1", "alice@example.com")

	_, err := f.svc.ApproveReservation(ctx, r.ID, " ", nil)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = f.svc.RejectReservation(ctx, r.ID, "", "notes")
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = f.svc.ApproveReservation(ctx, "missing", "lib1", nil)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.svc.CompleteReservation(ctx, "")
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	assert.Equal(t, 1, f.book(t, "b1").AvailableCopies)
}

func TestService_MissingBookSkipsCopyAdjustment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// 書籍が削除された後に残った予約
	_, err := f.reservations.Add(ctx, model.Reservation{
		ID:                "orphan",
		BookID:            "gone",
		UserEmail:         "alice@example.com",
		UserName:          "Alice",
		BookTitle:         "Gone",
		RequestDate:       testNow,
		Status:            model.StatusPending,
		ReservationPeriod: 7,
	})
	require.NoError(t, err)

	approved, err := f.svc.ApproveReservation(ctx, "orphan", "lib1", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)

	returned, err := f.svc.ReturnReservation(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReturned, returned.Status)

	assert.Equal(t, 2, f.logs.FilterMessage("book for reservation no longer exists, skipping copy adjustment").Len())
}

func TestService_AtMostOneActiveReservationPerUserAndBook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedBook(t, "b1", 3, 3)

	r := f.create(t, "b1", "alice@example.com")
	_, err := f.svc.ApproveReservation(ctx, r.ID, "lib1", nil)
	require.NoError(t, err)

	// 承認済みも重複とみなす
	_, err = f.svc.CreateReservation(ctx, CreateReservationInput{
		BookID: "b1", UserEmail: "alice@example.com", UserName: "Alice", ReservationPeriod: 7,
	})
	assert.ErrorIs(t, err, model.ErrConflict)

	// 別の利用者は予約できる
	f.create(t, "b1", "bob@example.com")

	_, err = f.svc.ReturnReservation(ctx, r.ID)
	require.NoError(t, err)

	// 返却後は再度予約できる
	f.create(t, "b1", "alice@example.com")

	mine, err := f.svc.ListReservationsForUser(ctx, "alice@example.com")
	require.NoError(t, err)
	active := 0
	for _, m := range mine {
		if m.Status.IsActive() {
			active++
		}
	}
	assert.Equal(t, 1, active)
	assert.Len(t, mine, 2)
}

func TestService_ConcurrentApprovalsKeepCopiesInRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedBook(t, "b1", 3, 3)

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, f.create(t, "b1", fmt.Sprintf("user%d@example.com", i)).ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.ApproveReservation(ctx, id, "lib1", nil)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	b := f.book(t, "b1")
	assert.Equal(t, 0, b.AvailableCopies)
	assert.False(t, b.Available)

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.CompleteReservation(ctx, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	b = f.book(t, "b1")
	assert.Equal(t, 3, b.AvailableCopies)
	assert.True(t, b.Available)
}

func TestService_NotifierErrorDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("queue unavailable")
	f.seedBook(t, "b1", 1, 1)

	r := f.create(t, "b1", "alice@example.com")
	_, err := f.svc.ApproveReservation(context.Background(), r.ID, "lib1", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, f.logs.FilterMessage("failed to notify reservation event").Len())
}

// failingReservations は Update を失敗させる ReservationRepository です
type failingReservations struct {
	repository.ReservationRepository
	updateErr error
}

func (r *failingReservations) Update(context.Context, string, repository.ReservationMutator) (model.Reservation, error) {
	return model.Reservation{}, r.updateErr
}

func TestService_ReservationWriteFailureAfterBookWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedBook(t, "b1", 1, 1)
	r := f.create(t, "b1", "alice@example.com")

	storeErr := errors.New("disk full")
	core, logs := observer.New(zap.ErrorLevel)
	svc := New(f.books, &failingReservations{ReservationRepository: f.reservations, updateErr: storeErr}, zap.New(core),
		WithClock(func() time.Time { return testNow }))

	_, err := svc.ApproveReservation(ctx, r.ID, "lib1", nil)
	assert.ErrorIs(t, err, storeErr)

	// 書籍側の書き込みは取り消されない
	assert.Equal(t, 0, f.book(t, "b1").AvailableCopies)
	stored, err := f.reservations.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Equal(t, 1, logs.FilterMessage("book copies were updated but the reservation write failed").Len())
}

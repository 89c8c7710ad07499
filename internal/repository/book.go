package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-library/internal/model"
)

const booksTable = "books"

var (
	dialect = goqu.Dialect("postgres")

	bookColumns = []interface{}{
		"id", "title", "author", "year", "date_added", "image_url", "description", "genre",
		"isbn", "pages", "publisher", "language", "available", "total_copies", "available_copies", "location",
	}
)

// BookRepositoryImpl は PostgreSQL に蔵書を保存する BookRepository の実装です
type BookRepositoryImpl struct {
	db *DB
}

// NewBookRepository は新しいBookRepositoryImplを作成します
func NewBookRepository(db *DB) *BookRepositoryImpl {
	return &BookRepositoryImpl{db: db}
}

// Add は書籍を登録します
func (r *BookRepositoryImpl) Add(ctx context.Context, book model.Book) (model.Book, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookRepository.Add")
	defer seg.Close(nil)

	query, args, err := dialect.Insert(booksTable).
		Rows(goqu.Record{
			"id":               book.ID,
			"title":            book.Title,
			"author":           book.Author,
			"year":             book.Year,
			"date_added":       book.DateAdded,
			"image_url":        book.ImageURL,
			"description":      book.Description,
			"genre":            book.Genre,
			"isbn":             book.ISBN,
			"pages":            book.Pages,
			"publisher":        book.Publisher,
			"language":         book.Language,
			"available":        book.Available,
			"total_copies":     book.TotalCopies,
			"available_copies": book.AvailableCopies,
			"location":         book.Location,
		}).
		OnConflict(goqu.DoNothing()).
		Prepared(true).
		ToSQL()
	if err != nil {
		seg.Close(err)
		return model.Book{}, fmt.Errorf("failed to build insert book query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		seg.Close(err)
		return model.Book{}, fmt.Errorf("failed to insert book: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return model.Book{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.Book{}, fmt.Errorf("%w: book %s already exists", model.ErrConflict, book.ID)
	}

	return book, nil
}

// Get は指定されたIDの書籍を取得します
func (r *BookRepositoryImpl) Get(ctx context.Context, id string) (model.Book, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookRepository.Get")
	defer seg.Close(nil)

	query, args, err := dialect.From(booksTable).
		Select(bookColumns...).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		seg.Close(err)
		return model.Book{}, fmt.Errorf("failed to build select book query: %w", err)
	}

	var book model.Book
	if err := r.db.GetContext(ctx, &book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, fmt.Errorf("%w: book %s", model.ErrNotFound, id)
		}
		seg.Close(err)
		return model.Book{}, fmt.Errorf("failed to get book: %w", err)
	}

	return book, nil
}

// List は登録順に全書籍を返します
func (r *BookRepositoryImpl) List(ctx context.Context) ([]model.Book, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookRepository.List")
	defer seg.Close(nil)

	query, args, err := dialect.From(booksTable).
		Select(bookColumns...).
		Order(goqu.C("seq").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to build list books query: %w", err)
	}

	books := []model.Book{}
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	return books, nil
}

// Update は行ロックを取得した書籍に mutate を適用し、貸出可能数を保存します
// 書誌情報は更新対象外です
func (r *BookRepositoryImpl) Update(ctx context.Context, id string, mutate BookMutator) (model.Book, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookRepository.Update")
	defer seg.Close(nil)

	var updated model.Book
	err := r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := dialect.From(booksTable).
			Select(bookColumns...).
			Where(goqu.C("id").Eq(id)).
			ForUpdate(exp.Wait).
			Prepared(true).
			ToSQL()
		if err != nil {
			return fmt.Errorf("failed to build select book query: %w", err)
		}

		var book model.Book
		if err := tx.GetContext(ctx, &book, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: book %s", model.ErrNotFound, id)
			}
			return fmt.Errorf("failed to lock book: %w", err)
		}

		if err := mutate(&book); err != nil {
			return err
		}
		book.ID = id

		query, args, err = dialect.Update(booksTable).
			Set(goqu.Record{
				"available":        book.Available,
				"available_copies": book.AvailableCopies,
			}).
			Where(goqu.C("id").Eq(id)).
			Prepared(true).
			ToSQL()
		if err != nil {
			return fmt.Errorf("failed to build update book query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update book: %w", err)
		}

		updated = book
		return nil
	})
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			seg.Close(err)
		}
		return model.Book{}, err
	}

	return updated, nil
}

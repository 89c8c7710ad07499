package repository

import (
	"context"
	"fmt"

	"github.com/uma-arai/sbcntr-library/internal/model"
)

// BookDocumentRepository は books.json に蔵書を保存する BookRepository の実装です
type BookDocumentRepository struct {
	doc *document[model.Book]
}

// NewBookDocumentRepository は新しいBookDocumentRepositoryを作成します
func NewBookDocumentRepository(path string) *BookDocumentRepository {
	return &BookDocumentRepository{doc: newDocument[model.Book](path)}
}

// Add は書籍を末尾に追加します
func (r *BookDocumentRepository) Add(ctx context.Context, book model.Book) (model.Book, error) {
	err := r.doc.modify(ctx, func(books []model.Book) ([]model.Book, error) {
		for _, b := range books {
			if b.ID == book.ID {
				return nil, fmt.Errorf("%w: book %s already exists", model.ErrConflict, book.ID)
			}
		}
		return append(books, book), nil
	})
	if err != nil {
		return model.Book{}, err
	}
	return book, nil
}

// Get は指定されたIDの書籍を取得します
func (r *BookDocumentRepository) Get(ctx context.Context, id string) (model.Book, error) {
	var found model.Book
	err := r.doc.view(ctx, func(books []model.Book) error {
		for _, b := range books {
			if b.ID == id {
				found = b
				return nil
			}
		}
		return fmt.Errorf("%w: book %s", model.ErrNotFound, id)
	})
	return found, err
}

// List は登録順に全書籍を返します
func (r *BookDocumentRepository) List(ctx context.Context) ([]model.Book, error) {
	var out []model.Book
	err := r.doc.view(ctx, func(books []model.Book) error {
		out = books
		return nil
	})
	return out, err
}

// Update は書籍を読み込み、mutate を適用して保存します
func (r *BookDocumentRepository) Update(ctx context.Context, id string, mutate BookMutator) (model.Book, error) {
	var updated model.Book
	err := r.doc.modify(ctx, func(books []model.Book) ([]model.Book, error) {
		for i := range books {
			if books[i].ID != id {
				continue
			}
			b := books[i]
			if err := mutate(&b); err != nil {
				return nil, err
			}
			b.ID = id
			books[i] = b
			updated = b
			return books, nil
		}
		return nil, fmt.Errorf("%w: book %s", model.ErrNotFound, id)
	})
	if err != nil {
		return model.Book{}, err
	}
	return updated, nil
}

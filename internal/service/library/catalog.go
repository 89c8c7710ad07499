package library

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/uma-arai/sbcntr-library/internal/model"
)

// BookInput は蔵書登録時の入力です
type BookInput struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author" validate:"required"`
	Year        int    `json:"year" validate:"required"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	ISBN        string `json:"isbn"`
	Pages       int    `json:"pages" validate:"gte=0"`
	Publisher   string `json:"publisher"`
	Language    string `json:"language"`
	ImageURL    string `json:"imageUrl"`
	TotalCopies int    `json:"totalCopies" validate:"gte=0"`
}

// AddBook は蔵書を登録します
// ID と登録日はサービス側で採番します
func (s *Service) AddBook(ctx context.Context, in BookInput) (model.Book, error) {
	book, err := s.newBook(in)
	if err != nil {
		return model.Book{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.books.Add(ctx, book)
	if err != nil {
		return model.Book{}, fmt.Errorf("failed to add book: %w", err)
	}

	s.logger.Info("book added",
		zap.String("book_id", created.ID),
		zap.String("title", created.Title),
		zap.Int("total_copies", created.TotalCopies),
	)

	return created, nil
}

// GetBook は蔵書を1件取得します
func (s *Service) GetBook(ctx context.Context, id string) (model.Book, error) {
	if strings.TrimSpace(id) == "" {
		return model.Book{}, fmt.Errorf("%w: book id is required", model.ErrInvalidArgument)
	}

	book, err := s.books.Get(ctx, id)
	if err != nil {
		return model.Book{}, fmt.Errorf("failed to get book %s: %w", id, err)
	}
	return book, nil
}

// ListBooks は登録順に全蔵書を返します
func (s *Service) ListBooks(ctx context.Context) ([]model.Book, error) {
	books, err := s.books.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

func (s *Service) newBook(in BookInput) (model.Book, error) {
	title := strings.TrimSpace(in.Title)
	author := strings.TrimSpace(in.Author)
	if title == "" || author == "" {
		return model.Book{}, fmt.Errorf("%w: title and author are required", model.ErrInvalidArgument)
	}

	now := s.now()
	if in.Year < 1 || in.Year > now.Year() {
		return model.Book{}, fmt.Errorf("%w: year must be between 1 and %d", model.ErrInvalidArgument, now.Year())
	}
	if in.Pages < 0 {
		return model.Book{}, fmt.Errorf("%w: pages must not be negative", model.ErrInvalidArgument)
	}

	copies := in.TotalCopies
	switch {
	case copies < 0:
		return model.Book{}, fmt.Errorf("%w: totalCopies must not be negative", model.ErrInvalidArgument)
	case copies == 0:
		copies = 1
	}

	id := s.newID()
	return model.Book{
		ID:              id,
		Title:           title,
		Author:          author,
		Year:            in.Year,
		DateAdded:       now,
		ImageURL:        orDefault(in.ImageURL, model.DefaultImageURL),
		Description:     strings.TrimSpace(in.Description),
		Genre:           orDefault(in.Genre, model.DefaultGenre),
		ISBN:            strings.TrimSpace(in.ISBN),
		Pages:           in.Pages,
		Publisher:       strings.TrimSpace(in.Publisher),
		Language:        orDefault(in.Language, model.DefaultLanguage),
		Available:       true,
		TotalCopies:     copies,
		AvailableCopies: copies,
		Location:        shelfLocation(id),
	}, nil
}

// shelfLocation は自動採番の配架場所を返します(IDの末尾3文字)
func shelfLocation(id string) string {
	if len(id) > 3 {
		id = id[len(id)-3:]
	}
	return "AUTO-" + id
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

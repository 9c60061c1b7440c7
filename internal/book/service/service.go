// Package service provides the book accessor: validation rules layered over a BookStore.
package service

import (
	"context"
	"fmt"
	"math"

	perrors "github.com/abgdnv/library/internal/book/errors"
	"github.com/abgdnv/library/internal/book/store"
	"github.com/go-playground/validator/v10"
)

// BookService defines the methods for managing book records.
type BookService interface {
	// InsertMany adds all given books and returns them with assigned identifiers.
	// Returns ErrInvalidArgument if the batch is empty or a book misses a required field.
	InsertMany(ctx context.Context, books []BookCreateDto) ([]BookDto, error)

	// Create adds a single book.
	Create(ctx context.Context, book BookCreateDto) (*BookDto, error)

	// GetAll returns every book in store order.
	GetAll(ctx context.Context) ([]BookDto, error)

	// GetByCategory returns books whose category equals category exactly.
	GetByCategory(ctx context.Context, category string) ([]BookDto, error)

	// GetByYearAfter returns books with publishedYear > year.
	GetByYearAfter(ctx context.Context, year int) ([]BookDto, error)

	// GetByID retrieves a single book.
	// Returns ErrBookNotFound if no book exists with the given ID.
	GetByID(ctx context.Context, id string) (*BookDto, error)

	// UpdateCopies adds delta to the available copies.
	// Returns ErrInvalidArgument for a non-integer delta, ErrBookNotFound for an unknown ID
	// and ErrInvalidState if the result would be negative.
	UpdateCopies(ctx context.Context, id string, delta float64) (*BookDto, error)

	// UpdateCategory overwrites the category.
	// Returns ErrBookNotFound if no book exists with the given ID.
	UpdateCategory(ctx context.Context, id string, category string) (*BookDto, error)

	// DeleteIfOutOfStock deletes a book with no available copies and returns it.
	// Returns ErrBookNotFound for an unknown ID and ErrInvalidState if copies remain.
	DeleteIfOutOfStock(ctx context.Context, id string) (*BookDto, error)
}

// Service implements BookService.
type Service struct {
	repository store.BookStore
	validate   *validator.Validate
}

// NewService creates a new instance of BookService with the provided store.
func NewService(repo store.BookStore) *Service {
	return &Service{
		repository: repo,
		validate:   validator.New(),
	}
}

// BookCreateDto represents the data transfer object for creating a book.
type BookCreateDto struct {
	Title           string `json:"title"           validate:"required"`
	Author          string `json:"author"          validate:"required"`
	Category        string `json:"category"        validate:"required"`
	PublishedYear   int    `json:"publishedYear"   validate:"required,gte=-2147483648,lte=2147483647"`
	AvailableCopies int    `json:"availableCopies" validate:"gte=0,lte=2147483647"`
}

// BookDto represents the data transfer object for a book.
type BookDto struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Category        string `json:"category"`
	PublishedYear   int    `json:"publishedYear"`
	AvailableCopies int    `json:"availableCopies"`
}

// InsertMany validates every book, then inserts the batch in one store call.
func (s *Service) InsertMany(ctx context.Context, books []BookCreateDto) ([]BookDto, error) {
	if len(books) == 0 {
		return nil, fmt.Errorf("%w: no books to insert", perrors.ErrInvalidArgument)
	}
	records := make([]store.Book, len(books))
	for i, b := range books {
		if err := s.validate.Struct(b); err != nil {
			return nil, fmt.Errorf("%w: book #%d: %w", perrors.ErrInvalidArgument, i, err)
		}
		records[i] = store.Book{
			Title:           b.Title,
			Author:          b.Author,
			Category:        b.Category,
			PublishedYear:   b.PublishedYear,
			AvailableCopies: b.AvailableCopies,
		}
	}

	inserted, err := s.repository.InsertMany(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to insert books: %w", err)
	}
	return toDtos(inserted), nil
}

// Create inserts a single book.
func (s *Service) Create(ctx context.Context, book BookCreateDto) (*BookDto, error) {
	created, err := s.InsertMany(ctx, []BookCreateDto{book})
	if err != nil {
		return nil, err
	}
	return &created[0], nil
}

// GetAll retrieves every book.
func (s *Service) GetAll(ctx context.Context) ([]BookDto, error) {
	return s.find(ctx, store.Filter{})
}

// GetByCategory retrieves the books of one category.
func (s *Service) GetByCategory(ctx context.Context, category string) ([]BookDto, error) {
	return s.find(ctx, store.Filter{Category: &category})
}

// GetByYearAfter retrieves the books published strictly after year.
func (s *Service) GetByYearAfter(ctx context.Context, year int) ([]BookDto, error) {
	return s.find(ctx, store.Filter{PublishedAfter: &year})
}

// GetByID retrieves a book by its ID.
func (s *Service) GetByID(ctx context.Context, id string) (*BookDto, error) {
	book, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch book by ID %s: %w", id, err)
	}
	return toDto(book), nil
}

// UpdateCopies checks the delta and the resulting stock before forwarding the increment.
func (s *Service) UpdateCopies(ctx context.Context, id string, delta float64) (*BookDto, error) {
	n, err := toDelta(delta)
	if err != nil {
		return nil, err
	}
	current, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch book by ID %s: %w", id, err)
	}
	if current.AvailableCopies+n < 0 {
		return nil, fmt.Errorf("%w: cannot reduce copies of %q below zero (has %d, delta %d)",
			perrors.ErrInvalidState, current.Title, current.AvailableCopies, n)
	}
	if current.AvailableCopies+n > math.MaxInt32 {
		return nil, fmt.Errorf("%w: copies of %q would exceed %d (has %d, delta %d)",
			perrors.ErrInvalidState, current.Title, math.MaxInt32, current.AvailableCopies, n)
	}

	updated, err := s.repository.IncrementCopies(ctx, id, n)
	if err != nil {
		return nil, fmt.Errorf("failed to update copies for book with ID %s: %w", id, err)
	}
	return toDto(updated), nil
}

// UpdateCategory reassigns the category of a book.
func (s *Service) UpdateCategory(ctx context.Context, id string, category string) (*BookDto, error) {
	if category == "" {
		return nil, fmt.Errorf("%w: category must not be empty", perrors.ErrInvalidArgument)
	}
	updated, err := s.repository.SetCategory(ctx, id, category)
	if err != nil {
		return nil, fmt.Errorf("failed to update category for book with ID %s: %w", id, err)
	}
	return toDto(updated), nil
}

// DeleteIfOutOfStock removes a book once its copies reach zero.
func (s *Service) DeleteIfOutOfStock(ctx context.Context, id string) (*BookDto, error) {
	current, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch book by ID %s: %w", id, err)
	}
	if current.AvailableCopies != 0 {
		return nil, fmt.Errorf("%w: cannot delete %q while %d copies are available",
			perrors.ErrInvalidState, current.Title, current.AvailableCopies)
	}
	if err := s.repository.DeleteIfOutOfStock(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete book with ID %s: %w", id, err)
	}
	return toDto(current), nil
}

func (s *Service) find(ctx context.Context, filter store.Filter) ([]BookDto, error) {
	books, err := s.repository.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch books: %w", err)
	}
	return toDtos(books), nil
}

// toDelta accepts only whole numbers within the 32-bit range.
func toDelta(delta float64) (int, error) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) || delta != math.Trunc(delta) {
		return 0, fmt.Errorf("%w: copies delta must be an integer, got %v", perrors.ErrInvalidArgument, delta)
	}
	if delta < math.MinInt32 || delta > math.MaxInt32 {
		return 0, fmt.Errorf("%w: copies delta %v is out of range", perrors.ErrInvalidArgument, delta)
	}
	return int(delta), nil
}

// toDto converts a store.Book to a BookDto.
func toDto(book *store.Book) *BookDto {
	return &BookDto{
		ID:              book.ID,
		Title:           book.Title,
		Author:          book.Author,
		Category:        book.Category,
		PublishedYear:   book.PublishedYear,
		AvailableCopies: book.AvailableCopies,
	}
}

func toDtos(books []store.Book) []BookDto {
	dtos := make([]BookDto, len(books))
	for i := range books {
		dtos[i] = *toDto(&books[i])
	}
	return dtos
}

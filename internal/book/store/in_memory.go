package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/abgdnv/library/internal/book/errors"
	"github.com/google/uuid"
)

// inMemory implements BookStore using an in-memory map.
type inMemory struct {
	mu    sync.RWMutex
	books map[string]Book
	order []string // insertion order of IDs
}

// NewInMemoryStore creates a new instance of BookStore backed by memory.
func NewInMemoryStore() BookStore {
	return &inMemory{
		books: make(map[string]Book),
	}
}

// InsertMany stores the books under fresh UUIDs.
func (s *inMemory) InsertMany(_ context.Context, books []Book) ([]Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := make([]Book, len(books))
	for i, b := range books {
		b.ID = uuid.NewString()
		s.books[b.ID] = b
		s.order = append(s.order, b.ID)
		inserted[i] = b
	}
	return inserted, nil
}

// Find returns the books matching filter in insertion order.
func (s *inMemory) Find(_ context.Context, filter Filter) ([]Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Book, 0, len(s.order))
	for _, id := range s.order {
		b := s.books[id]
		if filter.Category != nil && b.Category != *filter.Category {
			continue
		}
		if filter.PublishedAfter != nil && b.PublishedYear <= *filter.PublishedAfter {
			continue
		}
		list = append(list, b)
	}
	return list, nil
}

// FindByID retrieves a book by its ID.
func (s *inMemory) FindByID(_ context.Context, id string) (*Book, error) {
	if err := validateUUID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return nil, errors.ErrBookNotFound
	}
	return &b, nil
}

// IncrementCopies adds delta to the available copies of a book.
func (s *inMemory) IncrementCopies(_ context.Context, id string, delta int) (*Book, error) {
	if err := validateUUID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return nil, errors.ErrBookNotFound
	}
	if b.AvailableCopies+delta < 0 {
		return nil, fmt.Errorf("%w: book %s has %d copies, cannot apply %d", errors.ErrInvalidState, id, b.AvailableCopies, delta)
	}
	b.AvailableCopies += delta
	s.books[id] = b
	return &b, nil
}

// SetCategory overwrites the category of a book.
func (s *inMemory) SetCategory(_ context.Context, id string, category string) (*Book, error) {
	if err := validateUUID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return nil, errors.ErrBookNotFound
	}
	b.Category = category
	s.books[id] = b
	return &b, nil
}

// DeleteIfOutOfStock deletes a book that has no copies left.
func (s *inMemory) DeleteIfOutOfStock(_ context.Context, id string) error {
	if err := validateUUID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.books[id]
	if !exists {
		return errors.ErrBookNotFound
	}
	if b.AvailableCopies != 0 {
		return fmt.Errorf("%w: book %s still has %d copies", errors.ErrInvalidState, id, b.AvailableCopies)
	}
	delete(s.books, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteAll empties the store.
func (s *inMemory) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.books))
	s.books = make(map[string]Book)
	s.order = nil
	return n, nil
}

// Close is a no-op for the in-memory store.
func (s *inMemory) Close(_ context.Context) error {
	return nil
}

// validateUUID rejects identifiers that are not UUIDs.
func validateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed book ID %q", errors.ErrInvalidArgument, id)
	}
	return nil
}

// Package store provides an interface for book storage operations.
package store

import (
	"context"
)

// Book represents a book document in the store.
type Book struct {
	ID              string
	Title           string
	Author          string
	Category        string
	PublishedYear   int
	AvailableCopies int
}

// Filter narrows Find results. Nil fields do not filter.
type Filter struct {
	Category       *string // exact match
	PublishedAfter *int    // publishedYear > PublishedAfter
}

// BookStore is an interface for book storage operations.
// It abstracts the underlying document store, allowing for different implementations (e.g., MongoDB, Postgres, in-memory).
// All implementations return books in insertion order.
type BookStore interface {
	// InsertMany stores the given books and returns them with assigned identifiers.
	InsertMany(ctx context.Context, books []Book) ([]Book, error)

	// Find returns all books matching the filter.
	// Returns an empty slice if no books match.
	Find(ctx context.Context, filter Filter) ([]Book, error)

	// FindByID retrieves a single book by its identifier.
	// Returns ErrBookNotFound if no book exists with the given ID.
	FindByID(ctx context.Context, id string) (*Book, error)

	// IncrementCopies adds delta to availableCopies, provided the result stays non-negative.
	// Returns ErrBookNotFound if no book exists with the given ID, ErrInvalidState if the result would be negative.
	IncrementCopies(ctx context.Context, id string, delta int) (*Book, error)

	// SetCategory overwrites the category of a book.
	// Returns ErrBookNotFound if no book exists with the given ID.
	SetCategory(ctx context.Context, id string, category string) (*Book, error)

	// DeleteIfOutOfStock removes a book that has no available copies.
	// Returns ErrBookNotFound if no book exists with the given ID, ErrInvalidState if copies remain.
	DeleteIfOutOfStock(ctx context.Context, id string) error

	// DeleteAll removes every book and returns how many were removed.
	DeleteAll(ctx context.Context) (int64, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

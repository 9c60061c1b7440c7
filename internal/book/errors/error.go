// Package errors provides the error kinds surfaced by book operations.
//
// Callers wrap one of the sentinels with a descriptive message and classify
// the result with errors.Is.
package errors

import "errors"

// ErrBookNotFound is returned when an identifier does not resolve to a book.
var ErrBookNotFound = errors.New("book not found")

// ErrInvalidArgument is returned for malformed input, e.g. a non-integer delta
// or an identifier the store cannot parse.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrInvalidState is returned when an operation would violate a record
// invariant, e.g. negative stock or deleting a book that still has copies.
var ErrInvalidState = errors.New("invalid state")

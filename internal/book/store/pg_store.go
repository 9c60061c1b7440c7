package store

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/abgdnv/library/internal/book/errors"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
)

const (
	dialectPostgres = "postgres"

	colSeq = "seq"
	colID  = "id"
	colDoc = "doc"

	castJsonb = "?::jsonb"

	exprCategory      = "doc->>'category'"
	exprPublishedYear = "(doc->>'publishedYear')::bigint"
	exprCopies        = "(doc->>'availableCopies')::bigint"
	exprIncCopies     = "jsonb_set(doc, '{availableCopies}', to_jsonb((doc->>'availableCopies')::bigint + ?))"
	exprSetCategory   = "jsonb_set(doc, '{category}', to_jsonb(?::text))"
)

// pgDocument is the JSONB shape of a book, using the same field names as the Mongo collection.
type pgDocument struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	Category        string `json:"category"`
	PublishedYear   int    `json:"publishedYear"`
	AvailableCopies int    `json:"availableCopies"`
}

// PgStore implements BookStore as a document collection in a PostgreSQL JSONB table.
type PgStore struct {
	db      *pgxpool.Pool
	table   string
	builder goqu.DialectWrapper
	codec   jsoniter.API
}

// NewPgStore creates a new instance of BookStore over the given table, creating the table if it is missing.
func NewPgStore(ctx context.Context, dbp *pgxpool.Pool, table string) (*PgStore, error) {
	s := &PgStore{
		db:      dbp,
		table:   table,
		builder: goqu.Dialect(dialectPostgres),
		codec:   jsoniter.ConfigFastest,
	}
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureTable creates the collection table. It is idempotent.
func (p *PgStore) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s BIGSERIAL NOT NULL, %s TEXT PRIMARY KEY, %s JSONB NOT NULL)",
		pgx.Identifier{p.table}.Sanitize(), colSeq, colID, colDoc,
	)
	if _, err := p.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", p.table, err)
	}
	return nil
}

// InsertMany inserts all books in a single statement.
func (p *PgStore) InsertMany(ctx context.Context, books []Book) ([]Book, error) {
	if len(books) == 0 {
		return []Book{}, nil
	}
	rows := make([][]any, len(books))
	inserted := make([]Book, len(books))
	for i, b := range books {
		b.ID = uuid.NewString()
		raw, err := p.codec.Marshal(toPgDocument(b))
		if err != nil {
			return nil, fmt.Errorf("failed to encode book: %w", err)
		}
		rows[i] = goqu.Vals{b.ID, goqu.L(castJsonb, string(raw))}
		inserted[i] = b
	}

	query, args, err := p.builder.Insert(p.table).Cols(colID, colDoc).Vals(rows...).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}
	if _, err := p.db.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert books: %w", err)
	}
	return inserted, nil
}

// Find returns books matching filter ordered by insertion sequence.
func (p *PgStore) Find(ctx context.Context, filter Filter) ([]Book, error) {
	stmt := p.builder.From(p.table).
		Select(colID, colDoc).
		Order(goqu.I(colSeq).Asc())

	if filter.Category != nil {
		stmt = stmt.Where(goqu.L(exprCategory).Eq(*filter.Category))
	}
	if filter.PublishedAfter != nil {
		stmt = stmt.Where(goqu.L(exprPublishedYear).Gt(*filter.PublishedAfter))
	}

	query, args, err := stmt.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find books: %w", err)
	}
	defer rows.Close()

	books := make([]Book, 0)
	for rows.Next() {
		b, err := p.scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read books: %w", err)
	}
	return books, nil
}

// FindByID retrieves a book by its identifier.
// Returns ErrBookNotFound if no book exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, id string) (*Book, error) {
	if err := validateUUID(id); err != nil {
		return nil, err
	}
	query, args, err := p.builder.From(p.table).
		Select(colID, colDoc).
		Where(goqu.C(colID).Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}
	b, err := p.scanBook(p.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to find book by ID: %w", err)
	}
	return b, nil
}

// IncrementCopies adds delta to availableCopies in a single guarded UPDATE.
func (p *PgStore) IncrementCopies(ctx context.Context, id string, delta int) (*Book, error) {
	if err := validateUUID(id); err != nil {
		return nil, err
	}
	query, args, err := p.builder.Update(p.table).
		Set(goqu.Record{colDoc: goqu.L(exprIncCopies, delta)}).
		Where(
			goqu.C(colID).Eq(id),
			goqu.L(exprCopies+" + ?", delta).Gte(0),
		).
		Returning(colID, colDoc).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build update query: %w", err)
	}

	updated, err := p.scanBook(p.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		current, findErr := p.FindByID(ctx, id)
		if findErr != nil {
			return nil, findErr
		}
		return nil, fmt.Errorf("%w: book %s has %d copies, cannot apply %d", perrors.ErrInvalidState, id, current.AvailableCopies, delta)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update book copies: %w", err)
	}
	return updated, nil
}

// SetCategory overwrites the category of a book.
// Returns ErrBookNotFound if no book exists with the given ID.
func (p *PgStore) SetCategory(ctx context.Context, id string, category string) (*Book, error) {
	if err := validateUUID(id); err != nil {
		return nil, err
	}
	query, args, err := p.builder.Update(p.table).
		Set(goqu.Record{colDoc: goqu.L(exprSetCategory, category)}).
		Where(goqu.C(colID).Eq(id)).
		Returning(colID, colDoc).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build update query: %w", err)
	}

	updated, err := p.scanBook(p.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to update book category: %w", err)
	}
	return updated, nil
}

// DeleteIfOutOfStock removes the book only while availableCopies is 0.
func (p *PgStore) DeleteIfOutOfStock(ctx context.Context, id string) error {
	if err := validateUUID(id); err != nil {
		return err
	}
	query, args, err := p.builder.Delete(p.table).
		Where(
			goqu.C(colID).Eq(id),
			goqu.L(exprCopies).Eq(0),
		).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete book by ID: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, findErr := p.FindByID(ctx, id)
		if findErr != nil {
			return findErr
		}
		return fmt.Errorf("%w: book %s still has %d copies", perrors.ErrInvalidState, id, current.AvailableCopies)
	}
	return nil
}

// DeleteAll removes every row from the table.
func (p *PgStore) DeleteAll(ctx context.Context) (int64, error) {
	query, args, err := p.builder.Delete(p.table).Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}
	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete books: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close closes the connection pool.
func (p *PgStore) Close(_ context.Context) error {
	p.db.Close()
	return nil
}

func (p *PgStore) scanBook(row pgx.Row) (*Book, error) {
	var (
		id  string
		raw []byte
	)
	if err := row.Scan(&id, &raw); err != nil {
		return nil, err
	}
	var doc pgDocument
	if err := p.codec.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode book %s: %w", id, err)
	}
	return &Book{
		ID:              id,
		Title:           doc.Title,
		Author:          doc.Author,
		Category:        doc.Category,
		PublishedYear:   doc.PublishedYear,
		AvailableCopies: doc.AvailableCopies,
	}, nil
}

func toPgDocument(b Book) pgDocument {
	return pgDocument{
		Title:           b.Title,
		Author:          b.Author,
		Category:        b.Category,
		PublishedYear:   b.PublishedYear,
		AvailableCopies: b.AvailableCopies,
	}
}

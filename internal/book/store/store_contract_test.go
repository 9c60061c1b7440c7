package store

import (
	"context"
	"math"
	"sync"

	perrors "github.com/abgdnv/library/internal/book/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// BookStoreContractSuite holds the behaviour every BookStore implementation must share.
// Backend suites embed it and fill in store and missingID.
type BookStoreContractSuite struct {
	suite.Suite
	ctx       context.Context
	store     BookStore
	missingID func() string // a well-formed ID that resolves to nothing
	malformed string        // an ID the backend can not parse
}

// SetupTest empties the store before each test.
func (s *BookStoreContractSuite) SetupTest() {
	_, err := s.store.DeleteAll(s.ctx)
	require.NoError(s.T(), err, "Failed to empty the store")
}

// insertTestBooks is a helper function to seed books for testing purposes.
func (s *BookStoreContractSuite) insertTestBooks(books ...Book) []Book {
	s.T().Helper()
	inserted, err := s.store.InsertMany(s.ctx, books)
	require.NoError(s.T(), err, "insertTestBooks helper failed to insert books")
	return inserted
}

func book(title, category string, year, copies int) Book {
	return Book{Title: title, Author: "Author of " + title, Category: category, PublishedYear: year, AvailableCopies: copies}
}

func titles(books []Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Title
	}
	return out
}

func (s *BookStoreContractSuite) TestInsertManyAndFindByID() {
	// 1. Insert a batch
	inserted := s.insertTestBooks(
		book("The Great Gatsby", "Fiction", 1925, 5),
		book("Clean Code", "Technology", 2008, 7),
	)

	// 2. Every book gets a distinct ID and keeps its fields
	require.Len(s.T(), inserted, 2)
	assert.NotEmpty(s.T(), inserted[0].ID)
	assert.NotEqual(s.T(), inserted[0].ID, inserted[1].ID)
	assert.Equal(s.T(), "Clean Code", inserted[1].Title)

	// 3. Fetch by ID
	fetched, err := s.store.FindByID(s.ctx, inserted[1].ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), inserted[1], *fetched)
}

func (s *BookStoreContractSuite) TestFind_InsertionOrder() {
	s.insertTestBooks(book("C", "Fiction", 2001, 1), book("A", "Fiction", 2002, 1))
	s.insertTestBooks(book("B", "Fiction", 2003, 1))

	all, err := s.store.Find(s.ctx, Filter{})

	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"C", "A", "B"}, titles(all))
}

func (s *BookStoreContractSuite) TestFind_Filters() {
	s.insertTestBooks(
		book("The Great Gatsby", "Fiction", 1925, 5),
		book("Clean Code", "Technology", 2008, 7),
		book("The Code Breaker", "Biography", 2021, 4),
		book("Educated", "Biography", 2018, 5),
		book("Boundary", "Fiction", 2015, 1),
	)
	fiction, after2015, horror := "Fiction", 2015, "Horror"

	byCategory, err := s.store.Find(s.ctx, Filter{Category: &fiction})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"The Great Gatsby", "Boundary"}, titles(byCategory))

	byYear, err := s.store.Find(s.ctx, Filter{PublishedAfter: &after2015})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"The Code Breaker", "Educated"}, titles(byYear), "publishedAfter is exclusive")

	none, err := s.store.Find(s.ctx, Filter{Category: &horror})
	require.NoError(s.T(), err)
	assert.NotNil(s.T(), none)
	assert.Empty(s.T(), none)
}

func (s *BookStoreContractSuite) TestLargeNumbers() {
	created := s.insertTestBooks(
		book("Max Stock", "Reference", 2020, math.MaxInt32),
		book("Far Future", "Reference", 3_000_000_000, 0),
		book("Recent", "Reference", 2019, 1),
	)
	after2015 := 2015

	// 1. A year filter keeps working over rows beyond the 32-bit range
	byYear, err := s.store.Find(s.ctx, Filter{PublishedAfter: &after2015})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"Max Stock", "Far Future", "Recent"}, titles(byYear))

	// 2. Copies at the bound can still be decremented and guarded
	updated, err := s.store.IncrementCopies(s.ctx, created[0].ID, -1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), math.MaxInt32-1, updated.AvailableCopies)
	err = s.store.DeleteIfOutOfStock(s.ctx, created[0].ID)
	require.ErrorIs(s.T(), err, perrors.ErrInvalidState)

	// 3. The far-future book reads back intact and can be deleted
	fetched, err := s.store.FindByID(s.ctx, created[1].ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 3_000_000_000, fetched.PublishedYear)
	require.NoError(s.T(), s.store.DeleteIfOutOfStock(s.ctx, created[1].ID))
}

func (s *BookStoreContractSuite) TestFind_CategoryIsCaseSensitive() {
	s.insertTestBooks(book("Dune", "Fiction", 1965, 1))
	lower := "fiction"

	list, err := s.store.Find(s.ctx, Filter{Category: &lower})

	require.NoError(s.T(), err)
	assert.Empty(s.T(), list)
}

func (s *BookStoreContractSuite) TestFindByID_NotFound() {
	_, err := s.store.FindByID(s.ctx, s.missingID())
	require.ErrorIs(s.T(), err, perrors.ErrBookNotFound)
}

func (s *BookStoreContractSuite) TestFindByID_Malformed() {
	_, err := s.store.FindByID(s.ctx, s.malformed)
	require.ErrorIs(s.T(), err, perrors.ErrInvalidArgument)
}

func (s *BookStoreContractSuite) TestIncrementCopies() {
	created := s.insertTestBooks(book("Sapiens", "Non-Fiction", 2011, 6))[0]

	updated, err := s.store.IncrementCopies(s.ctx, created.ID, 3)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 9, updated.AvailableCopies)

	updated, err = s.store.IncrementCopies(s.ctx, created.ID, -9)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 0, updated.AvailableCopies)
	assert.Equal(s.T(), created.Title, updated.Title)
}

func (s *BookStoreContractSuite) TestIncrementCopies_BelowZero() {
	created := s.insertTestBooks(book("The Silmarillion", "Fiction", 1977, 2))[0]

	_, err := s.store.IncrementCopies(s.ctx, created.ID, -7)
	require.ErrorIs(s.T(), err, perrors.ErrInvalidState)

	fetched, err := s.store.FindByID(s.ctx, created.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, fetched.AvailableCopies, "rejected update must not change the record")
}

func (s *BookStoreContractSuite) TestIncrementCopies_NotFound() {
	_, err := s.store.IncrementCopies(s.ctx, s.missingID(), 1)
	require.ErrorIs(s.T(), err, perrors.ErrBookNotFound)
}

func (s *BookStoreContractSuite) TestIncrementCopies_ConcurrentDecrementsNeverGoNegative() {
	created := s.insertTestBooks(book("Educated", "Biography", 2018, 5))[0]

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.IncrementCopies(s.ctx, created.ID, -1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	fetched, err := s.store.FindByID(s.ctx, created.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 5, succeeded)
	assert.Equal(s.T(), 0, fetched.AvailableCopies)
}

func (s *BookStoreContractSuite) TestSetCategory() {
	created := s.insertTestBooks(book("A Brief History of Time", "Science", 1988, 4))[0]

	updated, err := s.store.SetCategory(s.ctx, created.ID, "History")

	require.NoError(s.T(), err)
	assert.Equal(s.T(), "History", updated.Category)
	assert.Equal(s.T(), 4, updated.AvailableCopies)
	fetched, err := s.store.FindByID(s.ctx, created.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "History", fetched.Category)
}

func (s *BookStoreContractSuite) TestStringsAreStoredVerbatim() {
	tricky := `O'Brien\'s "Picks"; DROP TABLE books; --`
	created := s.insertTestBooks(Book{Title: tricky, Author: `C:\Temp\`, Category: "Fiction", PublishedYear: 2000, AvailableCopies: 1})[0]

	updated, err := s.store.SetCategory(s.ctx, created.ID, tricky)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), tricky, updated.Category)

	byCategory, err := s.store.Find(s.ctx, Filter{Category: &tricky})
	require.NoError(s.T(), err)
	require.Len(s.T(), byCategory, 1)
	assert.Equal(s.T(), tricky, byCategory[0].Title)
	assert.Equal(s.T(), `C:\Temp\`, byCategory[0].Author)
}

func (s *BookStoreContractSuite) TestSetCategory_NotFound() {
	_, err := s.store.SetCategory(s.ctx, s.missingID(), "History")
	require.ErrorIs(s.T(), err, perrors.ErrBookNotFound)
}

func (s *BookStoreContractSuite) TestDeleteIfOutOfStock() {
	created := s.insertTestBooks(book("Out of Stock Book", "Mystery", 2020, 0))[0]

	err := s.store.DeleteIfOutOfStock(s.ctx, created.ID)
	require.NoError(s.T(), err)

	_, err = s.store.FindByID(s.ctx, created.ID)
	require.ErrorIs(s.T(), err, perrors.ErrBookNotFound, "deleted book must not resolve")
	err = s.store.DeleteIfOutOfStock(s.ctx, created.ID)
	require.ErrorIs(s.T(), err, perrors.ErrBookNotFound, "second delete reports not found")
}

func (s *BookStoreContractSuite) TestDeleteIfOutOfStock_HasCopies() {
	created := s.insertTestBooks(book("Clean Code", "Technology", 2008, 7))[0]

	err := s.store.DeleteIfOutOfStock(s.ctx, created.ID)
	require.ErrorIs(s.T(), err, perrors.ErrInvalidState)

	_, err = s.store.FindByID(s.ctx, created.ID)
	require.NoError(s.T(), err, "book with copies must survive")
}

func (s *BookStoreContractSuite) TestDeleteIfOutOfStock_NotFound() {
	err := s.store.DeleteIfOutOfStock(s.ctx, s.missingID())
	require.ErrorIs(s.T(), err, perrors.ErrBookNotFound)
}

func (s *BookStoreContractSuite) TestDeleteAll() {
	s.insertTestBooks(book("A", "X", 2000, 1), book("B", "X", 2000, 0))

	removed, err := s.store.DeleteAll(s.ctx)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), removed)
	all, err := s.store.Find(s.ctx, Filter{})
	require.NoError(s.T(), err)
	assert.Empty(s.T(), all)
}

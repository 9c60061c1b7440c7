package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/abgdnv/library/internal/book/service"
)

// demo walks a BookService through inserts, reads, updates, rejected operations and a delete,
// printing each step to out.
type demo struct {
	out       io.Writer
	books     service.BookService
	missingID string
}

func (d *demo) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(d.out, format, args...)
}

func (d *demo) section(title string) {
	d.printf("\n%s\n%s\n", title, strings.Repeat("-", 60))
}

func (d *demo) run(ctx context.Context) error {
	d.printf("%s\nLIBRARY BOOK MANAGEMENT\n%s\n", strings.Repeat("=", 60), strings.Repeat("=", 60))

	d.section(fmt.Sprintf("1. Insert %d books", len(sampleBooks)))
	inserted, err := d.books.InsertMany(ctx, sampleBooks)
	if err != nil {
		return fmt.Errorf("insert sample books: %w", err)
	}
	d.printf("Inserted %d books\n", len(inserted))

	d.section("2. Read")
	all, err := d.books.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	d.printf("All books:\n")
	for _, b := range all {
		d.printf("  * %q by %s (%s, %d) - %d copies\n", b.Title, b.Author, b.Category, b.PublishedYear, b.AvailableCopies)
	}
	for _, category := range []string{"Fiction", "Technology"} {
		list, err := d.books.GetByCategory(ctx, category)
		if err != nil {
			return fmt.Errorf("list %s books: %w", category, err)
		}
		d.printf("%s books:\n", category)
		for _, b := range list {
			d.printf("  * %q by %s\n", b.Title, b.Author)
		}
	}
	recent, err := d.books.GetByYearAfter(ctx, 2015)
	if err != nil {
		return fmt.Errorf("list recent books: %w", err)
	}
	d.printf("Published after 2015:\n")
	for _, b := range recent {
		d.printf("  * %q (%d) - %d copies\n", b.Title, b.PublishedYear, b.AvailableCopies)
	}

	if len(all) < 4 {
		return fmt.Errorf("need at least 4 books for the update steps, have %d", len(all))
	}
	first, second, third, fourth := all[0], all[1], all[2], all[3]

	d.section("3. Update")
	updated, err := d.books.UpdateCopies(ctx, first.ID, 3)
	if err != nil {
		return fmt.Errorf("add copies: %w", err)
	}
	d.printf("%q: %d -> %d copies\n", first.Title, first.AvailableCopies, updated.AvailableCopies)

	updated, err = d.books.UpdateCopies(ctx, second.ID, -1)
	if err != nil {
		return fmt.Errorf("remove copy: %w", err)
	}
	d.printf("%q: %d -> %d copies\n", second.Title, second.AvailableCopies, updated.AvailableCopies)

	updated, err = d.books.UpdateCategory(ctx, third.ID, "History")
	if err != nil {
		return fmt.Errorf("change category: %w", err)
	}
	d.printf("%q: category %s -> %s\n", third.Title, third.Category, updated.Category)

	d.section("Rejected operations")
	current, err := d.books.GetByID(ctx, fourth.ID)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", fourth.ID, err)
	}
	d.printf("Removing %d copies from %q (has %d)\n", current.AvailableCopies+5, current.Title, current.AvailableCopies)
	d.expectError(d.books.UpdateCopies(ctx, current.ID, -float64(current.AvailableCopies+5)))

	d.printf("Looking up unknown ID %s\n", d.missingID)
	d.expectError(d.books.GetByID(ctx, d.missingID))

	d.printf("Adding 2.5 copies to %q\n", first.Title)
	d.expectError(d.books.UpdateCopies(ctx, first.ID, 2.5))

	d.section("4. Delete")
	created, err := d.books.Create(ctx, outOfStockBook)
	if err != nil {
		return fmt.Errorf("create out-of-stock book: %w", err)
	}
	deleted, err := d.books.DeleteIfOutOfStock(ctx, created.ID)
	if err != nil {
		return fmt.Errorf("delete out-of-stock book: %w", err)
	}
	d.printf("Deleted %q (%d copies)\n", deleted.Title, deleted.AvailableCopies)

	current, err = d.books.GetByID(ctx, first.ID)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", first.ID, err)
	}
	d.printf("Deleting %q with %d copies\n", current.Title, current.AvailableCopies)
	d.expectError(d.books.DeleteIfOutOfStock(ctx, first.ID))

	d.printf("\n%s\nSUMMARY\n%s\n", strings.Repeat("=", 60), strings.Repeat("=", 60))
	final, err := d.books.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	d.printf("Total books: %d\n", len(final))
	for _, b := range final {
		d.printf("  * %q | Author: %s | Category: %s | Year: %d | Copies: %d\n",
			b.Title, b.Author, b.Category, b.PublishedYear, b.AvailableCopies)
	}
	return nil
}

// expectError prints the error of a call that is supposed to be rejected.
func (d *demo) expectError(_ *service.BookDto, err error) {
	if err == nil {
		d.printf("   unexpected success\n")
		return
	}
	d.printf("   rejected: %v\n", err)
}

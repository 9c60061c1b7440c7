package main

import "github.com/abgdnv/library/internal/book/service"

// sampleBooks seeds the collection before the walkthrough.
var sampleBooks = []service.BookCreateDto{
	{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", Category: "Fiction", PublishedYear: 1925, AvailableCopies: 5},
	{Title: "To Kill a Mockingbird", Author: "Harper Lee", Category: "Fiction", PublishedYear: 1960, AvailableCopies: 3},
	{Title: "A Brief History of Time", Author: "Stephen Hawking", Category: "Science", PublishedYear: 1988, AvailableCopies: 4},
	{Title: "The Silmarillion", Author: "J.R.R. Tolkien", Category: "Fiction", PublishedYear: 1977, AvailableCopies: 2},
	{Title: "Sapiens", Author: "Yuval Noah Harari", Category: "Non-Fiction", PublishedYear: 2011, AvailableCopies: 6},
	{Title: "Clean Code", Author: "Robert C. Martin", Category: "Technology", PublishedYear: 2008, AvailableCopies: 7},
	{Title: "The Code Breaker", Author: "Walter Isaacson", Category: "Biography", PublishedYear: 2021, AvailableCopies: 4},
	{Title: "Educated", Author: "Tara Westover", Category: "Biography", PublishedYear: 2018, AvailableCopies: 5},
}

var outOfStockBook = service.BookCreateDto{
	Title:           "Out of Stock Book",
	Author:          "Test Author",
	Category:        "Mystery",
	PublishedYear:   2020,
	AvailableCopies: 0,
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	perrors "github.com/abgdnv/library/internal/book/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// bookDocument is the BSON shape of a book in the collection.
type bookDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Title           string             `bson:"title"`
	Author          string             `bson:"author"`
	Category        string             `bson:"category"`
	PublishedYear   int                `bson:"publishedYear"`
	AvailableCopies int                `bson:"availableCopies"`
}

// MongoStore implements BookStore using a MongoDB collection as the data store.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB at uri and returns a store over database.collection.
// The connection is verified with a ping before returning.
func NewMongoStore(ctx context.Context, uri, database, collection string, connectTimeout time.Duration) (*MongoStore, error) {
	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	// Ping the server to fail early if it is unreachable
	if err := client.Ping(connCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return NewMongoStoreFromClient(client, database, collection), nil
}

// NewMongoStoreFromClient wraps an already connected client.
func NewMongoStoreFromClient(client *mongo.Client, database, collection string) *MongoStore {
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}
}

// InsertMany inserts the books in one ordered batch.
// ObjectIDs are assigned client-side so the returned slice keeps the input order.
func (m *MongoStore) InsertMany(ctx context.Context, books []Book) ([]Book, error) {
	if len(books) == 0 {
		return []Book{}, nil
	}
	docs := make([]interface{}, len(books))
	inserted := make([]Book, len(books))
	for i, b := range books {
		doc := toDocument(b)
		doc.ID = primitive.NewObjectID()
		docs[i] = doc
		inserted[i] = fromDocument(doc)
	}
	if _, err := m.coll.InsertMany(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to insert books: %w", err)
	}
	return inserted, nil
}

// Find returns the books matching filter ordered by _id, which follows insertion order.
func (m *MongoStore) Find(ctx context.Context, filter Filter) ([]Book, error) {
	query := bson.M{}
	if filter.Category != nil {
		query["category"] = *filter.Category
	}
	if filter.PublishedAfter != nil {
		query["publishedYear"] = bson.M{"$gt": *filter.PublishedAfter}
	}

	cursor, err := m.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find books: %w", err)
	}
	var docs []bookDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode books: %w", err)
	}

	books := make([]Book, len(docs))
	for i, d := range docs {
		books[i] = fromDocument(d)
	}
	return books, nil
}

// FindByID retrieves a book by its ObjectID in hex form.
// Returns ErrBookNotFound if no book exists with the given ID.
func (m *MongoStore) FindByID(ctx context.Context, id string) (*Book, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	var doc bookDocument
	if err := m.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, perrors.ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to find book by ID: %w", err)
	}
	b := fromDocument(doc)
	return &b, nil
}

// IncrementCopies applies $inc guarded by availableCopies >= -delta, so the stored
// count can not go negative even if the caller's view is stale.
func (m *MongoStore) IncrementCopies(ctx context.Context, id string, delta int) (*Book, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	query := bson.M{
		"_id":             oid,
		"availableCopies": bson.M{"$gte": -delta},
	}
	update := bson.M{"$inc": bson.M{"availableCopies": delta}}

	updated, err := m.findOneAndUpdate(ctx, query, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either the book is gone or the guard rejected the update
		current, findErr := m.FindByID(ctx, id)
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
func (m *MongoStore) SetCategory(ctx context.Context, id string, category string) (*Book, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	updated, err := m.findOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"category": category}})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, perrors.ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to update book category: %w", err)
	}
	return updated, nil
}

// DeleteIfOutOfStock deletes the book only if availableCopies is 0.
func (m *MongoStore) DeleteIfOutOfStock(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": oid, "availableCopies": 0})
	if err != nil {
		return fmt.Errorf("failed to delete book by ID: %w", err)
	}
	if res.DeletedCount == 0 {
		current, findErr := m.FindByID(ctx, id)
		if findErr != nil {
			return findErr
		}
		return fmt.Errorf("%w: book %s still has %d copies", perrors.ErrInvalidState, id, current.AvailableCopies)
	}
	return nil
}

// DeleteAll removes every document from the collection.
func (m *MongoStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := m.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete books: %w", err)
	}
	return res.DeletedCount, nil
}

// Close disconnects the client.
func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoStore) findOneAndUpdate(ctx context.Context, query, update bson.M) (*Book, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc bookDocument
	if err := m.coll.FindOneAndUpdate(ctx, query, update, opts).Decode(&doc); err != nil {
		return nil, err
	}
	b := fromDocument(doc)
	return &b, nil
}

// parseObjectID converts a hex identifier, reporting malformed input as ErrInvalidArgument.
func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: malformed book ID %q", perrors.ErrInvalidArgument, id)
	}
	return oid, nil
}

func toDocument(b Book) bookDocument {
	return bookDocument{
		Title:           b.Title,
		Author:          b.Author,
		Category:        b.Category,
		PublishedYear:   b.PublishedYear,
		AvailableCopies: b.AvailableCopies,
	}
}

func fromDocument(d bookDocument) Book {
	return Book{
		ID:              d.ID.Hex(),
		Title:           d.Title,
		Author:          d.Author,
		Category:        d.Category,
		PublishedYear:   d.PublishedYear,
		AvailableCopies: d.AvailableCopies,
	}
}

// Package handler provides HTTP handlers for book-related operations.
package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	perrors "github.com/abgdnv/library/internal/book/errors"
	"github.com/abgdnv/library/internal/book/service"
	"github.com/abgdnv/library/internal/platform/contextkeys"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BookAPI defines HTTP handlers for book-related endpoints.
type BookAPI interface {
	FindAll(w http.ResponseWriter, r *http.Request)
	FindByID(w http.ResponseWriter, r *http.Request)
	Create(w http.ResponseWriter, r *http.Request)
	CreateBatch(w http.ResponseWriter, r *http.Request)
	UpdateCopies(w http.ResponseWriter, r *http.Request)
	UpdateCategory(w http.ResponseWriter, r *http.Request)
	DeleteIfOutOfStock(w http.ResponseWriter, r *http.Request)

	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// CopiesUpdateDto is the body of a copies adjustment.
type CopiesUpdateDto struct {
	Delta *float64 `json:"delta" validate:"required"`
}

// CategoryUpdateDto is the body of a category change.
type CategoryUpdateDto struct {
	Category string `json:"category" validate:"required"`
}

type api struct {
	service  service.BookService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAPI creates a new instance of BookAPI with the provided service.
func NewAPI(service service.BookService, logger *slog.Logger) BookAPI {
	return &api{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "api"),
	}
}

// FindAll lists books, narrowed by at most one of the category or publishedAfter query parameters.
func (a *api) FindAll(w http.ResponseWriter, r *http.Request) {
	mLogger := loggerWithReqID(r, a)
	query := r.URL.Query()
	category, byCategory := query.Get("category"), query.Has("category")
	byYear := query.Has("publishedAfter")
	if byCategory && byYear {
		respondError(w, mLogger, http.StatusBadRequest, "category and publishedAfter cannot be combined")
		return
	}

	var (
		list []service.BookDto
		err  error
	)
	switch {
	case byCategory:
		mLogger.DebugContext(r.Context(), "Received request to find books by category", "category", category)
		list, err = a.service.GetByCategory(r.Context(), category)
	case byYear:
		year, ok := parseInt(r, w, mLogger, "publishedAfter")
		if !ok {
			return
		}
		mLogger.DebugContext(r.Context(), "Received request to find books published after", "year", year)
		list, err = a.service.GetByYearAfter(r.Context(), year)
	default:
		mLogger.DebugContext(r.Context(), "Received request to find all books")
		list, err = a.service.GetAll(r.Context())
	}
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error retrieving book list", "error", err)
		respondError(w, mLogger, http.StatusInternalServerError, "Failed to fetch books")
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved book list", "count", len(list))
	respondJSON(w, mLogger, http.StatusOK, list)
}

// FindByID retrieves a book by its ID.
func (a *api) FindByID(w http.ResponseWriter, r *http.Request) {
	mLogger := loggerWithReqID(r, a)
	id := r.PathValue("id")

	mLogger.DebugContext(r.Context(), "Received request to find book by ID", "ID", id)
	found, err := a.service.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, mLogger, err, fmt.Sprintf("Failed to retrieve book with ID %s", id))
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved book", "ID", found.ID, "Title", found.Title)
	respondJSON(w, mLogger, http.StatusOK, found)
}

// Create handles the creation of a single book.
func (a *api) Create(w http.ResponseWriter, r *http.Request) {
	mLogger := loggerWithReqID(r, a)
	var bookCreateDto service.BookCreateDto
	if err := json.NewDecoder(r.Body).Decode(&bookCreateDto); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		respondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to create book", "book", bookCreateDto)

	newBook, err := a.service.Create(r.Context(), bookCreateDto)
	if err != nil {
		respondServiceError(w, r, mLogger, err, "Failed to create book")
		return
	}
	mLogger.InfoContext(r.Context(), "Book created successfully", "ID", newBook.ID, "Title", newBook.Title)
	respondJSON(w, mLogger, http.StatusCreated, newBook)
}

// CreateBatch inserts a JSON array of books in one call.
func (a *api) CreateBatch(w http.ResponseWriter, r *http.Request) {
	mLogger := loggerWithReqID(r, a)
	var books []service.BookCreateDto
	if err := json.NewDecoder(r.Body).Decode(&books); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		respondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to insert books", "count", len(books))

	inserted, err := a.service.InsertMany(r.Context(), books)
	if err != nil {
		respondServiceError(w, r, mLogger, err, "Failed to insert books")
		return
	}
	mLogger.InfoContext(r.Context(), "Books inserted successfully", "count", len(inserted))
	respondJSON(w, mLogger, http.StatusCreated, inserted)
}

// UpdateCopies adjusts the available copies of a book by a delta.
func (a *api) UpdateCopies(w http.ResponseWriter, r *http.Request) {
	mLogger := loggerWithReqID(r, a)
	id := r.PathValue("id")
	var dto CopiesUpdateDto
	if !a.decodeValid(w, r, mLogger, &dto) {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to update copies", "ID", id, "delta", *dto.Delta)

	updated, err := a.service.UpdateCopies(r.Context(), id, *dto.Delta)
	if err != nil {
		respondServiceError(w, r, mLogger, err, fmt.Sprintf("Failed to update copies for book with ID %s", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Copies updated successfully", "ID", updated.ID, "AvailableCopies", updated.AvailableCopies)
	respondJSON(w, mLogger, http.StatusOK, updated)
}

// UpdateCategory reassigns the category of a book.
func (a *api) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	mLogger := loggerWithReqID(r, a)
	id := r.PathValue("id")
	var dto CategoryUpdateDto
	if !a.decodeValid(w, r, mLogger, &dto) {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to update category", "ID", id, "category", dto.Category)

	updated, err := a.service.UpdateCategory(r.Context(), id, dto.Category)
	if err != nil {
		respondServiceError(w, r, mLogger, err, fmt.Sprintf("Failed to update category for book with ID %s", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Category updated successfully", "ID", updated.ID, "Category", updated.Category)
	respondJSON(w, mLogger, http.StatusOK, updated)
}

// DeleteIfOutOfStock deletes a book that has no copies left.
func (a *api) DeleteIfOutOfStock(w http.ResponseWriter, r *http.Request) {
	mLogger := loggerWithReqID(r, a)
	id := r.PathValue("id")

	mLogger.DebugContext(r.Context(), "Received request to delete book", "ID", id)
	deleted, err := a.service.DeleteIfOutOfStock(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, mLogger, err, fmt.Sprintf("Failed to delete book with ID %s", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Book deleted successfully", "ID", id, "Title", deleted.Title)
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck is a simple health check endpoint.
func (a *api) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// decodeValid decodes the request body into dst and runs struct validation on it.
func (a *api) decodeValid(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		respondError(w, logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondValidationErrors(w, r, logger, validationErrors)
			return false
		}
		logger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		respondError(w, logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// respondServiceError maps error kinds to status codes; anything unclassified is a 500 with fallback as message.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		respondValidationErrors(w, r, logger, validationErrors)
	case errors.Is(err, perrors.ErrBookNotFound):
		logger.WarnContext(r.Context(), "Book not found", "error", err)
		respondError(w, logger, http.StatusNotFound, err.Error())
	case errors.Is(err, perrors.ErrInvalidArgument):
		logger.WarnContext(r.Context(), "Invalid argument", "error", err)
		respondError(w, logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, perrors.ErrInvalidState):
		logger.WarnContext(r.Context(), "Invalid state", "error", err)
		respondError(w, logger, http.StatusConflict, err.Error())
	default:
		logger.ErrorContext(r.Context(), fallback, "error", err)
		respondError(w, logger, http.StatusInternalServerError, fallback)
	}
}

func respondValidationErrors(w http.ResponseWriter, r *http.Request, logger *slog.Logger, validationErrors validator.ValidationErrors) {
	errorResponse := make(map[string]string)
	for _, fieldErr := range validationErrors {
		// fieldErr.Tag() returns "required", "gte", etc.
		errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
	}
	logger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
	respondJSON(w, logger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
}

func respondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	// Handle nil payload
	if payload == nil {
		w.WriteHeader(status)
		return
	}

	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error encoding response to JSON", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func respondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	respondJSON(w, logger, status, map[string]string{"error": message})
}

func parseInt(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string) (int, bool) {
	value := r.URL.Query().Get(key)
	intValue, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		respondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s number: %s", key, value))
		return 0, false
	}
	return int(intValue), true
}

// loggerWithReqID creates a logger with the request ID from the context.
func loggerWithReqID(r *http.Request, a *api) *slog.Logger {
	reqID, found := contextkeys.GetRequestID(r.Context())
	if !found {
		reqID = "unknown"
	}
	return a.logger.With("request_id", reqID)
}

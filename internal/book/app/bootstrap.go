package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/abgdnv/library/internal/book/store"
	"github.com/abgdnv/library/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewLogger creates a new JSON slog.Logger writing to w with the specified log level.
func NewLogger(w io.Writer, level string) *slog.Logger {
	logLevel := toLevel(level)
	loggerOpts := &slog.HandlerOptions{
		AddSource: logLevel == slog.LevelDebug,
		Level:     logLevel,
	}
	return slog.New(slog.NewJSONHandler(w, loggerOpts))
}

// OpenStore connects to the backend selected by cfg.Store.Driver.
// The returned store owns its connection and must be closed by the caller.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.BookStore, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		s, err := store.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection, cfg.Mongo.Timeout)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to MongoDB", "database", cfg.Mongo.Database, "collection", cfg.Mongo.Collection)
		return s, nil
	case config.DriverPostgres:
		dbPool, err := NewDbPool(ctx, cfg.Postgres.URL, cfg.Postgres.Timeout)
		if err != nil {
			return nil, err
		}
		s, err := store.NewPgStore(ctx, dbPool, cfg.Postgres.Table)
		if err != nil {
			dbPool.Close()
			return nil, err
		}
		logger.Info("Connected to PostgreSQL", "table", cfg.Postgres.Table)
		return s, nil
	case config.DriverMemory:
		logger.Warn("Using in-memory store, data is lost on exit")
		return store.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// NewDbPool creates a new database connection pool and pings it within connectTimeout.
func NewDbPool(ctx context.Context, url string, connectTimeout time.Duration) (*pgxpool.Pool, error) {
	poolCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	dbPool, errPool := pgxpool.New(poolCtx, url)
	if errPool != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", errPool)
	}
	// Ping the database to ensure the connection is established (fail early if not)
	if err := dbPool.Ping(poolCtx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbPool, nil
}

// toLevel converts a string representation of a log level to slog.Level.
func toLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package main seeds the configured book store and prints a walkthrough of every book operation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/abgdnv/library/internal/book/app"
	"github.com/abgdnv/library/internal/book/service"
	"github.com/abgdnv/library/internal/config"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func main() {
	reset := flag.Bool("reset", true, "remove all books before seeding")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *reset); err != nil {
		log.Printf("demo failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, reset bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := app.NewLogger(os.Stderr, cfg.Log.Level)

	bookStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open book store: %w", err)
	}
	defer func() {
		if err := bookStore.Close(context.Background()); err != nil {
			logger.Error("Failed to close book store", "error", err)
		}
	}()

	if reset {
		removed, err := bookStore.DeleteAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to reset book store: %w", err)
		}
		logger.Info("Book store reset", "removed", removed)
	}

	d := &demo{
		out:       os.Stdout,
		books:     service.NewService(bookStore),
		missingID: missingID(cfg.Store.Driver),
	}
	return d.run(ctx)
}

// missingID returns a well-formed identifier for the driver that no stored book carries.
func missingID(driver string) string {
	if driver == config.DriverMongo {
		return primitive.NewObjectID().Hex()
	}
	return uuid.NewString()
}

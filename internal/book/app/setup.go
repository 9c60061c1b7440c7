// Package app contains the application setup for the library service.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/library/internal/book/handler"
	"github.com/abgdnv/library/internal/book/service"
	"github.com/abgdnv/library/internal/book/store"
	"github.com/abgdnv/library/internal/config"
	"github.com/abgdnv/library/internal/platform/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Dependencies struct {
	BookService service.BookService
	Logger      *slog.Logger
}

func SetupDependencies(bookStore store.BookStore, logger *slog.Logger) *Dependencies {
	return &Dependencies{
		BookService: service.NewService(bookStore),
		Logger:      logger,
	}
}

// SetupHttpHandler builds the router with all book routes and middleware.
// Used by E2E tests to run the real routes against an in-memory store.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	bApi := handler.NewAPI(deps.BookService, deps.Logger)

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(web.RequestIDInjector)
	mux.Use(web.StructuredLogger(deps.Logger))
	mux.Use(web.Recoverer(deps.Logger))

	mux.Route("/api/v1/books", func(r chi.Router) {
		r.Get("/", bApi.FindAll)
		r.Post("/", bApi.Create)
		r.Post("/batch", bApi.CreateBatch)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", bApi.FindByID)
			r.Delete("/", bApi.DeleteIfOutOfStock)
			r.Patch("/copies", bApi.UpdateCopies)
			r.Patch("/category", bApi.UpdateCategory)
		})
	})

	mux.Get("/healthz", bApi.HealthCheck)

	return mux
}

// SetupHttpServer creates and configures an HTTP server for the library service.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	mux := SetupHttpHandler(deps)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPServer.Port),
		Handler:           mux,
		ReadTimeout:       cfg.HTTPServer.Timeout.Read,
		WriteTimeout:      cfg.HTTPServer.Timeout.Write,
		IdleTimeout:       cfg.HTTPServer.Timeout.Idle,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout.ReadHeader,
		MaxHeaderBytes:    cfg.HTTPServer.MaxHeaderBytes,
	}
	return server
}

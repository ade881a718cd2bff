// main is the entry point of the Courses API.
//
// STARTUP SEQUENCE:
//  1. Load configuration (.env, then YAML + environment overrides)
//  2. Initialise the logger
//  3. Connect to the document store; exit if it is unreachable
//  4. Build the course and enrollment services around the store
//  5. Register HTTP routes and start the server in a goroutine
//  6. Block until SIGINT/SIGTERM, then shut down gracefully
//
// RUNNING THE SERVER:
//
//	go run ./cmd/courses-api --config=config/local.yaml
//
// or:
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/courses-api
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aanand-mishra/courses-api/internal/config"
	"github.com/aanand-mishra/courses-api/internal/http/router"
	"github.com/aanand-mishra/courses-api/internal/service/courses"
	"github.com/aanand-mishra/courses-api/internal/service/enrollments"
	"github.com/aanand-mishra/courses-api/internal/storage"
	"github.com/aanand-mishra/courses-api/internal/storage/mongo"
	"github.com/aanand-mishra/courses-api/internal/storage/sqlite"
	"github.com/aanand-mishra/courses-api/internal/utils/logger"
)

func main() {
	cfg := config.MustLoad()

	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting courses-api",
		slog.String("env", cfg.Env),
		slog.String("storage", cfg.Storage.Driver),
	)

	store, err := openStorage(context.Background(), cfg.Storage)
	if err != nil {
		log.Error("failed to initialise storage", logger.Err(err))
		os.Exit(1)
	}

	log.Info("storage initialised", slog.String("driver", cfg.Storage.Driver))

	handler := router.New(router.Deps{
		Courses:        courses.New(store, log),
		Enrollments:    enrollments.New(store, log),
		Store:          store,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Log:            log,
	})

	server := &http.Server{
		Addr:         cfg.HTTPServer.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		// ErrServerClosed is the normal result of Shutdown.
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error", logger.Err(err))
			os.Exit(1)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully", logger.Err(err))
	}

	if err := store.Close(ctx); err != nil {
		log.Error("failed to close storage", logger.Err(err))
	}

	log.Info("server stopped gracefully")
}

func openStorage(ctx context.Context, cfg config.Storage) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		m, err := mongo.New(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLite)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Command serve loads the cleaned grant datasets into SQLite and serves the
// aggregation API the dashboards read.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/grant-data-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/grant-data-etl/internal/adapter/httpapi"
	"github.com/couchcryptid/grant-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/grant-data-etl/internal/config"
	"github.com/couchcryptid/grant-data-etl/internal/domain"
	"github.com/couchcryptid/grant-data-etl/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store, err := sqlite.New(cfg.SQLitePath)
	if err != nil {
		logger.Error("failed to open sqlite store", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := loadDatasets(ctx, cfg, store, metrics, logger); err != nil {
		logger.Error("failed to load datasets", "error", err)
		stop()
		store.Close()
		os.Exit(1)
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, store, metrics, logger, cfg.CORSOrigins, cfg.StatsCacheSize)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// loadDatasets reads the three CSVs into the store. The cancelled and
// population datasets are optional; a missing file logs a warning and the
// endpoints that need it return empty results.
func loadDatasets(ctx context.Context, cfg *config.Config, store *sqlite.Store,
	metrics *observability.Metrics, logger *slog.Logger) error {
	states, err := csvfile.LoadStates(cfg.StatesCSV)
	if err != nil {
		return err
	}

	grants, err := csvfile.LoadTable(cfg.GrantsCSV)
	if err != nil {
		return err
	}
	n, err := store.LoadGrants(ctx, grants, domain.DefaultMapping())
	if err != nil {
		return err
	}
	metrics.DatasetRows.WithLabelValues("grants").Set(float64(n))
	logger.Info("grants dataset loaded", "rows", n, "path", cfg.GrantsCSV)

	if cancelled, err := csvfile.LoadTable(cfg.CancelledCSV); err != nil {
		logger.Warn("cancelled grants dataset unavailable", "path", cfg.CancelledCSV, "error", err)
	} else {
		n, err := store.LoadCancelled(ctx, cancelled, domain.DefaultMapping())
		if err != nil {
			return err
		}
		metrics.DatasetRows.WithLabelValues("cancelled").Set(float64(n))
		logger.Info("cancelled dataset loaded", "rows", n, "path", cfg.CancelledCSV)
	}

	if popTable, err := csvfile.LoadTable(cfg.PopulationCSV); err != nil {
		logger.Warn("population dataset unavailable", "path", cfg.PopulationCSV, "error", err)
	} else {
		popRows, err := domain.MeltPopulation(popTable, states)
		if err != nil {
			return err
		}
		n, err := store.LoadPopulation(ctx, popRows)
		if err != nil {
			return err
		}
		metrics.DatasetRows.WithLabelValues("population").Set(float64(n))
		logger.Info("population dataset loaded", "rows", n, "path", cfg.PopulationCSV)
	}

	return nil
}

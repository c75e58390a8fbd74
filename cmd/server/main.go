// Package main is the entry point for the frontier portfolio optimization
// service. It exposes the optimization engine (minimum variance, tangency,
// risk parity, maximum diversification, efficient frontier) over HTTP and
// persists run history to SQLite.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/optimization"
	optimizationhandlers "github.com/aristath/frontier/internal/modules/optimization/handlers"
	"github.com/aristath/frontier/internal/modules/runs"
	"github.com/aristath/frontier/internal/server"
	"github.com/aristath/frontier/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet; write directly and exit.
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.Pretty})

	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "runs.db"),
		Name: "runs",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open runs database")
	}
	defer db.Close()

	runRepo, err := runs.NewRepository(db.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize runs repository")
	}

	optimizerService := optimization.NewService(log)
	chartService := charts.NewService(log)
	handler := optimizationhandlers.NewHandler(optimizerService, runRepo, chartService, log)

	srv := server.New(server.Config{
		Port:     cfg.Port,
		Log:      log,
		Handlers: handler,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

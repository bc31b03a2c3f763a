package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/tinybingo-backend/internal/config"
	"github.com/DoyleJ11/tinybingo-backend/internal/goals"
	"github.com/DoyleJ11/tinybingo-backend/internal/httpapi"
	"github.com/DoyleJ11/tinybingo-backend/internal/hub"
	"github.com/DoyleJ11/tinybingo-backend/internal/lobby"
	"github.com/DoyleJ11/tinybingo-backend/internal/logging"
	"github.com/DoyleJ11/tinybingo-backend/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := goals.NewFetcher(logger)
	srcType := goals.SourceLocal
	if cfg.GoalsCSVURL != "" {
		srcType = goals.SourceSheets
	}
	res, err := fetcher.Resolve(ctx, srcType, cfg.GoalsCSVURL)
	if err != nil {
		return fmt.Errorf("goals: %w", err)
	}
	logger.Info("goal catalog ready",
		zap.String("source", res.Source),
		zap.Int("goals", res.Catalog.Len()),
		zap.Bool("fallback", res.Fallback))

	var archive store.Archive
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pg.Close()
		archive = pg
	} else {
		logger.Info("DATABASE_URL not set, archiving matches in memory")
		archive = store.NewMemory()
	}

	h := hub.NewHub(ctx, lobby.Options{
		Logger:        logger,
		Catalog:       res.Catalog,
		CatalogSource: res.Source,
		Fetcher:       fetcher,
		Archive:       archive,
		TickInterval:  cfg.TickInterval,
		IdleTimeout:   cfg.RoomIdleTimeout,
	})

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:               h,
			Archive:           archive,
			Logger:            logger,
			QuantityThreshold: cfg.QuantityThreshold,
			CatalogSource:     res.Source,
			OriginPatterns:    cfg.OriginPatterns,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		}
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

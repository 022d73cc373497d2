package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/qninhdt/dnd-campaign/server/internal/agents"
	"github.com/qninhdt/dnd-campaign/server/internal/api"
	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
	"github.com/qninhdt/dnd-campaign/server/internal/config"
	"github.com/qninhdt/dnd-campaign/server/internal/db"
	"github.com/qninhdt/dnd-campaign/server/internal/game"
	"github.com/qninhdt/dnd-campaign/server/internal/logger"
	"github.com/qninhdt/dnd-campaign/server/internal/story"
)

type campaignStore interface {
	game.StateStore
	Close() error
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding, OutputPath: cfg.LogOutput})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()

	if err != nil {
		log.Error("Campaign stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

// run wires the simulation and blocks until ctx is cancelled, the round
// limit is reached or the campaign can no longer be saved
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info("Starting D&D campaign simulation", zap.Any("config", cfg.Summary()))

	roster := campaign.DefaultRoster()
	if cfg.RosterFile != "" {
		var err error
		if roster, err = campaign.LoadRosterFile(cfg.RosterFile); err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
	}

	store, err := openStore(cfg, roster, log)
	if err != nil {
		return fmt.Errorf("open campaign store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close campaign store", zap.Error(err))
		}
	}()

	generator, err := agents.NewGenerator(cfg, log)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}

	engine := game.NewEngine(store, generator, story.NewDefaultReducer(), roster, game.Options{
		RoundDelay:       cfg.RoundDelay,
		LogRetention:     cfg.LogRetention,
		MaxParallelTurns: cfg.MaxParallelTurns,
		MaxRounds:        cfg.MaxRounds,
	}, log)

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("load campaign: %w", err)
	}

	var httpServer *http.Server
	if cfg.HTTPPort != "" {
		opts := api.Options{
			RateLimit: cfg.APIRateLimit,
			JWTSecret: cfg.APIJWTSecret,
		}
		if sqlite, ok := store.(*db.SQLiteStore); ok {
			opts.Snapshots = sqlite
		}

		httpServer = &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
			Handler:           api.NewServer(engine, opts, log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("Analysis API listening", zap.String("addr", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("HTTP server error", zap.Error(err))
				cancel()
			}
		}()
	}

	runErr := engine.Run(ctx)

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP server shutdown", zap.Error(err))
		}
	}

	if runErr != nil {
		return runErr
	}
	log.Info("Campaign stopped", zap.Int("rounds", engine.Rounds()))
	return nil
}

func openStore(cfg *config.Config, roster *campaign.Roster, log *zap.Logger) (campaignStore, error) {
	switch strings.ToLower(cfg.Store) {
	case config.StoreSQLite:
		store, err := db.NewSQLiteStore(cfg.DBPath, cfg.CampaignID, roster, log)
		if err != nil {
			return nil, err
		}
		store.SetRetention(cfg.SnapshotRetention)
		return store, nil
	default:
		return db.NewFileStore(cfg.File, roster, log), nil
	}
}

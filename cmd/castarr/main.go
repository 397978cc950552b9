package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/castarr/castarr/internal/api"
	"github.com/castarr/castarr/internal/config"
	"github.com/castarr/castarr/internal/database"
	"github.com/castarr/castarr/internal/logger"
	"github.com/castarr/castarr/internal/mediathek"
	"github.com/castarr/castarr/internal/metadata"
	"github.com/castarr/castarr/internal/scheduler"
	"github.com/castarr/castarr/internal/scheduler/tasks"
	"github.com/castarr/castarr/internal/sonarr"
	"github.com/castarr/castarr/internal/store"
	"github.com/castarr/castarr/internal/syncer"
	"github.com/castarr/castarr/internal/transfer"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "castarr: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer log.Close()

	log.Info().Str("version", version).Msg("castarr starting")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	st := store.New(db.Conn())

	variantCache := metadata.NewVariantCache(cfg.Sync.VariantTTL())
	metadataClient := metadata.NewClient(cfg.TVDB, variantCache, log.Logger)
	feedClient := mediathek.NewClient(cfg.Mediathek, log.Logger)
	sonarrClient := sonarr.NewClient(cfg.Sonarr, log.Logger)
	executor := transfer.NewHTTPExecutor(cfg.Download.TransferTimeout(), log.Logger)

	syncService := syncer.NewService(
		st, metadataClient, feedClient, sonarrClient, executor,
		cfg.Sync, cfg.Download, log.Logger,
	)

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	if err := tasks.RegisterReconcileTask(sched, syncService, &cfg.Sync); err != nil {
		return fmt.Errorf("register reconcile task: %w", err)
	}
	if err := tasks.RegisterSweepTask(sched, syncService, &cfg.Sync); err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	server := api.NewServer(st, syncService, sonarrClient, sched, cfg, log.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	if err := server.Shutdown(context.Background()); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
	return nil
}

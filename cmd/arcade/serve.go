package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/pylearn-arcade/internal/api"
	"github.com/terra-clan/pylearn-arcade/internal/cleanup"
	"github.com/terra-clan/pylearn-arcade/internal/config"
	"github.com/terra-clan/pylearn-arcade/internal/content"
	"github.com/terra-clan/pylearn-arcade/internal/rewards"
	"github.com/terra-clan/pylearn-arcade/internal/services"
	"github.com/terra-clan/pylearn-arcade/internal/session"
	"github.com/terra-clan/pylearn-arcade/internal/storage"
	"github.com/terra-clan/pylearn-arcade/pkg/client"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("starting arcade",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				slog.Error("close error", "error", err)
			}
		}
	}()

	health := services.NewRegistry(2 * time.Second)

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	defer initCancel()

	repo, err := openRepository(initCtx, cfg.Database)
	if err != nil {
		return err
	}
	closers = append(closers, repo)
	health.Register("database", services.CheckerFunc(repo.Ping))

	var state storage.StateStore
	if cfg.Redis.Address != "" {
		store, err := storage.NewRedisStore(initCtx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		closers = append(closers, store)
		health.Register("redis", store)
		state = store
		slog.Info("redis connected successfully", "address", cfg.Redis.Address)
	} else {
		slog.Warn("REDIS_ADDRESS not set, keeping snapshots in memory")
		state = storage.NewMemoryStateStore(time.Now)
	}

	// Content: local packs first, then the application database
	loader := content.NewLoader()
	sources := content.Chain{loader}
	if cfg.Content.Dir != "" {
		if err := loader.LoadFromDir(cfg.Content.Dir); err != nil {
			slog.Warn("failed to load content from dir", "dir", cfg.Content.Dir, "error", err)
		}
	}
	if cfg.Content.DSN != "" {
		sqlSource, err := content.NewSQLSource(initCtx, cfg.Content.DSN)
		if err != nil {
			return err
		}
		closers = append(closers, sqlSource)
		health.Register("content_db", sqlSource)
		sources = append(sources, sqlSource)
	}

	var watcher *content.Watcher
	if cfg.Content.Watch && cfg.Content.Dir != "" {
		watcher, err = content.NewWatcher(loader, cfg.Content.Dir, cfg.Content.Debounce)
		if err != nil {
			return err
		}
	}

	rewardClient := client.NewClient(cfg.Rewards.BaseURL,
		client.WithTimeout(cfg.Rewards.Timeout),
		client.WithAPIKey(cfg.Rewards.APIKey),
	)
	health.RegisterOptional("rewards", services.CheckerFunc(rewardClient.Health))

	manager := session.NewManager(sources, repo, state, rewards.NewAdapter(rewardClient, slog.Default()), session.Options{
		TTL:           cfg.Games.SessionTTL,
		EventRate:     cfg.Games.EventRate,
		EventBurst:    cfg.Games.EventBurst,
		SubmitTimeout: cfg.Rewards.Timeout,
		Logger:        slog.Default(),
	})
	closers = append(closers, manager)

	cleaner := cleanup.NewCleaner(manager, cfg.Cleanup.Interval)

	server := api.NewServer(cfg.Server, manager, loader, health)
	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cleaner.Run(gctx)
		return nil
	})

	if watcher != nil {
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	})

	err = g.Wait()
	slog.Info("arcade stopped")
	return err
}

// openRepository connects to PostgreSQL, migrating first when configured.
// Without a DSN sessions live in memory only.
func openRepository(ctx context.Context, cfg config.DatabaseConfig) (storage.Repository, error) {
	if cfg.DSN == "" {
		slog.Warn("DATABASE_DSN not set, keeping sessions in memory")
		return storage.NewMemoryRepository(), nil
	}

	if cfg.AutoMigrate {
		slog.Info("running database migrations", "dir", cfg.MigrationsDir)
		applied, err := storage.MigrateFromDSN(ctx, cfg.DSN, cfg.MigrationsDir)
		if err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		slog.Info("migrations complete", "applied", len(applied))
	}

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:          cfg.DSN,
		MaxOpenConns: int32(cfg.MaxConns),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create database repository: %w", err)
	}
	slog.Info("database connected successfully")
	return repo, nil
}

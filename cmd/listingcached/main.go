// Command listingcached serves the property-listing API backed by PostgreSQL
// with a Redis read-through cache and event-driven invalidation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/casafind/listingcache/cache/redis"
	"github.com/casafind/listingcache/config"
	"github.com/casafind/listingcache/listing"
	"github.com/casafind/listingcache/listing/postgres"
	"github.com/casafind/listingcache/logger"
	"github.com/casafind/listingcache/metrics"
	"github.com/casafind/listingcache/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "listingcached: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty).WithFields(map[string]any{"service": "listingcached"})

	store, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Cache store close failed")
		}
	}()
	log.Info().Str("addr", cfg.Redis.Address()).Msg("Cache store connected")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database.DSN(), cfg.Database.MaxOpenConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Database close failed")
		}
	}()
	log.Info().Str("host", cfg.Database.Host).Str("name", cfg.Database.Name).Msg("Database connected")

	// The invalidator must be subscribed before the repository can publish.
	bus := listing.NewBus()
	invalidator := listing.NewInvalidator(store, log)
	invalidator.Register(bus)

	repo := postgres.NewRepository(db, bus, log)
	deps := server.Deps{
		Store:       store,
		Repo:        repo,
		Service:     listing.NewService(store, repo, log),
		Invalidator: invalidator,
		Collector:   metrics.NewCollector(store, log),
	}

	srv := server.New(log, deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.Address())
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", cfg.Server.ShutdownTimeout).Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return <-errCh
}

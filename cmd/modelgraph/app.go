package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/modelgraph"
	"github.com/aretw0/modelgraph/internal/config"
	"github.com/aretw0/modelgraph/internal/logging"
	"github.com/aretw0/modelgraph/pkg/adapters/file"
	redisAdapter "github.com/aretw0/modelgraph/pkg/adapters/redis"
	"github.com/aretw0/modelgraph/pkg/catalog"
	"github.com/aretw0/modelgraph/pkg/graph"
	"github.com/aretw0/modelgraph/pkg/notes"
	"github.com/aretw0/modelgraph/pkg/observability"
	"github.com/aretw0/modelgraph/pkg/persistence/middleware"
	"github.com/aretw0/modelgraph/pkg/ports"
	"github.com/aretw0/modelgraph/pkg/training"
	"github.com/spf13/cobra"
)

// loadConfig reads the configuration and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if src, _ := cmd.Flags().GetString("catalog"); src != "" {
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			cfg.Catalog.URL, cfg.Catalog.File = src, ""
		} else {
			cfg.Catalog.URL, cfg.Catalog.File = "", src
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the stderr logger described by cfg.
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.NewWithWriter(os.Stderr, logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
}

// catalogSource picks the template source: URL, then file, then the builtin set.
func catalogSource(cfg *config.Config) ports.Catalog {
	switch {
	case cfg.Catalog.URL != "":
		return catalog.NewHTTPSource(cfg.Catalog.URL)
	case cfg.Catalog.File != "":
		return catalog.File{Path: cfg.Catalog.File}
	default:
		return catalog.Builtin()
	}
}

// newTrainingClient returns nil when no training URL is configured.
func newTrainingClient(cfg *config.Config, logger *slog.Logger) *training.Client {
	if cfg.Training.URL == "" {
		return nil
	}
	return training.New(cfg.Training.URL,
		training.WithTimeout(cfg.Training.Timeout),
		training.WithRetries(cfg.Training.Retries),
		training.WithLogger(logger),
		training.WithCircuitBreaker(breakerConfig(cfg)),
	)
}

// buildStudio wires a Studio from cfg. The returned cleanup closes external connections.
func buildStudio(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*modelgraph.Studio, func(), error) {
	hooks := observability.LoggingHooks(logger)
	opts := []modelgraph.Option{
		modelgraph.WithLogger(logger),
		modelgraph.WithCatalog(catalogSource(cfg)),
		modelgraph.WithSeedGraph(cfg.Graph.Seed),
		modelgraph.WithEdgePolicy(graph.EdgePolicy{
			AllowSelfLoops:     cfg.Graph.AllowSelfLoops,
			AllowParallelEdges: cfg.Graph.AllowParallelEdges,
		}),
		modelgraph.WithLifecycleHooks(hooks),
	}
	if metrics != nil {
		opts = append(opts, modelgraph.WithMetrics(metrics))
	}
	if cfg.Training.URL != "" {
		opts = append(opts, modelgraph.WithTrainingURL(cfg.Training.URL,
			training.WithTimeout(cfg.Training.Timeout),
			training.WithRetries(cfg.Training.Retries),
			training.WithCircuitBreaker(breakerConfig(cfg)),
		))
	}
	if cfg.Notes.URL != "" {
		opts = append(opts, modelgraph.WithNotes(notes.New(cfg.Notes.URL, notes.WithLogger(logger))))
	}

	if cfg.Store.EncryptionKey != "" {
		mw, err := encryptionMiddleware(cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Session encryption enabled", "fallback_keys", len(cfg.Store.FallbackKeys))
		opts = append(opts, modelgraph.WithStoreMiddleware(mw))
	}

	cleanup := func() {}
	switch {
	case cfg.Redis.Addr != "":
		store := redisAdapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redisAdapter.WithPrefix(cfg.Redis.Prefix),
			redisAdapter.WithTTL(cfg.Redis.TTL),
		)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("Using Redis session store", "addr", cfg.Redis.Addr, "prefix", store.Prefix())
		opts = append(opts,
			modelgraph.WithSessionStore(store),
			modelgraph.WithLocker(redisAdapter.NewLocker(store.Client(), store.Prefix()), 0),
		)
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close Redis client", "err", err)
			}
		}
	case cfg.Store.Dir != "":
		logger.Info("Using file session store", "dir", cfg.Store.Dir)
		opts = append(opts, modelgraph.WithSessionStore(file.New(cfg.Store.Dir)))
	}

	studio, err := modelgraph.New(opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return studio, cleanup, nil
}

func encryptionMiddleware(cfg *config.Config) (middleware.Middleware, error) {
	active, err := middleware.ParseKey(cfg.Store.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("store encryption key: %w", err)
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.Store.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("store fallback key %d: %w", i, err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(enc)
}

func breakerConfig(cfg *config.Config) training.BreakerConfig {
	return training.BreakerConfig{
		Failures: uint32(cfg.Training.BreakerFailures),
		Cooldown: cfg.Training.BreakerCooldown,
	}
}

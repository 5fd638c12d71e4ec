package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/genai-cost-planner/genai-cost-planner/internal/api"
	"github.com/genai-cost-planner/genai-cost-planner/internal/config"
	"github.com/genai-cost-planner/genai-cost-planner/internal/logging"
	"github.com/genai-cost-planner/genai-cost-planner/internal/metrics"
	"github.com/genai-cost-planner/genai-cost-planner/internal/planner"
	"github.com/genai-cost-planner/genai-cost-planner/internal/service/optimizer"
	"github.com/genai-cost-planner/genai-cost-planner/internal/storage"
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

func main() {
	// Load configuration. PLANNER_CONFIG points at an optional YAML file;
	// environment variables override it either way.
	var (
		cfg *config.Config
		err error
	)
	if path := os.Getenv("PLANNER_CONFIG"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logger.Info("starting planner server",
		slog.String("version", models.ResultVersion),
		slog.String("addr", cfg.Addr()))

	// Initialize database
	db, err := storage.New(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to initialize database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Shared evaluator
	memo, err := planner.NewMemo(cfg.Planner.CacheSize)
	if err != nil {
		logger.Error("failed to create evaluation cache", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := metrics.RegisterCacheStats(prometheus.DefaultRegisterer, memo); err != nil {
		logger.Error("failed to register cache metrics", slog.String("error", err.Error()))
		os.Exit(1)
	}

	opt := optimizer.New(memo,
		optimizer.WithLogger(logger),
		optimizer.WithWorkers(cfg.Planner.OptimizerWorkers))

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithHost(cfg.Server.Host),
		api.WithPort(cfg.Server.Port),
		api.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		api.WithBodyLimit(cfg.Server.BodyLimit),
		api.WithDefaultTargets(models.Targets{
			SLOP95:         cfg.Planner.DefaultSLOP95,
			UtilizationCap: cfg.Planner.DefaultUtilizationCap,
		}),
		api.WithOptimizeTimeout(cfg.Planner.OptimizeTimeout),
		api.WithPresetStore(storage.NewPresetStore(db)),
		api.WithProfileStore(storage.NewProfileStore(db)),
		api.WithRunStore(storage.NewRunStore(db)),
	}

	if cfg.RateLimit.Enabled {
		opts = append(opts, api.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		logger.Info("rate limiting enabled",
			slog.Float64("rps", cfg.RateLimit.RPS),
			slog.Int("burst", cfg.RateLimit.Burst))
	}

	if cfg.Auth.Enabled {
		keys := storage.NewKeyStore(db)
		active, err := keys.Count(ctx)
		if err != nil {
			logger.Error("failed to count API keys", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if active == 0 {
			logger.Warn("API key auth enabled but no active keys exist; create one with 'planner keys create'")
		}
		opts = append(opts, api.WithAuth(keys))
	} else {
		logger.Warn("API key auth disabled")
	}

	server, err := api.New(memo, opt, opts...)
	if err != nil {
		logger.Error("failed to create API server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	server.SetReady(true)

	// Handle shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")
		server.SetReady(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.String("error", err.Error()))
		}

		stats := memo.Stats()
		logger.Info("evaluation cache at shutdown",
			slog.Uint64("hits", stats.Hits),
			slog.Uint64("misses", stats.Misses),
			slog.Int("entries", stats.Size))
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	<-done
}

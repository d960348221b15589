package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/trendpulse/trendpulse/internal/api"
	"github.com/trendpulse/trendpulse/internal/cache"
	"github.com/trendpulse/trendpulse/internal/config"
	"github.com/trendpulse/trendpulse/internal/engine"
	"github.com/trendpulse/trendpulse/internal/metrics"
	"github.com/trendpulse/trendpulse/internal/services"
	"github.com/trendpulse/trendpulse/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting trendpulse",
		slog.String("http", cfg.Server.HTTPAddress),
		slog.String("grpc", cfg.Server.GRPCAddress),
		slog.String("velocity_mode", cfg.Engine.VelocityMode),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cacheProvider := newCacheProvider(ctx, cfg.Cache, logger)
	defer cacheProvider.Close()

	table, err := engine.LoadRecommendations(cfg.Recommendations.Path)
	if err != nil {
		logger.Error("failed to load recommendations", slog.String("path", cfg.Recommendations.Path), slog.Any("error", err))
		os.Exit(1)
	}
	recommender := engine.NewRecommender(table, logger)

	mode, err := engine.ParseMode(cfg.Engine.VelocityMode)
	if err != nil {
		logger.Error("invalid velocity mode", slog.Any("error", err))
		os.Exit(1)
	}
	analyzer := engine.NewAnalyzer(engine.AnalyzerConfig{
		Mode:             mode,
		R0Window:         cfg.Engine.R0Window,
		BatchConcurrency: cfg.Engine.BatchConcurrency,
	}, recommender, logger)

	trendService := services.NewTrendService(logger, analyzer, cacheProvider, services.CacheOptions{
		TTL:       cfg.Cache.TTL,
		KeyPrefix: cfg.Cache.KeyPrefix,
	})

	if cfg.Recommendations.Path != "" && cfg.Recommendations.Watch {
		go func() {
			err := config.Watch(ctx, cfg.Recommendations.Path, logger, func(path string) error {
				table, err := engine.LoadRecommendations(path)
				if err != nil {
					return err
				}
				recommender.Replace(table)
				return nil
			})
			if err != nil {
				logger.Error("recommendations watcher stopped", slog.Any("error", err))
			}
		}()
	}

	grpcServer, err := api.NewServer(cfg.Server, api.NewGRPCHandler(trendService))
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	httpServer := api.NewHTTPServer(cfg.Server, api.NewRouter(trendService, api.RouterOptions{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		AccessLog:      cfg.Logging.Access,
	}, logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gRPC server listening", slog.String("address", grpcServer.Address()))
		return grpcServer.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
		return serveHTTP(gctx, httpServer, cfg.Server.GracefulTimeout)
	})
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			return serveHTTP(gctx, metricsServer, cfg.Server.GracefulTimeout)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		_ = cacheProvider.Close()
		os.Exit(1)
	}
	logger.Info("trendpulse stopped")
}

// serveHTTP runs srv until ctx is cancelled and then shuts it down, allowing
// in-flight requests up to timeout.
func serveHTTP(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s: %w", srv.Addr, err)
	}
	return nil
}

// newCacheProvider picks the configured result cache. An unreachable Redis
// degrades to no caching rather than refusing to start.
func newCacheProvider(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	if !cfg.Enabled {
		return cache.NoopProvider{}
	}
	switch cfg.Backend {
	case config.CacheBackendRedis:
		provider, err := cache.NewRedisProvider(ctx, cache.RedisConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
		})
		if err != nil {
			logger.Warn("redis cache unavailable", slog.Any("error", err))
			return cache.NoopProvider{}
		}
		logger.Info("redis cache enabled", slog.String("addr", cfg.Addr))
		return provider
	default:
		memory := cache.NewMemoryProvider()
		go sweepExpired(ctx, memory, cfg.TTL)
		logger.Info("memory cache enabled", slog.Duration("ttl", cfg.TTL))
		return memory
	}
}

func sweepExpired(ctx context.Context, memory *cache.MemoryProvider, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			memory.Sweep()
		}
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"famfin/internal/analytics"
	"famfin/internal/cache"
	"famfin/internal/cli"
	apphttp "famfin/internal/http"
	"famfin/internal/log"
	"famfin/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.OpenBackend(context.Background(), logger, cfg)
	store := res.Backend

	engine := analytics.NewEngine(store, store,
		analytics.WithLogger(logger),
		analytics.WithMaxHorizon(cfg.ForecastMaxHorizon),
	)

	opts := []apphttp.ServerOption{apphttp.WithServerLogger(logger)}
	caches := cache.NewManager(logger.Logger)
	if cfg.RateLimitPerMinute > 0 {
		limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
		caches.Register(limiter)
		opts = append(opts, apphttp.WithRateLimiter(limiter))
	}
	srv := apphttp.NewServer(":"+cfg.Port, engine, store, opts...)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend close error", "error", err)
		}
	})
	go caches.Run(ctx, 5*time.Minute)

	logger.Info("Starting famfin server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

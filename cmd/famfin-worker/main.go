package main

import (
	"context"
	"errors"
	"os"
	"time"

	"famfin/internal/amqp"
	"famfin/internal/analytics"
	"famfin/internal/cache"
	"famfin/internal/cli"
	"famfin/internal/log"
	"famfin/internal/services"
	"famfin/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting famfin-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	checker, err := services.GetNotifyChecker(cfg.AlertPolicy)
	if err != nil {
		logger.Error("Invalid alert policy", "error", err, "policies", services.NotifyPolicies())
		os.Exit(1)
	}

	res := cli.OpenBackend(context.Background(), logger, cfg)
	store := res.Backend

	caches := cache.NewManager(logger.Logger)
	engineOpts := []analytics.Option{
		analytics.WithLogger(logger),
		analytics.WithMaxHorizon(cfg.ForecastMaxHorizon),
	}
	if cfg.BudgetWriteBack {
		spent := cache.NewSpentTracker(10000, 24*time.Hour)
		caches.Register(spent)
		engineOpts = append(engineOpts, analytics.WithWriteBack(spent))
	}
	engine := analytics.NewEngine(store, store, engineOpts...)

	var (
		client    *amqp.Client
		publisher services.AlertPublisher
	)
	if cfg.AMQPEnabled() {
		client, err = amqp.NewClient(amqp.Config{
			URL:          cfg.AMQPURL,
			Exchange:     cfg.AMQPExchange,
			AlertQueue:   cfg.AMQPAlertQueue,
			RequestQueue: cfg.AMQPRequestQueue,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		publisher = client
	} else {
		logger.Warn("AMQP disabled - alerts will be logged but not published")
	}

	alerts := services.NewAlertService(engine, publisher,
		services.WithNotifyChecker(checker),
		services.WithAlertLogger(logger),
	)
	caches.Register(alerts.Notifications())

	evaluator := worker.NewEvaluationWorker(store, alerts, cfg.EvalConcurrency, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if client != nil {
			if err := client.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend close error", "error", err)
		}
	})

	go caches.Run(ctx, time.Hour)

	if client != nil {
		go func() {
			if err := client.ConsumeEvaluationRequests(ctx, evaluator.HandleRequest); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	}

	logger.Info("Worker running",
		"interval", cfg.EvalInterval,
		"concurrency", cfg.EvalConcurrency,
		"alert_policy", cfg.AlertPolicy,
		"write_back", cfg.BudgetWriteBack,
		"amqp", cfg.AMQPEnabled())
	evaluator.Run(ctx, cfg.EvalInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

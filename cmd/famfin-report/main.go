// Command famfin-report prints one analytics report as JSON, or enqueues a
// budget evaluation for the worker.
//
// Usage:
//
//	famfin-report -report summary -owner fam-1 -start 2025-03-01 -end 2025-03-31
//	famfin-report -report forecast -owner-kind individual -owner alice -months 6
//	famfin-report -enqueue -owner fam-1
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"famfin/internal/amqp"
	"famfin/internal/analytics"
	"famfin/internal/cli"
	"famfin/internal/config"
	"famfin/internal/core"
	"famfin/internal/log"
)

func main() {
	cli.LoadEnvFile()
	// stdout carries the report, so logs go to stderr
	lcfg := log.DefaultConfig()
	lcfg.Component = log.ComponentCLI
	lcfg.Output = os.Stderr
	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		lcfg.Level = lvl
	}
	logger := log.New(lcfg)
	log.SetDefault(logger)

	opts, err := parseFlags(os.Args[1:], time.Now().UTC())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if opts.enqueue {
		if err := enqueue(ctx, cfg, logger, opts); err != nil {
			logger.Error("Failed to enqueue evaluation", "error", err)
			os.Exit(1)
		}
		return
	}

	res := cli.OpenBackend(ctx, logger, cfg)
	defer res.Close()

	engine := analytics.NewEngine(res.Backend, res.Backend,
		analytics.WithLogger(logger),
		analytics.WithMaxHorizon(cfg.ForecastMaxHorizon),
	)
	out, err := runReport(ctx, engine, opts)
	if err != nil {
		logger.Error("Report failed", "report", opts.report, "error", err)
		os.Exit(1)
	}
	if err := writeJSON(os.Stdout, out); err != nil {
		logger.Error("Failed to write report", "error", err)
		os.Exit(1)
	}
}

func enqueue(ctx context.Context, cfg *config.Config, logger *log.Logger, opts options) error {
	if !cfg.AMQPEnabled() {
		return fmt.Errorf("AMQP_URL is required for -enqueue")
	}
	client, err := amqp.NewClient(amqp.Config{
		URL:          cfg.AMQPURL,
		Exchange:     cfg.AMQPExchange,
		AlertQueue:   cfg.AMQPAlertQueue,
		RequestQueue: cfg.AMQPRequestQueue,
	}, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	req := amqp.NewEvaluationRequest(opts.owner, opts.budgetID)
	if err := client.PublishEvaluationRequest(ctx, req); err != nil {
		return err
	}
	logger.Info("Evaluation request enqueued", "message_id", req.MessageID, "owner", opts.owner.String(), "budget_id", req.BudgetID)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// options is the parsed command line.
type options struct {
	report   string
	owner    core.OwnerScope
	rng      core.DateRange
	hasRange bool
	months   int
	year     int
	month    time.Month
	days     int
	limit    int
	offset   int
	category []string
	budgetID string
	enqueue  bool
}

var reports = []string{
	"summary", "comparison", "detailed", "monthly", "yearly",
	"budgets", "alerts", "performance", "trends", "forecast", "insights", "weekday",
}

func parseFlags(args []string, now time.Time) (options, error) {
	fs := flag.NewFlagSet("famfin-report", flag.ContinueOnError)
	var (
		opts       options
		ownerKind  string
		start, end string
		month      int
		categories string
	)
	fs.StringVar(&opts.report, "report", "summary", "report to print: "+strings.Join(reports, ", "))
	fs.StringVar(&ownerKind, "owner-kind", string(core.Family), "owner kind: individual or family")
	fs.StringVar(&opts.owner.ID, "owner", "", "owner id (required)")
	fs.StringVar(&start, "start", "", "first day, YYYY-MM-DD (summary, comparison, detailed)")
	fs.StringVar(&end, "end", "", "last day inclusive, YYYY-MM-DD")
	fs.IntVar(&opts.months, "months", 0, "trend window or forecast horizon in months")
	fs.IntVar(&opts.year, "year", now.Year(), "year (monthly, yearly)")
	fs.IntVar(&month, "month", int(now.Month()), "month 1-12 (monthly)")
	fs.IntVar(&opts.days, "days", analytics.DefaultRankingDays, "lookback in days (weekday)")
	fs.IntVar(&opts.limit, "limit", 0, "page size (detailed)")
	fs.IntVar(&opts.offset, "offset", 0, "page offset (detailed)")
	fs.StringVar(&categories, "category", "", "comma-separated category filter (detailed)")
	fs.StringVar(&opts.budgetID, "budget", "", "evaluate a single budget by id (budgets, -enqueue)")
	fs.BoolVar(&opts.enqueue, "enqueue", false, "publish an evaluation request to the worker instead of printing a report")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.owner.Kind = core.OwnerKind(ownerKind)
	opts.month = time.Month(month)
	if categories != "" {
		for _, c := range strings.Split(categories, ",") {
			opts.category = append(opts.category, strings.TrimSpace(c))
		}
	}

	if start != "" || end != "" {
		first, err := time.Parse("2006-01-02", start)
		if err != nil {
			return opts, fmt.Errorf("invalid -start %q: want YYYY-MM-DD", start)
		}
		last, err := time.Parse("2006-01-02", end)
		if err != nil {
			return opts, fmt.Errorf("invalid -end %q: want YYYY-MM-DD", end)
		}
		opts.rng = core.DayRange(first, last)
		opts.hasRange = true
	}

	if opts.enqueue {
		if opts.budgetID == "" {
			if err := opts.owner.Validate(); err != nil {
				return opts, err
			}
		}
		return opts, nil
	}
	for _, r := range reports {
		if r == opts.report {
			return opts, nil
		}
	}
	return opts, fmt.Errorf("unknown report %q: want one of %s", opts.report, strings.Join(reports, ", "))
}

package http

import (
	"context"
	"net/http"
	"time"

	"famfin/internal/analytics"
	"famfin/internal/ledger"
	"famfin/internal/log"
	"famfin/internal/middleware/ratelimit"
	"famfin/internal/middleware/security"
	"famfin/internal/middleware/trace"
)

// Store is what the API needs from the backend beyond the engine: record
// ingestion and a readiness probe.
type Store interface {
	ledger.RecordWriter
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	engine  *analytics.Engine
	store   Store
	now     func() time.Time
	logger  *log.Logger
	tracer  *trace.Middleware
	limiter *ratelimit.Limiter
	ip      *security.ClientIP
}

type ServerOption func(*Server)

// WithRateLimiter throttles /api routes per client IP.
func WithRateLimiter(l *ratelimit.Limiter) ServerOption {
	return func(s *Server) { s.limiter = l }
}

// WithClientIP sets the resolver used to key the rate limiter.
func WithClientIP(c *security.ClientIP) ServerOption {
	return func(s *Server) { s.ip = c }
}

// WithServerClock sets the clock used for default year/month parameters.
func WithServerClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

func WithServerLogger(l *log.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentHTTP)
		}
	}
}

// NewServer builds the API server. Call ListenAndServe on the result.
func NewServer(addr string, engine *analytics.Engine, store Store, opts ...ServerOption) *Server {
	s := &Server{
		engine: engine,
		store:  store,
		now:    time.Now,
		logger: log.Default(log.ComponentHTTP),
		tracer: trace.NewMiddleware(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ip == nil {
		s.ip, _ = security.NewClientIP()
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/records", s.handleAppendRecord)
	api.HandleFunc("GET /api/aggregate", s.handleAggregate)

	api.HandleFunc("GET /api/reports/summary", s.handleSummary)
	api.HandleFunc("GET /api/reports/comparison", s.handleComparison)
	api.HandleFunc("GET /api/reports/detailed", s.handleDetailed)
	api.HandleFunc("GET /api/reports/monthly", s.handleMonthly)
	api.HandleFunc("GET /api/reports/yearly", s.handleYearly)

	api.HandleFunc("GET /api/budgets", s.handleListBudgets)
	api.HandleFunc("POST /api/budgets", s.handleCreateBudget)
	api.HandleFunc("GET /api/budgets/evaluations", s.handleEvaluateBudgets)
	api.HandleFunc("GET /api/budgets/alerts", s.handleBudgetAlerts)
	api.HandleFunc("GET /api/budgets/performance", s.handleBudgetPerformance)
	api.HandleFunc("GET /api/budgets/{id}/evaluation", s.handleEvaluateBudget)

	api.HandleFunc("GET /api/trends", s.handleTrends)
	api.HandleFunc("GET /api/forecast", s.handleForecast)
	api.HandleFunc("GET /api/insights", s.handleInsights)
	api.HandleFunc("GET /api/patterns/weekday", s.handleWeekdayPattern)

	var apiHandler http.Handler = api
	if s.limiter != nil {
		apiHandler = s.limiter.Middleware(s.ip.Extract, func(w http.ResponseWriter, r *http.Request) {
			_ = NewJSONResponse().Status(http.StatusTooManyRequests).
				Error("rate_limited", "rate limit exceeded, retry later", "").Write(w)
		})(api)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", apiHandler)

	var handler http.Handler = mux
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = log.AccessLog(handler)
	handler = log.RequestIDMiddleware(trace.FromRequest)(handler)
	handler = log.Middleware(s.logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Metrics reports request counters for the readiness endpoint.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

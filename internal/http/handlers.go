package http

import (
	"context"
	"net/http"
	"time"

	"famfin/internal/analytics"
	"famfin/internal/middleware/ratelimit"
	"famfin/internal/middleware/trace"
)

// respond writes v as JSON, or the mapped error when err is set.
func respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = NewJSONResponse().Status(status).Data(v).Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = NewJSONResponse().Data(map[string]string{"status": "ok"}).Write(w)
}

type readyResponse struct {
	Status    string             `json:"status"`
	Requests  trace.Metrics      `json:"requests"`
	RateLimit *ratelimit.Metrics `json:"rate_limit,omitempty"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := readyResponse{Status: "ready", Requests: s.tracer.GetMetrics()}
	if s.limiter != nil {
		m := s.limiter.GetMetrics()
		resp.RateLimit = &m
	}
	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	_ = NewJSONResponse().Status(status).Data(resp).Write(w)
}

func (s *Server) handleAppendRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := ParseRecordRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.store.AppendRecord(r.Context(), rec)
	respond(w, r, http.StatusCreated, saved, err)
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	req, err := ParseAggregateRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	buckets, err := s.engine.Aggregate(r.Context(), req)
	respond(w, r, http.StatusOK, buckets, err)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRangeRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.engine.SummaryReport(r.Context(), req)
	respond(w, r, http.StatusOK, report, err)
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRangeRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.engine.ComparisonReport(r.Context(), req)
	respond(w, r, http.StatusOK, report, err)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	req, err := ParseDetailedRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.engine.DetailedReport(r.Context(), req)
	respond(w, r, http.StatusOK, report, err)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	req, err := ParseMonthRequest(r, s.now().UTC())
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.engine.MonthlySummary(r.Context(), req)
	respond(w, r, http.StatusOK, summary, err)
}

func (s *Server) handleYearly(w http.ResponseWriter, r *http.Request) {
	req, err := ParseYearRequest(r, s.now().UTC())
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.engine.YearlyReport(r.Context(), req)
	respond(w, r, http.StatusOK, report, err)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	owner, err := ParseOwner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	budgets, err := s.engine.ListBudgets(r.Context(), owner)
	respond(w, r, http.StatusOK, budgets, err)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	req, err := ParseCreateBudgetRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	budget, err := s.engine.CreateBudget(r.Context(), req)
	respond(w, r, http.StatusCreated, budget, err)
}

func (s *Server) handleEvaluateBudgets(w http.ResponseWriter, r *http.Request) {
	owner, err := ParseOwner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	evals, err := s.engine.EvaluateBudgets(r.Context(), owner)
	respond(w, r, http.StatusOK, evals, err)
}

func (s *Server) handleEvaluateBudget(w http.ResponseWriter, r *http.Request) {
	eval, err := s.engine.EvaluateBudgetByID(r.Context(), r.PathValue("id"))
	respond(w, r, http.StatusOK, eval, err)
}

func (s *Server) handleBudgetAlerts(w http.ResponseWriter, r *http.Request) {
	owner, err := ParseOwner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	alerts, err := s.engine.BudgetAlerts(r.Context(), owner)
	respond(w, r, http.StatusOK, alerts, err)
}

func (s *Server) handleBudgetPerformance(w http.ResponseWriter, r *http.Request) {
	owner, err := ParseOwner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	perf, err := s.engine.BudgetPerformance(r.Context(), owner)
	respond(w, r, http.StatusOK, perf, err)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	req, err := ParseTrendRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	analysis, err := s.engine.AnalyzeTrends(r.Context(), req)
	respond(w, r, http.StatusOK, analysis, err)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	req, err := ParseForecastRequest(r, s.engine.MaxHorizon())
	if err != nil {
		writeError(w, r, err)
		return
	}
	forecast, err := s.engine.Forecast(r.Context(), req)
	respond(w, r, http.StatusOK, forecast, err)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	owner, err := ParseOwner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	insights, err := s.engine.Insights(r.Context(), owner)
	respond(w, r, http.StatusOK, insights, err)
}

type weekdayResponse struct {
	Found   bool                      `json:"found"`
	Pattern *analytics.WeekdayPattern `json:"pattern,omitempty"`
}

func (s *Server) handleWeekdayPattern(w http.ResponseWriter, r *http.Request) {
	owner, days, err := ParseWeekdayParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pattern, found, err := s.engine.WeekdayPattern(r.Context(), owner, days)
	resp := weekdayResponse{Found: found}
	if found {
		resp.Pattern = &pattern
	}
	respond(w, r, http.StatusOK, resp, err)
}

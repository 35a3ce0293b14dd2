// Package http provides HTTP server and handler implementations.
//
// This file turns query strings and JSON bodies into the engine's typed
// requests. Each Parse* function parses and validates in one pass and
// returns a *core.ValidationError naming the offending parameter.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"famfin/internal/analytics"
	"famfin/internal/core"
	"famfin/internal/ledger"
)

const (
	dateLayout   = "2006-01-02"
	maxBodyBytes = 1 << 20
)

// queryParser reads typed values out of a query string, keeping the
// first failure.
type queryParser struct {
	values url.Values
	err    error
}

func newQueryParser(r *http.Request) *queryParser {
	return &queryParser{values: r.URL.Query()}
}

func (p *queryParser) fail(field, format string, args ...any) {
	if p.err == nil {
		p.err = core.NewValidationError(field, format, args...)
	}
}

func (p *queryParser) get(name string) string {
	return sanitizeInput(p.values.Get(name))
}

// owner reads owner_kind and owner. The kind defaults to family.
func (p *queryParser) owner() core.OwnerScope {
	kind := p.get("owner_kind")
	if kind == "" {
		kind = string(core.Family)
	}
	return core.OwnerScope{Kind: core.OwnerKind(kind), ID: p.get("owner")}
}

func (p *queryParser) date(name string) time.Time {
	v := p.get(name)
	if v == "" {
		p.fail(name, "is required (YYYY-MM-DD)")
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		p.fail(name, "must be a date in YYYY-MM-DD form, got %q", v)
		return time.Time{}
	}
	return t
}

// dateRange reads start and end as calendar days, both inclusive.
func (p *queryParser) dateRange() core.DateRange {
	start, end := p.date("start"), p.date("end")
	if p.err != nil {
		return core.DateRange{}
	}
	if end.Before(start) {
		p.fail("range", "end %s is before start %s", end.Format(dateLayout), start.Format(dateLayout))
		return core.DateRange{}
	}
	return core.DayRange(start, end)
}

// intParam returns def when the parameter is absent.
func (p *queryParser) intParam(name string, def int) int {
	v := p.get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(name, "must be an integer, got %q", v)
		return def
	}
	return n
}

// categories accepts repeated ?category= values as well as a comma list.
func (p *queryParser) categories() []string {
	var out []string
	for _, raw := range p.values["category"] {
		for _, c := range strings.Split(raw, ",") {
			out = append(out, sanitizeInput(c))
		}
	}
	return out
}

func ParseAggregateRequest(r *http.Request) (analytics.AggregateRequest, error) {
	p := newQueryParser(r)
	req := analytics.AggregateRequest{
		Owner:      p.owner(),
		Type:       core.MovementType(p.get("type")),
		Categories: p.categories(),
		Range:      p.dateRange(),
		GroupBy:    ledger.GroupBy(p.get("group_by")),
	}
	if p.err != nil {
		return req, p.err
	}
	return req, req.Validate()
}

func ParseRangeRequest(r *http.Request) (analytics.RangeRequest, error) {
	p := newQueryParser(r)
	req := analytics.RangeRequest{Owner: p.owner(), Range: p.dateRange()}
	if p.err != nil {
		return req, p.err
	}
	return req, req.Validate()
}

func ParseDetailedRequest(r *http.Request) (analytics.DetailedRequest, error) {
	p := newQueryParser(r)
	req := analytics.DetailedRequest{
		Owner:      p.owner(),
		Range:      p.dateRange(),
		Categories: p.categories(),
		Limit:      p.intParam("limit", 0),
		Offset:     p.intParam("offset", 0),
	}
	if p.err != nil {
		return req, p.err
	}
	return req, req.Validate()
}

// ParseMonthRequest defaults year and month to the month containing now.
func ParseMonthRequest(r *http.Request, now time.Time) (analytics.MonthRequest, error) {
	p := newQueryParser(r)
	req := analytics.MonthRequest{
		Owner: p.owner(),
		Year:  p.intParam("year", now.Year()),
		Month: time.Month(p.intParam("month", int(now.Month()))),
	}
	if p.err != nil {
		return req, p.err
	}
	return req, req.Validate()
}

func ParseYearRequest(r *http.Request, now time.Time) (analytics.YearRequest, error) {
	p := newQueryParser(r)
	req := analytics.YearRequest{Owner: p.owner(), Year: p.intParam("year", now.Year())}
	if p.err != nil {
		return req, p.err
	}
	return req, req.Validate()
}

// ParseTrendRequest accepts either months=N or a named period preset.
func ParseTrendRequest(r *http.Request) (analytics.TrendRequest, error) {
	p := newQueryParser(r)
	req := analytics.TrendRequest{
		Owner:       p.owner(),
		Months:      p.intParam("months", 0),
		TopK:        p.intParam("top_k", 0),
		RankingDays: p.intParam("ranking_days", 0),
	}
	if preset := p.get("period"); preset != "" {
		months, ok := analytics.TrendPresets[preset]
		if !ok {
			p.fail("period", "unknown trend period %q", preset)
		} else if req.Months == 0 {
			req.Months = months
		}
	}
	if p.err != nil {
		return req, p.err
	}
	return req, req.Validate()
}

// ParseForecastRequest checks the horizon against the engine's ceiling.
func ParseForecastRequest(r *http.Request, maxHorizon int) (analytics.ForecastRequest, error) {
	p := newQueryParser(r)
	req := analytics.ForecastRequest{Owner: p.owner(), Horizon: p.intParam("horizon", 3)}
	if p.err != nil {
		return req, p.err
	}
	if err := req.Owner.Validate(); err != nil {
		return req, err
	}
	if req.Horizon < 1 || req.Horizon > maxHorizon {
		return req, core.NewValidationError("horizon", "must be between 1 and %d, got %d", maxHorizon, req.Horizon)
	}
	return req, nil
}

// ParseOwner reads just the owner scope.
func ParseOwner(r *http.Request) (core.OwnerScope, error) {
	p := newQueryParser(r)
	owner := p.owner()
	if p.err != nil {
		return owner, p.err
	}
	return owner, owner.Validate()
}

// ParseWeekdayParams reads the owner and the lookback in days.
func ParseWeekdayParams(r *http.Request) (core.OwnerScope, int, error) {
	p := newQueryParser(r)
	owner := p.owner()
	days := p.intParam("days", analytics.DefaultRankingDays)
	if p.err != nil {
		return owner, days, p.err
	}
	if err := owner.Validate(); err != nil {
		return owner, days, err
	}
	return owner, days, nil
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		if errors.Is(err, io.EOF) {
			return core.NewValidationError("body", "request body is empty")
		}
		return core.NewValidationError("body", "%s", describeJSONError(err))
	}
	if dec.More() {
		return core.NewValidationError("body", "must contain a single JSON object")
	}
	return nil
}

func describeJSONError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %q has the wrong type", typeErr.Field)
	case errors.As(err, &maxErr):
		return fmt.Sprintf("request body larger than %d bytes", maxErr.Limit)
	default:
		return err.Error()
	}
}

// ParseCreateBudgetRequest decodes and validates a budget body.
func ParseCreateBudgetRequest(w http.ResponseWriter, r *http.Request) (analytics.CreateBudgetRequest, error) {
	var req analytics.CreateBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	return req, req.Validate()
}

// recordBody is the POST /api/records payload. occurred_at accepts a
// date or an RFC 3339 timestamp.
type recordBody struct {
	Owner       core.OwnerScope   `json:"owner"`
	Type        core.MovementType `json:"type"`
	Amount      core.Money        `json:"amount"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	OccurredAt  string            `json:"occurred_at"`
	AddedBy     string            `json:"added_by"`
}

// ParseRecordRequest decodes and validates a ledger record body.
func ParseRecordRequest(w http.ResponseWriter, r *http.Request) (core.LedgerRecord, error) {
	var body recordBody
	if err := decodeJSON(w, r, &body); err != nil {
		return core.LedgerRecord{}, err
	}
	at, err := parseTimestamp(body.OccurredAt)
	if err != nil {
		return core.LedgerRecord{}, err
	}
	rec := core.LedgerRecord{
		Owner:       body.Owner,
		Type:        body.Type,
		Amount:      body.Amount,
		Category:    sanitizeInput(body.Category),
		Description: sanitizeInput(body.Description),
		OccurredAt:  at,
		AddedBy:     sanitizeInput(body.AddedBy),
	}
	return rec, rec.Validate()
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, core.NewValidationError("occurred_at", "is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, core.NewValidationError("occurred_at", "must be YYYY-MM-DD or RFC 3339, got %q", s)
}

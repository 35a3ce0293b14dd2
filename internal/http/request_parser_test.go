package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"famfin/internal/core"
)

func TestParseRangeRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?owner_kind=individual&owner=alice&start=2025-03-01&end=2025-03-31", nil)
	req, err := ParseRangeRequest(r)
	if err != nil {
		t.Fatalf("ParseRangeRequest() error = %v", err)
	}
	if req.Owner != (core.OwnerScope{Kind: core.Individual, ID: "alice"}) {
		t.Errorf("owner = %+v", req.Owner)
	}
	wantEnd := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	if !req.Range.End.Equal(wantEnd) {
		t.Errorf("end = %v, want %v (inclusive last day)", req.Range.End, wantEnd)
	}
	if got := req.Range.Days(); got != 31 {
		t.Errorf("days = %d, want 31", got)
	}
}

func TestParseCategories(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?owner=fam-1&start=2025-03-01&end=2025-03-31&category=Food,Transport&category=Rent", nil)
	req, err := ParseDetailedRequest(r)
	if err != nil {
		t.Fatalf("ParseDetailedRequest() error = %v", err)
	}
	if strings.Join(req.Categories, "|") != "Food|Transport|Rent" {
		t.Errorf("categories = %v", req.Categories)
	}

	r = httptest.NewRequest(http.MethodGet, "/?owner=fam-1&start=2025-03-01&end=2025-03-31&category=Food,,Rent", nil)
	if _, err := ParseDetailedRequest(r); !errors.Is(err, core.ErrValidation) {
		t.Errorf("blank category error = %v, want validation error", err)
	}
}

func TestParseMonthRequestDefaults(t *testing.T) {
	now := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	req, err := ParseMonthRequest(httptest.NewRequest(http.MethodGet, "/?owner=fam-1", nil), now)
	if err != nil {
		t.Fatalf("ParseMonthRequest() error = %v", err)
	}
	if req.Year != 2025 || req.Month != time.July {
		t.Errorf("got %d-%d, want 2025-7", req.Year, req.Month)
	}

	req, err = ParseMonthRequest(httptest.NewRequest(http.MethodGet, "/?owner=fam-1&year=2024&month=2", nil), now)
	if err != nil || req.Year != 2024 || req.Month != time.February {
		t.Errorf("ParseMonthRequest() = %+v, %v", req, err)
	}
}

func TestParseTrendRequest(t *testing.T) {
	tests := []struct {
		query      string
		wantMonths int
		wantErr    bool
	}{
		{"owner=fam-1", 0, false},
		{"owner=fam-1&period=1year", 12, false},
		{"owner=fam-1&period=1year&months=4", 4, false},
		{"owner=fam-1&months=30", 0, true},
		{"owner=fam-1&period=week", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req, err := ParseTrendRequest(httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && req.Months != tt.wantMonths {
				t.Errorf("months = %d, want %d", req.Months, tt.wantMonths)
			}
		})
	}
}

func TestParseRecordRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantAt  time.Time
		wantErr string
	}{
		{
			name:   "date only",
			body:   `{"owner":{"kind":"family","id":"f"},"type":"income","amount":"1500","occurred_at":"2025-03-01"}`,
			wantAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "timestamp normalised to UTC",
			body:   `{"owner":{"kind":"family","id":"f"},"type":"expense","amount":12.5,"occurred_at":"2025-03-01T01:30:00+02:00"}`,
			wantAt: time.Date(2025, 2, 28, 23, 30, 0, 0, time.UTC),
		},
		{
			name:    "missing timestamp",
			body:    `{"owner":{"kind":"family","id":"f"},"type":"expense","amount":1}`,
			wantErr: "occurred_at",
		},
		{
			name:    "two objects",
			body:    `{"owner":{"kind":"family","id":"f"}} {}`,
			wantErr: "single JSON object",
		},
		{
			name:    "wrong type",
			body:    `{"owner":"family"}`,
			wantErr: "wrong type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/records", strings.NewReader(tt.body))
			rec, err := ParseRecordRequest(httptest.NewRecorder(), r)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRecordRequest() error = %v", err)
			}
			if !rec.OccurredAt.Equal(tt.wantAt) {
				t.Errorf("occurred_at = %v, want %v", rec.OccurredAt, tt.wantAt)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Food\x00\x07 \tand drink\n "); got != "Food \tand drink" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}

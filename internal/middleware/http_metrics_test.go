package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/captures", "/captures"},
		{"/photos", "/photos"},
		{"/booth/ws", "/booth/ws"},
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/photos/7c9e6679-7425-40de-944b-e07fc1f90ae7", "/photos/{id}"},
		{"/photos/abc123/place", "/photos/{id}/place"},
		{"/photos/abc123/caption", "/photos/{id}/caption"},
		{"/photos/abc123/export", "/photos/{id}/export"},
		{"/unknown/route", "/unknown/route"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestHTTPMetrics_RecordsRequest(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"abc"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/captures", strings.NewReader("frame-data"))
	req.Header.Set("Content-Length", "10")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := false
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["method"] == "POST" && labels["path"] == "/captures" && labels["status"] == "201" {
				found = true
				if metric.GetCounter().GetValue() != 1 {
					t.Errorf("expected counter 1, got %g", metric.GetCounter().GetValue())
				}
			}
		}
	}
	if !found {
		t.Error("expected http_requests_total sample for POST /captures 201")
	}
}

func TestHTTPMetrics_ExcludesHealthEndpoints(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, family := range families {
		if family.GetName() == "http_requests_total" && len(family.GetMetric()) > 0 {
			t.Error("expected no samples for health check endpoints")
		}
	}
}

func TestMetricsResponseWriter_Defaults(t *testing.T) {
	rr := httptest.NewRecorder()
	mrw := newMetricsResponseWriter(rr)

	// Default status when WriteHeader is never called
	if mrw.statusCode != http.StatusOK {
		t.Errorf("expected default status 200, got %d", mrw.statusCode)
	}

	mrw.Write([]byte("12345"))
	if mrw.size != 5 {
		t.Errorf("expected size 5, got %d", mrw.size)
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsHandler(cfg CORSConfig) http.Handler {
	return CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORS_AllowedOrigin(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins: []string{"https://booth.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	})

	req := httptest.NewRequest(http.MethodGet, "/photos", nil)
	req.Header.Set("Origin", "https://booth.example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://booth.example.com" {
		t.Errorf("expected allow-origin header, got %q", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins: []string{"https://booth.example.com"},
	})

	req := httptest.NewRequest(http.MethodGet, "/photos", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for disallowed origin, got %d", rr.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins: []string{"https://booth.example.com"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})

	req := httptest.NewRequest(http.MethodOptions, "/captures", nil)
	req.Header.Set("Origin", "https://booth.example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, PATCH, DELETE" {
		t.Errorf("expected allow-methods header, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Max-Age"); got != "300" {
		t.Errorf("expected max-age 300, got %q", got)
	}
}

func TestCORS_NoOriginHeader(t *testing.T) {
	// Same-origin requests carry no Origin header and pass through
	handler := corsHandler(CORSConfig{
		AllowedOrigins: []string{"https://booth.example.com"},
	})

	req := httptest.NewRequest(http.MethodGet, "/photos", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 for same-origin request, got %d", rr.Code)
	}
}

func TestCORS_EmptyAllowlistDisablesCORS(t *testing.T) {
	handler := corsHandler(CORSConfig{})

	req := httptest.NewRequest(http.MethodGet, "/photos", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 with CORS disabled, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS headers, got %q", got)
	}
}

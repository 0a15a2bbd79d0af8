package caption

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_Generate(t *testing.T) {
	var gotAuth string
	var gotBody captionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode caption request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(captionResponse{Text: "two friends laughing"}); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL, APIKey: "secret-key"}, nil)

	text, err := client.Generate(context.Background(), Request{
		Image:  []byte{0xFF, 0xD8, 0xFF},
		MIME:   "image/jpeg",
		Locale: "en-US",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "two friends laughing" {
		t.Errorf("Expected caption 'two friends laughing', got %q", text)
	}

	if gotAuth != "Bearer secret-key" {
		t.Errorf("Expected bearer auth header, got %q", gotAuth)
	}
	if gotBody.MIME != "image/jpeg" {
		t.Errorf("Expected mime image/jpeg, got %q", gotBody.MIME)
	}
	if gotBody.Locale != "en-US" {
		t.Errorf("Expected locale en-US, got %q", gotBody.Locale)
	}
	decoded, err := base64.StdEncoding.DecodeString(gotBody.Image)
	if err != nil || len(decoded) != 3 {
		t.Errorf("Expected base64-encoded image bytes, got %q", gotBody.Image)
	}
}

func TestClient_Generate_TrimsWhitespace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(captionResponse{Text: "  a walk in the park \n"})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL}, nil)
	text, err := client.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "a walk in the park" {
		t.Errorf("Expected trimmed caption, got %q", text)
	}
}

func TestClient_Generate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL}, nil)
	if _, err := client.Generate(context.Background(), Request{}); err == nil {
		t.Error("Expected error for 503 response, got nil")
	}
}

func TestClient_Generate_EmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(captionResponse{Text: "   "})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL}, nil)
	if _, err := client.Generate(context.Background(), Request{}); err == nil {
		t.Error("Expected error for blank caption text, got nil")
	}
}

func TestClient_GenerateWithFallback(t *testing.T) {
	t.Run("success passes caption through", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(captionResponse{Text: "sunset over the bay"})
		}))
		defer server.Close()

		client := NewClient(ClientConfig{URL: server.URL}, nil)
		text := client.GenerateWithFallback(context.Background(), Request{})
		if text != "sunset over the bay" {
			t.Errorf("Expected service caption, got %q", text)
		}
	})

	t.Run("failure returns configured fallback", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(ClientConfig{URL: server.URL, Fallback: "picture perfect"}, nil)
		text := client.GenerateWithFallback(context.Background(), Request{})
		if text != "picture perfect" {
			t.Errorf("Expected fallback caption, got %q", text)
		}
	})

	t.Run("unreachable service returns default fallback", func(t *testing.T) {
		client := NewClient(ClientConfig{
			URL:     "http://127.0.0.1:1", // nothing listens here
			Timeout: time.Second,
		}, nil)
		text := client.GenerateWithFallback(context.Background(), Request{})
		if text != DefaultFallback {
			t.Errorf("Expected default fallback %q, got %q", DefaultFallback, text)
		}
	})
}

func TestClient_Generate_RecordsMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	metrics := NewMetrics()
	client := NewClient(ClientConfig{URL: server.URL}, metrics)

	_, _ = client.Generate(context.Background(), Request{})
	_, _ = client.Generate(context.Background(), Request{})

	if got := getCounterValue(t, metrics.requests); got != 2 {
		t.Errorf("Expected 2 requests recorded, got %g", got)
	}
	if got := getCounterValue(t, metrics.failures); got != 2 {
		t.Errorf("Expected 2 failures recorded, got %g", got)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(ClientConfig{URL: "http://caption.internal"}, nil)

	if client.Fallback() != DefaultFallback {
		t.Errorf("Expected default fallback %q, got %q", DefaultFallback, client.Fallback())
	}
}

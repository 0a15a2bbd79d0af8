// Package caption wraps the external image-captioning service. Failures
// never propagate to the booth: callers get a fixed fallback string and the
// error is logged and counted.
package caption

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultFallback is used when no fallback string is configured.
const DefaultFallback = "A moment worth keeping"

// ErrEmptyCaption is returned when the service responds without text.
var ErrEmptyCaption = errors.New("caption service returned empty text")

// Request carries the image to caption and the locale the text should be
// written in.
type Request struct {
	Image  []byte
	MIME   string
	Locale string
}

// Generator produces a short descriptive caption for an image.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Captioner is the degradation-safe interface handlers depend on: it always
// produces a caption, substituting the fallback string on failure.
type Captioner interface {
	GenerateWithFallback(ctx context.Context, req Request) string
}

// ClientConfig configures the captioning HTTP client.
type ClientConfig struct {
	// URL of the captioning endpoint.
	URL string
	// APIKey sent as a bearer token. Optional.
	APIKey string
	// Fallback string returned when the service fails.
	Fallback string
	// Timeout for a single captioning call.
	Timeout time.Duration
}

// Client calls the captioning service over HTTP. Outbound requests are
// traced via otelhttp.
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
	fallback   string
	metrics    *Metrics
}

// NewClient creates a captioning client. Metrics may be nil.
func NewClient(cfg ClientConfig, metrics *Metrics) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	fallback := cfg.Fallback
	if fallback == "" {
		fallback = DefaultFallback
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		url:      cfg.URL,
		apiKey:   cfg.APIKey,
		fallback: fallback,
		metrics:  metrics,
	}
}

// captionRequest is the wire format sent to the captioning service.
type captionRequest struct {
	Image  string `json:"image"` // base64-encoded
	MIME   string `json:"mime"`
	Locale string `json:"locale"`
}

// captionResponse is the wire format returned by the captioning service.
type captionResponse struct {
	Text string `json:"text"`
}

// Generate requests a caption for the image. Returns an error on transport
// failure, non-2xx status, or empty text.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := c.generate(ctx, req)
	if c.metrics != nil {
		c.metrics.IncRequests()
		c.metrics.ObserveLatency(time.Since(start).Seconds())
		if err != nil {
			c.metrics.IncFailures()
		}
	}
	return text, err
}

func (c *Client) generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(captionRequest{
		Image:  base64.StdEncoding.EncodeToString(req.Image),
		MIME:   req.MIME,
		Locale: req.Locale,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode caption request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build caption request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("caption request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little of the body for the log line, then discard
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("caption service returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var parsed captionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode caption response: %w", err)
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return "", ErrEmptyCaption
	}
	return text, nil
}

// GenerateWithFallback requests a caption and degrades to the fallback
// string on any failure. The error is logged, never returned.
func (c *Client) GenerateWithFallback(ctx context.Context, req Request) string {
	text, err := c.Generate(ctx, req)
	if err != nil {
		slog.WarnContext(ctx, "caption generation failed, using fallback",
			"error", err,
			"locale", req.Locale,
		)
		return c.fallback
	}
	return text
}

// Fallback returns the configured fallback string.
func (c *Client) Fallback() string {
	return c.fallback
}

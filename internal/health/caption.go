// Package health provides dependency health checkers for readiness probes.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// CaptionChecker implements health checking for the captioning service.
type CaptionChecker struct {
	url    string
	client *http.Client
}

// NewCaptionChecker creates a health checker for the captioning endpoint.
func NewCaptionChecker(url string) *CaptionChecker {
	return &CaptionChecker{
		url: url,
		client: &http.Client{
			Timeout: 3 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// HealthCheck verifies the captioning service is reachable. The service has
// no dedicated health endpoint, so any HTTP response short of a server error
// counts as reachable; only transport failures and 5xx are unhealthy.
func (c *CaptionChecker) HealthCheck(ctx context.Context) error {
	if c.url == "" {
		return fmt.Errorf("caption service url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach caption service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("caption service unhealthy: status code %d", resp.StatusCode)
	}

	return nil
}

package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/thegator/loansim/pkg/logger"
)

// Client is an HTTP client wrapper with retry logic and rate limiting
// ⭐ SSOT: all outbound HTTP requests go through this client
type Client struct {
	httpClient  *http.Client
	logger      *logger.Logger
	limiter     *rate.Limiter
	retryConfig RetryConfig
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Enabled      bool
}

// New creates a new HTTP client. rps caps requests per second against the
// remote host; rps <= 0 means unlimited.
func New(log *logger.Logger, rps float64) *Client {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // dataset files run to hundreds of MB
		},
		logger:  log,
		limiter: limiter,
		retryConfig: RetryConfig{
			MaxRetries:   3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     10 * time.Second,
			Enabled:      true,
		},
	}
}

// WithRetry configures retry behavior
func (c *Client) WithRetry(maxRetries int, initialDelay time.Duration) *Client {
	c.retryConfig.MaxRetries = maxRetries
	c.retryConfig.InitialDelay = initialDelay
	c.retryConfig.Enabled = true
	return c
}

// DisableRetry disables automatic retry
func (c *Client) DisableRetry() *Client {
	c.retryConfig.Enabled = false
	return c
}

// Get performs a GET request with rate limiting and retries
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}

	return c.do(req)
}

// Download fetches url and writes the body to destPath atomically
// (temp file + rename).
func (c *Client) Download(ctx context.Context, url, destPath string) (int64, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: unexpected status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", destPath, err)
	}

	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return 0, fmt.Errorf("rename temp file: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"url":   url,
		"dest":  destPath,
		"bytes": n,
	}).Info("Download complete")

	return n, nil
}

// do executes the request with rate limiting and retry on 5xx / transport
// errors
func (c *Client) do(req *http.Request) (*http.Response, error) {
	attempts := 1
	if c.retryConfig.Enabled {
		attempts += c.retryConfig.MaxRetries
	}

	delay := c.retryConfig.InitialDelay
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(req.Context()); err != nil {
				return nil, fmt.Errorf("rate limiter wait: %w", err)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			resp.Body.Close()
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
		}

		if attempt < attempts-1 {
			c.logger.WithFields(map[string]interface{}{
				"url":     req.URL.String(),
				"attempt": attempt + 1,
				"error":   lastErr.Error(),
			}).Warn("HTTP request failed, retrying")

			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(delay):
			}

			delay *= 2
			if delay > c.retryConfig.MaxDelay {
				delay = c.retryConfig.MaxDelay
			}
		}
	}

	return nil, fmt.Errorf("request to %s failed after %d attempts: %w", req.URL.String(), attempts, lastErr)
}

// Package httpclient provides the rate-limited, retrying HTTP client used for
// every outbound ERP API call. Failures are retried with exponential backoff,
// an expired credential triggers a refresh before the next attempt, and an
// HTTP 429 waits out a longer fixed delay. After the configured number of
// attempts the client gives up with a terminal RetryExhaustedError.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultMaxAttempts    = 8
	defaultInitialBackoff = 500 * time.Millisecond
	defaultRateLimitDelay = 15 * time.Second
	defaultRequestsPerSec = 3.0

	// maxResponseBody caps how much of an error response body is read for
	// inclusion in error messages.
	maxResponseBody = 2048
)

// CredentialSource provides the bearer credential for a tenant and refreshes
// it when the ERP reports it as expired.
type CredentialSource interface {
	// Token returns the current access token
	Token(ctx context.Context) (string, error)

	// Refresh obtains a new access token after an HTTP 401.
	// Subsequent Token calls must return the refreshed value.
	Refresh(ctx context.Context) error
}

// Client performs JSON GET requests against the remote API
type Client interface {
	// GetJSON fetches url and decodes the JSON response body into out.
	// A nil out discards the body.
	GetJSON(ctx context.Context, url string, out any) error
}

// Option configures the client
type Option func(*defaultClient)

// WithTimeout sets the per-request HTTP timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *defaultClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithMaxAttempts sets the total number of attempts per request
func WithMaxAttempts(attempts int) Option {
	return func(c *defaultClient) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

// WithInitialBackoff sets the base retry delay, which doubles per attempt
func WithInitialBackoff(d time.Duration) Option {
	return func(c *defaultClient) {
		if d > 0 {
			c.initialBackoff = d
		}
	}
}

// WithRateLimitDelay sets the fixed delay applied after an HTTP 429 when the
// response carries no Retry-After header
func WithRateLimitDelay(d time.Duration) Option {
	return func(c *defaultClient) {
		if d > 0 {
			c.rateLimitDelay = d
		}
	}
}

// WithRequestsPerSecond paces outbound calls with a token bucket
func WithRequestsPerSecond(rps float64) Option {
	return func(c *defaultClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// defaultClient is the default Client implementation
type defaultClient struct {
	httpClient     *http.Client
	creds          CredentialSource
	limiter        *rate.Limiter
	maxAttempts    int
	initialBackoff time.Duration
	rateLimitDelay time.Duration
}

// NewDefaultClient creates a retrying client authenticating with creds
func NewDefaultClient(creds CredentialSource, opts ...Option) Client {
	c := &defaultClient{
		httpClient:     &http.Client{Timeout: defaultTimeout},
		creds:          creds,
		limiter:        rate.NewLimiter(rate.Limit(defaultRequestsPerSec), 1),
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		rateLimitDelay: defaultRateLimitDelay,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetJSON fetches url with bounded retry/backoff and decodes the response into out
func (c *defaultClient) GetJSON(ctx context.Context, url string, out any) error {
	var (
		attempts int
		lastErr  error
	)

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.initialBackoff
	expBackoff.Multiplier = 2

	operation := func() (struct{}, error) {
		attempts++
		if err := c.attempt(ctx, url, out); err != nil {
			lastErr = err
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	//nolint:gosec // maxAttempts is validated positive at construction
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(c.maxAttempts)),
	)
	if err == nil {
		return nil
	}

	// Legitimate negative results and context cancellation pass through
	// untouched; only genuine retry exhaustion gets the terminal wrapper.
	if errors.Is(err, ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		attempts < c.maxAttempts {
		return err
	}

	if lastErr == nil {
		lastErr = err
	}
	return &RetryExhaustedError{Attempts: attempts, Err: lastErr}
}

// attempt performs a single HTTP GET. The returned error decides whether the
// retry loop continues: backoff.Permanent stops it, a RetryAfterError
// postpones the next attempt by its duration, anything else retries on the
// exponential schedule.
func (c *defaultClient) attempt(ctx context.Context, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return backoff.Permanent(err)
	}

	token, err := c.creds.Token(ctx)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to obtain access token: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are transient
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response from %s: %w", url, err))
		}
		return nil

	case resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, url))

	case resp.StatusCode == http.StatusUnauthorized:
		// Refresh the credential so the next attempt uses a fresh token
		if refreshErr := c.creds.Refresh(ctx); refreshErr != nil {
			return backoff.Permanent(fmt.Errorf("credential refresh failed: %w", refreshErr))
		}
		slog.Debug("Refreshed expired credential", "url", url)
		return NewHTTPError(resp.StatusCode, url, readErrorBody(resp))

	case resp.StatusCode == http.StatusTooManyRequests:
		delay := c.rateLimitDelay
		if retryAfter := parseRetryAfter(resp); retryAfter > 0 {
			delay = retryAfter
		}
		slog.Debug("Rate limited by remote API", "url", url, "delay", delay)
		return fmt.Errorf("%w: %s",
			&backoff.RetryAfterError{Duration: delay},
			NewHTTPError(resp.StatusCode, url, readErrorBody(resp)))

	default:
		// 5xx and anything unexpected retries on the exponential schedule
		return NewHTTPError(resp.StatusCode, url, readErrorBody(resp))
	}
}

// readErrorBody reads a bounded prefix of an error response body
func readErrorBody(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return ""
	}
	return string(body)
}

// parseRetryAfter returns the Retry-After header as a duration, or zero
func parseRetryAfter(resp *http.Response) time.Duration {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

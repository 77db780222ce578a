// Package connector implements the HTTP client abstraction shared by the
// three connector kinds: a single free-function request path
// parameterised by kind-specific config, not a base-class hierarchy.
package connector

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"comradarr/internal/adapter/observability"
	"comradarr/internal/domain"
)

// Config parameterises one connector's HTTP client.
type Config struct {
	BaseURL     string
	APIKey      string
	UserAgent   string
	Timeout     time.Duration
	RetryBase   time.Duration
	RetryMax    time.Duration
	RetryMult   float64
	RetryJitter float64

	// RequestsPerSecond caps this client's own outbound request rate, in
	// addition to (never instead of) the durable per-connector throttle
	// enforcer. Zero disables client-side pacing. Unlike the throttle
	// enforcer's counters, this limiter is purely in-process: it smooths a
	// single client's burstiness and carries no state across restarts.
	RequestsPerSecond float64

	// CircuitBreakerMaxFailures and CircuitBreakerResetTimeout tune the
	// per-base-URL circuit breaker that trips on repeated retryable
	// failures against this connector (network/server/timeout/rate_limit;
	// see request's use of observability.CircuitBreaker). Zero values fall
	// back to 5 failures / 30s.
	CircuitBreakerMaxFailures  int
	CircuitBreakerResetTimeout time.Duration
}

// DefaultTimeout is the request timeout used when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// DefaultCircuitBreakerMaxFailures and DefaultCircuitBreakerResetTimeout are
// the fallback circuit breaker tuning values (Config zero value).
const (
	DefaultCircuitBreakerMaxFailures  = 5
	DefaultCircuitBreakerResetTimeout = 30 * time.Second
)

// Client is the shared HTTP transport used by every connector-kind
// implementation. It never branches on kind; command shaping and response
// parsing happen one layer up, in connectorClient (connector_client.go).
type Client struct {
	cfg     Config
	hc      *http.Client
	limiter *rate.Limiter
	cb      *observability.CircuitBreaker
}

// New constructs a Client with an otelhttp-instrumented transport.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "comradarr/1.0"
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 30 * time.Second
	}
	if cfg.RetryMult <= 0 {
		cfg.RetryMult = 2
	}
	if cfg.RetryJitter <= 0 {
		cfg.RetryJitter = 0.25
	}
	if cfg.CircuitBreakerMaxFailures <= 0 {
		cfg.CircuitBreakerMaxFailures = DefaultCircuitBreakerMaxFailures
	}
	if cfg.CircuitBreakerResetTimeout <= 0 {
		cfg.CircuitBreakerResetTimeout = DefaultCircuitBreakerResetTimeout
	}

	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "connector " + r.Method + " " + r.URL.Path
		}),
	)

	c := &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.Timeout, Transport: transport},
		cb:  observability.GetCircuitBreaker(cfg.BaseURL, cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerResetTimeout),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// request performs a single HTTP round trip against endpoint, decoding a
// JSON response into out (when out is non-nil), and mapping any failure
// into the upstream error taxonomy via *domain.UpstreamError. The round trip is
// gated by a per-base-URL circuit breaker (observability.CircuitBreaker):
// repeated retryable failures (network/server/timeout/rate_limit) trip it,
// and further calls fail fast without reaching the network until it
// resets. Non-retryable categories (authentication/not_found/validation/
// ssl) are client-side faults, not upstream-availability signals, and
// never count against the breaker.
func (c *Client) request(ctx domain.Context, method, endpoint string, body any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.NewUpstreamError(domain.CategoryTimeout, 0, err)
		}
	}

	var callErr error
	breakerErr := c.cb.Call(func() error {
		callErr = c.doRequest(ctx, method, endpoint, body, out)
		if callErr == nil {
			return nil
		}
		if upErr, ok := domain.AsUpstreamError(callErr); ok && !upErr.Retryable() {
			return nil
		}
		return callErr
	})
	if breakerErr != nil && callErr == nil {
		// The breaker rejected the call before doRequest ever ran.
		return domain.NewUpstreamError(domain.CategoryNetwork, 0, breakerErr)
	}
	return callErr
}

// doRequest performs the actual HTTP round trip; split out of request so
// the circuit breaker wraps exactly the network-facing work.
func (c *Client) doRequest(ctx domain.Context, method, endpoint string, body any, out any) error {
	fullURL, err := url.JoinPath(c.cfg.BaseURL, endpoint)
	if err != nil {
		return domain.NewUpstreamError(domain.CategoryNetwork, 0, err)
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return domain.NewUpstreamError(domain.CategoryValidation, 0, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return domain.NewUpstreamError(domain.CategoryNetwork, 0, err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.NewUpstreamError(domain.CategoryValidation, resp.StatusCode, err)
		}
		return nil
	}

	return classifyStatusError(resp)
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewUpstreamError(domain.CategoryTimeout, 0, err)
	}
	var tlsErr *tls.CertificateVerificationError
	if errors.As(err, &tlsErr) {
		return domain.NewUpstreamError(domain.CategorySSL, 0, err)
	}
	if strings.Contains(err.Error(), "certificate") {
		return domain.NewUpstreamError(domain.CategorySSL, 0, err)
	}
	return domain.NewUpstreamError(domain.CategoryNetwork, 0, err)
}

func classifyStatusError(resp *http.Response) error {
	bodySnippet := readSnippet(resp.Body, 512)
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, bodySnippet)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.NewUpstreamError(domain.CategoryAuthentication, resp.StatusCode, cause)
	case resp.StatusCode == http.StatusNotFound:
		return domain.NewUpstreamError(domain.CategoryNotFound, resp.StatusCode, cause)
	case resp.StatusCode == http.StatusTooManyRequests:
		upErr := domain.NewUpstreamError(domain.CategoryRateLimit, resp.StatusCode, cause)
		upErr.RetryAfterSeconds = parseRetryAfterSeconds(resp.Header.Get("Retry-After"))
		return upErr
	case resp.StatusCode >= 500:
		return domain.NewUpstreamError(domain.CategoryServer, resp.StatusCode, cause)
	default:
		return domain.NewUpstreamError(domain.CategoryValidation, resp.StatusCode, cause)
	}
}

func readSnippet(r io.Reader, n int) string {
	buf := make([]byte, n)
	m, _ := io.ReadFull(r, buf)
	return string(buf[:m])
}

// parseRetryAfterSeconds parses a Retry-After header as delta-seconds or an
// HTTP-date, returning 0 when absent or unparseable.
func parseRetryAfterSeconds(v string) int {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
		return secs
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			return 0
		}
		return int(d.Seconds())
	}
	return 0
}

// requestWithRetry wraps request in bounded exponential backoff.
// A rate_limit error with RetryAfterSeconds sleeps that value directly;
// otherwise it backs off per cfg.RetryBase/RetryMax/RetryMult. Errors whose
// category is not retryable propagate immediately.
func (c *Client) requestWithRetry(ctx domain.Context, method, endpoint string, body any, out any) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.cfg.RetryBase
	expo.MaxInterval = c.cfg.RetryMax
	expo.Multiplier = c.cfg.RetryMult
	expo.RandomizationFactor = c.cfg.RetryJitter
	expo.MaxElapsedTime = 0 // bounded by ctx deadline, not elapsed wall time

	bo := backoff.WithContext(expo, ctx)

	op := func() error {
		err := c.request(ctx, method, endpoint, body, out)
		if err == nil {
			return nil
		}

		upErr, ok := domain.AsUpstreamError(err)
		if !ok || !upErr.Retryable() {
			return backoff.Permanent(err)
		}

		if upErr.Category == domain.CategoryRateLimit && upErr.RetryAfterSeconds > 0 {
			slog.Warn("connector rate limited, honoring retry-after",
				slog.String("endpoint", endpoint),
				slog.Int("retry_after_seconds", upErr.RetryAfterSeconds))
			return backoff.RetryAfter(upErr.RetryAfterSeconds)
		}

		slog.Warn("connector request failed, retrying",
			slog.String("endpoint", endpoint),
			slog.String("category", string(upErr.Category)))
		return err
	}

	if err := backoff.Retry(op, bo); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		return err
	}
	return nil
}

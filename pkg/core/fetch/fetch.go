// Package fetch provides the rate-limited HTTP client every EDGAR request
// goes through. One token bucket is shared across all request types so the
// process as a whole stays under the SEC's fair-access ceiling.
package fetch

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

const (
	// requestsPerSecond is the SEC fair-access ceiling. Burst stays at 1 so
	// no 1-second window ever sees more than requestsPerSecond requests,
	// even when many workers queue up behind the limiter at once.
	requestsPerSecond = 10

	maxRetries     = 3
	baseBackoff    = 1 * time.Second
	maxRetryAfter  = 60 * time.Second
	requestTimeout = 30 * time.Second

	// maxBodyBytes caps reads; some full-text filings run past 100 MB and we
	// want an explicit failure rather than unbounded memory growth.
	maxBodyBytes = 256 << 20
)

// rateThresholdMarker is how EDGAR phrases a soft block inside a 403 body.
// Those responses are rate limiting in disguise and retried as such.
const rateThresholdMarker = "Request Rate Threshold Exceeded"

// Client wraps an http.Client with the shared limiter and retry policy.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    *zap.Logger
	backoff   func(attempt int) time.Duration
}

// NewClient builds a Client identified by userAgent, which must follow the
// SEC's "Org Name contact@domain" convention. Placeholder identities are
// rejected up front so a misconfigured run fails before its first request.
func NewClient(userAgent string) (*Client, error) {
	ua := strings.TrimSpace(userAgent)
	if ua == "" {
		return nil, errs.New(errs.KindConfig, "user agent is required (format: \"Org Name email@domain\")")
	}
	if !strings.Contains(ua, "@") || strings.Contains(ua, "example.com") {
		return nil, errs.New(errs.KindConfig, "user agent %q needs a real contact email", ua)
	}
	return &Client{
		http:      &http.Client{Timeout: requestTimeout},
		limiter:   rate.NewLimiter(requestsPerSecond, 1),
		userAgent: ua,
		logger:    zap.L().Named("fetch"),
		backoff:   backoffDelay,
	}, nil
}

// Get fetches url, blocking on the shared limiter before each attempt.
// Retryable failures (429, 5xx, transport errors, soft-blocked 403s) are
// retried up to maxRetries times with exponential backoff; a Retry-After
// header extends the computed delay. 404 returns NotFound and other non-429
// 4xx responses fail immediately without retry.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, retryAfter, retryable, err := c.do(ctx, url)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}

		delay := c.backoff(attempt)
		if retryAfter > 0 {
			delay = max(delay, min(retryAfter, maxRetryAfter))
		}
		c.logger.Warn("retrying request",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// do issues one attempt. Transport errors, 429, soft-blocked 403s, and 5xx
// report retryable; every other 4xx is a denial that surfaces immediately.
func (c *Client) do(ctx context.Context, url string) (body []byte, retryAfter time.Duration, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, false, errs.Wrap(errs.KindFetch, err)
	}
	// Accept-Encoding stays unset so the transport negotiates gzip and
	// decompresses transparently.
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, true, errs.Wrap(errs.KindFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return nil, 0, true, errs.Wrap(errs.KindFetch, readErr)
		}
		return data, 0, false, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, false, errs.New(errs.KindNotFound, "GET %s: 404", url)

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), true,
			errs.New(errs.KindRateLimited, "GET %s: 429", url)

	case resp.StatusCode == http.StatusForbidden:
		// EDGAR soft-blocks with a 403 whose body names the rate threshold.
		// Anything else is a genuine denial and not worth retrying.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if strings.Contains(string(snippet), rateThresholdMarker) {
			return nil, 0, true, errs.New(errs.KindRateLimited, "GET %s: 403 rate threshold exceeded", url)
		}
		return nil, 0, false, errs.New(errs.KindFetch, "GET %s: 403", url)

	case resp.StatusCode >= 500:
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), true,
			errs.New(errs.KindFetch, "GET %s: %d", url, resp.StatusCode)

	default:
		return nil, 0, false, errs.New(errs.KindFetch, "GET %s: unexpected status %d", url, resp.StatusCode)
	}
}

// backoffDelay is base * 2^attempt with +/-25% jitter.
func backoffDelay(attempt int) time.Duration {
	d := float64(baseBackoff) * math.Pow(2, float64(attempt))
	jitter := (rand.Float64() - 0.5) * 0.5 * d
	return time.Duration(d + jitter)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

package pubmed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultUserAgent = "PubMedHarvester/1.0 (https://github.com/biolit/pubmed-harvester)"

	transportRetries = 3
	transportBackoff = time.Second
)

// transport is the rate-limited HTTP layer under both E-utilities
// endpoints. NCBI allows 3 requests per second without an API key and 10
// with one; the limiter holds requests below the configured rate, and
// 429 or 5xx responses are retried a few times, honoring Retry-After.
type transport struct {
	client  *http.Client
	limiter *rate.Limiter
	backoff time.Duration
	retries int
}

func newTransport(cfg Config) *transport {
	return &transport{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.BurstSize),
		backoff: transportBackoff,
		retries: transportRetries,
	}
}

// do sends req, waiting on the limiter before every attempt. Transport
// errors and retryable statuses are re-attempted; context cancellation
// ends the attempt chain immediately.
func (t *transport) do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", defaultUserAgent)
	}

	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		resp, err := t.client.Do(req)
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if attempt >= t.retries {
				return nil, fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
			}
			if err := sleepContext(ctx, t.backoff); err != nil {
				return nil, err
			}

		case retryableStatus(resp.StatusCode):
			delay := t.retryDelay(resp)
			status := resp.StatusCode
			drain(resp)
			if attempt >= t.retries {
				return nil, fmt.Errorf("giving up after %d attempts, last status %d", attempt+1, status)
			}
			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}

		default:
			return resp, nil
		}
	}
}

// retryDelay honors Retry-After when the server sends one, in either
// seconds or HTTP-date form.
func (t *transport) retryDelay(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return t.backoff
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return t.backoff
}

// retryableStatus reports whether the server asked us to back off (429)
// or failed transiently (5xx).
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// drain discards and closes a response body so the connection can be
// reused across attempts.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// sleepContext pauses for d unless ctx ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

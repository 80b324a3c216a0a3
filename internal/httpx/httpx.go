// Package httpx runs HTTP requests with bounded retries for rate limiting and transient faults.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusError is returned for a non-2xx response once retries are exhausted or not applicable.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpx: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, Snippet(e.Body, 500))
}

// Snippet trims b to at most max bytes for inclusion in error messages.
func Snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Policy says how often and how patiently a request is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Statuses that are worth another attempt.  Any 5xx is retried as well.
	RetryStatuses map[int]bool
}

// DefaultPolicy retries rate limiting (the CMA allows a handful of requests per second) and
// gateway errors.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 6,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    20 * time.Second,
		RetryStatuses: map[int]bool{
			http.StatusTooManyRequests: true,
			http.StatusRequestTimeout:  true,
		},
	}
}

// NoRetry performs a single attempt.
func NoRetry() Policy {
	p := DefaultPolicy()
	p.MaxAttempts = 1
	return p
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.RetryStatuses == nil {
		p.RetryStatuses = d.RetryStatuses
	}
	return p
}

func (p Policy) retryable(code int) bool {
	return p.RetryStatuses[code] || (code >= 500 && code <= 599)
}

// Do sends the request produced by build, retrying per policy.  build is called once per
// attempt so that request bodies can be replayed.  The response body is always fully read and
// returned; on a non-2xx outcome the error is a *StatusError.
func Do(ctx context.Context, client *http.Client, build func(context.Context) (*http.Request, error), policy Policy) (*http.Response, []byte, error) {
	policy = policy.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		req, err := build(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("httpx: couldn't build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			if !transient(err) {
				return nil, nil, fmt.Errorf("httpx: %s %s: %w", req.Method, req.URL, err)
			}
			lastErr = err
			if err := wait(ctx, attempt, policy, 0); err != nil {
				return nil, nil, err
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			if !transient(err) {
				return resp, body, fmt.Errorf("httpx: couldn't read response body: %w", err)
			}
			lastErr = err
			if err := wait(ctx, attempt, policy, 0); err != nil {
				return nil, nil, err
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, body, nil
		}

		statusErr := &StatusError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
		}
		if !policy.retryable(resp.StatusCode) || attempt == policy.MaxAttempts {
			return resp, body, statusErr
		}
		lastErr = statusErr
		if err := wait(ctx, attempt, policy, RetryAfter(resp)); err != nil {
			return nil, nil, err
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return nil, nil, fmt.Errorf("httpx: giving up after %d attempts: %w", policy.MaxAttempts, lastErr)
}

func wait(ctx context.Context, attempt int, policy Policy, retryAfter time.Duration) error {
	if attempt >= policy.MaxAttempts {
		return nil
	}
	return sleep(ctx, backoff(attempt, policy, retryAfter))
}

func backoff(attempt int, policy Policy, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	d := policy.BaseDelay << (attempt - 1)
	if d > policy.MaxDelay || d <= 0 {
		d = policy.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(policy.BaseDelay)/2 + 1))
	return d + jitter
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func transient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected eof")
}

// RetryAfter reads a Retry-After header in seconds or HTTP-date form, falling back to the CMA's
// X-Contentful-RateLimit-Reset seconds header.  Zero means absent.
func RetryAfter(resp *http.Response) time.Duration {
	for _, h := range []string{"Retry-After", "X-Contentful-RateLimit-Reset"} {
		v := strings.TrimSpace(resp.Header.Get(h))
		if v == "" {
			continue
		}
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}
	return 0
}

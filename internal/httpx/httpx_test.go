package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

type mockRoundTripper struct {
	mu        sync.Mutex
	responses []*http.Response
	errs      []error
	calls     int
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.calls >= len(m.responses) {
		return nil, errors.New("no more responses")
	}
	resp, err := m.responses[m.calls], m.errs[m.calls]
	m.calls++
	return resp, err
}

func newMockClient(responses []*http.Response, errs []error) (*http.Client, *mockRoundTripper) {
	for len(errs) < len(responses) {
		errs = append(errs, nil)
	}
	rt := &mockRoundTripper{responses: responses, errs: errs}
	return &http.Client{Transport: rt}, rt
}

func newMockResponse(status int, body string, headers map[string]string) *http.Response {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     h,
	}
}

func get(ctx context.Context) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, "https://example.com/thing", nil)
}

func fastPolicy() Policy {
	p := DefaultPolicy()
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond
	return p
}

func TestDoSuccess(t *testing.T) {
	client, _ := newMockClient([]*http.Response{newMockResponse(200, `{"ok":true}`, nil)}, nil)

	resp, body, err := Do(context.Background(), client, get, fastPolicy())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("Expected body %q, got %q", `{"ok":true}`, body)
	}
}

func TestDoRetriesRateLimit(t *testing.T) {
	client, rt := newMockClient([]*http.Response{
		newMockResponse(429, `{"sys":{"id":"RateLimitExceeded"}}`, map[string]string{"X-Contentful-RateLimit-Reset": "0"}),
		newMockResponse(200, `{}`, nil),
	}, nil)

	_, _, err := Do(context.Background(), client, get, fastPolicy())
	if err != nil {
		t.Fatalf("Expected no error after retry, got %v", err)
	}
	if rt.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", rt.calls)
	}
}

func TestDoDoesNotRetryValidation(t *testing.T) {
	client, rt := newMockClient([]*http.Response{
		newMockResponse(422, `{"sys":{"id":"ValidationFailed"}}`, nil),
		newMockResponse(200, `{}`, nil),
	}, nil)

	_, _, err := Do(context.Background(), client, get, fastPolicy())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected *StatusError, got %T %v", err, err)
	}
	if statusErr.StatusCode != 422 {
		t.Errorf("Expected status 422, got %d", statusErr.StatusCode)
	}
	if rt.calls != 1 {
		t.Errorf("Expected 1 call, got %d", rt.calls)
	}
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	client, rt := newMockClient([]*http.Response{
		newMockResponse(503, "down", nil),
		newMockResponse(503, "down", nil),
	}, nil)

	p := fastPolicy()
	p.MaxAttempts = 2
	_, _, err := Do(context.Background(), client, get, p)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 503 {
		t.Errorf("Expected 503 *StatusError, got %v", err)
	}
	if rt.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", rt.calls)
	}
}

func TestDoTransientNetworkError(t *testing.T) {
	client, _ := newMockClient(
		[]*http.Response{nil, newMockResponse(200, "fine", nil)},
		[]error{errors.New("read: connection reset by peer"), nil},
	)

	_, body, err := Do(context.Background(), client, get, fastPolicy())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(body) != "fine" {
		t.Errorf("Expected body %q, got %q", "fine", body)
	}
}

func TestDoPermanentNetworkError(t *testing.T) {
	client, rt := newMockClient([]*http.Response{nil}, []error{errors.New("no such host")})

	_, _, err := Do(context.Background(), client, get, fastPolicy())
	if err == nil || !strings.Contains(err.Error(), "no such host") {
		t.Errorf("Expected no such host error, got %v", err)
	}
	if rt.calls != 1 {
		t.Errorf("Expected 1 call, got %d", rt.calls)
	}
}

func TestDoBuildError(t *testing.T) {
	client, _ := newMockClient(nil, nil)
	build := func(ctx context.Context) (*http.Request, error) {
		return nil, errors.New("bad request")
	}
	if _, _, err := Do(context.Background(), client, build, fastPolicy()); err == nil {
		t.Error("Expected build error, got nil")
	}
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRetryAfter(t *testing.T) {
	resp := newMockResponse(429, "", map[string]string{"Retry-After": "3"})
	if got := RetryAfter(resp); got != 3*time.Second {
		t.Errorf("Expected 3s, got %v", got)
	}
	resp = newMockResponse(429, "", nil)
	if got := RetryAfter(resp); got != 0 {
		t.Errorf("Expected 0, got %v", got)
	}
}

func TestSnippet(t *testing.T) {
	if got := Snippet([]byte("  short  "), 10); got != "short" {
		t.Errorf("Expected %q, got %q", "short", got)
	}
	if got := Snippet([]byte("a long body"), 6); got != "a long..." {
		t.Errorf("Expected %q, got %q", "a long...", got)
	}
}

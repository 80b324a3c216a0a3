package server

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/toothbrush/epi-contentful-sync/jobs"
	"github.com/toothbrush/epi-contentful-sync/migrate"
)

type call struct {
	op    string
	types []string
	ids   []string
}

// fakeMigrator records its calls.  While hold is open every call blocks on it.
type fakeMigrator struct {
	mu    sync.Mutex
	calls []call
	hold  chan struct{}
}

func (f *fakeMigrator) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	hold := f.hold
	f.mu.Unlock()
	if hold != nil {
		<-hold
	}
}

func (f *fakeMigrator) SyncMany(_ context.Context, types []string, opts migrate.RunOptions) ([]migrate.Report, error) {
	f.record(call{op: "sync", types: types, ids: opts.IDs})
	return nil, nil
}

func (f *fakeMigrator) PublishMany(_ context.Context, types []string) ([]migrate.PublishReport, error) {
	f.record(call{op: "publish", types: types})
	return nil, nil
}

func (f *fakeMigrator) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call{}, f.calls...)
}

func newTestServer(t *testing.T, m *fakeMigrator) (*Server, *jobs.Runner) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	runner := jobs.NewRunner(ctx, log.New(io.Discard, "", 0), nil)
	t.Cleanup(func() {
		cancel()
		<-runner.Stopped()
	})
	s := New(runner, m)
	s.Discard()
	return s, runner
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code, rec.Body.String()
}

func waitIdle(t *testing.T, r *jobs.Runner) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for r.Status().State != jobs.Idle {
		if time.Now().After(deadline) {
			t.Fatal("Expected runner to become idle")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRoutes(t *testing.T) {
	cases := []struct {
		path  string
		body  string
		calls []call
	}{
		{"/sync/voyages", "Sync or publish started for all content ids.",
			[]call{{op: "sync", types: []string{"voyages"}}}},
		{"/sync/excursions/", "Sync or publish started for all content ids.",
			[]call{{op: "sync", types: []string{"excursions"}}}},
		{"/sync/voyages/7,8", "Sync or publish started for [7, 8]",
			[]call{{op: "sync", types: []string{"voyages"}, ids: []string{"7", "8"}}}},
		{"/sync/ships/kGh1/", "Sync or publish started for [kGh1]",
			[]call{{op: "sync", types: []string{"ships"}, ids: []string{"kGh1"}}}},
		{"/sync/all", "Sync started for all excursions, voyages and ships.",
			[]call{{op: "sync", types: migrate.AllTypes}}},
		{"/publish/ships,voyages", "Sync or publish started for [ships, voyages]",
			[]call{{op: "publish", types: []string{"ships", "voyages"}}}},
		{"/publish/all/", "Sync or publish started for all content ids.",
			[]call{{op: "publish", types: migrate.AllTypes}}},
		{"/sync-and-publish/all", "Sync and asset publish started for all excursions, voyages and ships.",
			[]call{{op: "sync", types: migrate.AllTypes}, {op: "publish", types: migrate.AllTypes}}},
	}
	for _, c := range cases {
		t.Run(c.path, func(t *testing.T) {
			m := &fakeMigrator{}
			s, runner := newTestServer(t, m)

			code, body := get(t, s.Handler(), c.path)
			if code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", code)
			}
			if body != c.body {
				t.Errorf("Expected %q, got %q", c.body, body)
			}
			waitIdle(t, runner)
			if got := m.snapshot(); !reflect.DeepEqual(got, c.calls) {
				t.Errorf("Expected calls %v, got %v", c.calls, got)
			}
		})
	}
}

func TestRoutesNotFound(t *testing.T) {
	m := &fakeMigrator{}
	s, _ := newTestServer(t, m)

	for _, path := range []string{"/sync/cabins", "/sync/voyages/7,x", "/sync/voyages/7,,8", "/publish/cabins", "/"} {
		if code, _ := get(t, s.Handler(), path); code != http.StatusNotFound {
			t.Errorf("Expected 404 for %s, got %d", path, code)
		}
	}
	if len(m.snapshot()) != 0 {
		t.Error("Expected no job started")
	}
}

func TestBusyRejection(t *testing.T) {
	m := &fakeMigrator{hold: make(chan struct{})}
	s, runner := newTestServer(t, m)
	h := s.Handler()

	if code, _ := get(t, h, "/sync/voyages"); code != http.StatusOK {
		t.Fatalf("Expected first request accepted, got %d", code)
	}
	code, body := get(t, h, "/sync/all")
	if code != http.StatusConflict || body != "There's a running process, please wait until finished..." {
		t.Errorf("Expected busy rejection, got %d %q", code, body)
	}
	if _, body := get(t, h, "/status"); !strings.HasPrefix(body, "running sync voyages") {
		t.Errorf("Expected running status, got %q", body)
	}

	close(m.hold)
	waitIdle(t, runner)

	if code, _ := get(t, h, "/sync/all"); code != http.StatusOK {
		t.Errorf("Expected request accepted once idle, got %d", code)
	}
	waitIdle(t, runner)
	if n := len(m.snapshot()); n != 2 {
		t.Errorf("Expected 2 jobs run, got %d", n)
	}
	if _, body := get(t, h, "/status"); body != "idle\n" {
		t.Errorf("Expected idle status, got %q", body)
	}
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	m := &fakeMigrator{}
	s, runner := newTestServer(t, m)
	s.Auth = &BasicAuth{Username: "ops", PasswordHash: hash}
	h := s.Handler()

	cases := []struct {
		name       string
		user, pass string
		set        bool
		want       int
	}{
		{"no credentials", "", "", false, http.StatusUnauthorized},
		{"wrong password", "ops", "guess", true, http.StatusUnauthorized},
		{"wrong user", "admin", "s3cret", true, http.StatusUnauthorized},
		{"valid", "ops", "s3cret", true, http.StatusOK},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			if c.set {
				req.SetBasicAuth(c.user, c.pass)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != c.want {
				t.Errorf("Expected %d, got %d", c.want, rec.Code)
			}
			if c.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("Expected a WWW-Authenticate challenge")
			}
		})
	}
	waitIdle(t, runner)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t, &fakeMigrator{})
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Expected server to stop")
	}
}

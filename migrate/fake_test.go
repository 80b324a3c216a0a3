package migrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/toothbrush/epi-contentful-sync/checkpoint"
	"github.com/toothbrush/epi-contentful-sync/episerver"
	"github.com/toothbrush/epi-contentful-sync/internal/cmsfake"
	"github.com/toothbrush/epi-contentful-sync/internal/httpx"
	"github.com/toothbrush/epi-contentful-sync/richtext"
	"github.com/toothbrush/epi-contentful-sync/upsert"
)

// fakeSource serves fixed records per locale.  Raw bytes are the JSON of the record.
type fakeSource struct {
	locales       []string
	voyages       map[string][]episerver.Voyage
	voyageDetails map[string]map[int]*episerver.Voyage
	excursions    map[string][]episerver.Excursion
	ships         map[string]*episerver.Ship
	programs      map[string][]episerver.Program
	ports         map[string][]episerver.Port
	destinations  map[string][]episerver.Destination
	summaries     map[string][]episerver.Summary

	// Number of voyage detail requests.
	detailCalls int
}

func rawJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func (f *fakeSource) ConfiguredLocales() []string { return f.locales }

func (f *fakeSource) ListVoyages(_ context.Context, locale string) ([]episerver.Voyage, error) {
	out := []episerver.Voyage{}
	for _, v := range f.voyages[locale] {
		v.Raw = rawJSON(v)
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeSource) GetVoyage(_ context.Context, locale string, id int) (*episerver.Voyage, error) {
	f.detailCalls++
	v, ok := f.voyageDetails[locale][id]
	if !ok {
		return nil, fmt.Errorf("%w: voyage %d", episerver.ErrNotFound, id)
	}
	if v == nil {
		return nil, nil
	}
	cp := *v
	cp.Raw = rawJSON(cp)
	return &cp, nil
}

func (f *fakeSource) ListExcursions(_ context.Context, locale string) ([]episerver.Excursion, error) {
	out := []episerver.Excursion{}
	for _, e := range f.excursions[locale] {
		e.Raw = rawJSON(e)
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeSource) GetShip(_ context.Context, _ string, code string) (*episerver.Ship, error) {
	s, ok := f.ships[code]
	if !ok {
		return nil, fmt.Errorf("%w: ship %s", episerver.ErrNotFound, code)
	}
	cp := *s
	cp.Raw = rawJSON(cp)
	return &cp, nil
}

func (f *fakeSource) ListPrograms(_ context.Context, locale string) ([]episerver.Program, error) {
	out := []episerver.Program{}
	for _, p := range f.programs[locale] {
		p.Raw = rawJSON(p)
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeSource) ListPorts(_ context.Context, locale string) ([]episerver.Port, error) {
	out := []episerver.Port{}
	for _, p := range f.ports[locale] {
		p.Raw = rawJSON(p)
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeSource) ListDestinations(_ context.Context, locale string) ([]episerver.Destination, error) {
	out := []episerver.Destination{}
	for _, d := range f.destinations[locale] {
		d.Raw = rawJSON(d)
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeSource) ListSummaries(_ context.Context, locale string, ct episerver.ContentType) ([]episerver.Summary, error) {
	return f.summaries[locale+"/"+string(ct)], nil
}

// stubConverter wraps the html in a single paragraph.
type stubConverter struct{}

func (stubConverter) Convert(_ context.Context, html string) (richtext.Document, error) {
	return richtext.FromMarkdown(html), nil
}

// newFiles serves a distinct body for any path, so no two images deduplicate.
func newFiles(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		body := []byte("image:" + r.URL.Path)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	cms      *cmsfake.CMS
	source   *fakeSource
	store    *checkpoint.MemoryStore
	migrator *Migrator
	files    *httptest.Server

	// What the migrator logged.
	logs *bytes.Buffer
}

func newHarness(t *testing.T, source *fakeSource) *harness {
	t.Helper()
	files := newFiles(t)
	base, err := url.Parse(files.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	cms := cmsfake.New()
	cms.SizeOf = func(upload string) int64 {
		u, err := url.Parse(upload)
		if err != nil {
			return 0
		}
		return int64(len("image:" + u.Path))
	}

	u := upsert.New(cms, "en-US")
	u.Logger = log.New(io.Discard, "", 0)
	u.Fallback = base
	u.Retry = httpx.NoRetry()

	if source.locales == nil {
		source.locales = []string{"en", "en-US", "de-DE"}
	}
	store := checkpoint.NewMemoryStore()
	m := New(cms, source, u, stubConverter{}, store)
	logs := &bytes.Buffer{}
	m.Logger = log.New(logs, "", 0)

	return &harness{cms: cms, source: source, store: store, migrator: m, files: files, logs: logs}
}

func strPtr(s string) *string { return &s }

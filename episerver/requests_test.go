package episerver

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
)

const voyagesJSON = `[
  {"id": 7, "heading": "Classic Round Voyage", "destinationId": 12, "fromPort": "BGO", "toPort": "KKN", "isFallbackContent": false},
  {"id": 8, "heading": "North Cape Line", "destinationId": "13", "isFallbackContent": true}
]`

func newTestAPI(t *testing.T, handler http.HandlerFunc) *API {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api, err := NewAPI(map[string]string{"en": srv.URL, "de-DE": srv.URL + "/de"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return api
}

func TestListVoyages(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/b2b/voyages" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("User-Agent"); got != "Mozilla/5.0" {
			t.Errorf("Expected browser User-Agent, got %q", got)
		}
		fmt.Fprint(w, voyagesJSON)
	})

	voyages, err := api.ListVoyages(context.Background(), "en")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(voyages) != 2 {
		t.Fatalf("Expected 2 voyages, got %d", len(voyages))
	}
	if voyages[0].ID != 7 || voyages[0].FromPort != "BGO" {
		t.Errorf("Unexpected first voyage %+v", voyages[0])
	}
	if voyages[1].DestinationID != "13" || voyages[0].DestinationID != "12" {
		t.Errorf("Expected destination IDs decoded from number and string, got %q and %q",
			voyages[0].DestinationID, voyages[1].DestinationID)
	}
	if !bytes.Contains(voyages[0].Raw, []byte(`"Classic Round Voyage"`)) {
		t.Errorf("Expected raw JSON to be kept, got %s", voyages[0].Raw)
	}
}

func TestBrotliBody(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		fmt.Fprint(bw, `[{"code":"BGO","name":"Bergen","countryCode":"NO"}]`)
		bw.Close()
	})

	ports, err := api.ListPorts(context.Background(), "en")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(ports) != 1 || ports[0].Name != "Bergen" {
		t.Errorf("Unexpected ports %+v", ports)
	}
}

func TestGzipBody(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/b2b/ships/FRAM" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzip.NewWriter(w)
		fmt.Fprint(gw, `{"code":"FRAM","imageUrl":"/globalassets/fram.jpg","decks":[{"number":"4","deck":{"highResolutionUri":"/d4.png"}}]}`)
		gw.Close()
	})

	ship, err := api.GetShip(context.Background(), "en", "FRAM")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if n, err := ship.Decks[0].Number.Int(); err != nil || n != 4 {
		t.Errorf("Expected deck 4, got %v %v", n, err)
	}
}

func TestNotFound(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := api.GetVoyage(context.Background(), "de-DE", 99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUnknownLocale(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := api.ListPrograms(context.Background(), "xx-XX"); err == nil {
		t.Error("Expected error for unconfigured locale")
	}
}

func TestConfiguredLocalesOrder(t *testing.T) {
	api, err := NewAPI(nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	locales := api.ConfiguredLocales()
	if len(locales) != len(Locales) || locales[0] != "en" || locales[len(locales)-1] != "fr-FR" {
		t.Errorf("Unexpected locale order %v", locales)
	}
}

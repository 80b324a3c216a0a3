package main

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
)

type testFlags struct {
	space     string
	always    bool
	locales   []string
	sites     map[string]string
	timeout   int
	token     string
	converter string
}

func newTestCommand(f *testFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&f.space, "space", "", "")
	cmd.Flags().BoolVar(&f.always, "always-sync", false, "")
	cmd.Flags().StringSliceVar(&f.locales, "locales", []string{}, "")
	cmd.Flags().StringToStringVar(&f.sites, "sites", map[string]string{}, "")
	cmd.Flags().IntVar(&f.timeout, "request-timeout", 120, "")
	cmd.Flags().StringVar(&f.token, "token", "", "")
	cmd.Flags().StringVar(&f.converter, "converter-url", "", "")
	return cmd
}

func TestBindFlags(t *testing.T) {
	f := &testFlags{}
	cmd := newTestCommand(f)
	if err := cmd.Flags().Set("space", "from-flag"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	yes := true
	err := bindFlags(cmd, YamlConfig{
		AlwaysSync:     &yes,
		Space:          "from-file",
		Locales:        []string{"en-US", "de-DE"},
		Sites:          map[string]string{"en-US": "https://us.example", "de-DE": "https://de.example"},
		RequestTimeout: 30,
		Listen:         ":8080",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if f.space != "from-flag" {
		t.Errorf("Expected the flag to win, got %q", f.space)
	}
	if !f.always {
		t.Error("Expected always-sync from the file")
	}
	if !reflect.DeepEqual(f.locales, []string{"en-US", "de-DE"}) {
		t.Errorf("Expected locales from the file, got %v", f.locales)
	}
	if f.sites["de-DE"] != "https://de.example" || len(f.sites) != 2 {
		t.Errorf("Expected sites from the file, got %v", f.sites)
	}
	if f.timeout != 30 {
		t.Errorf("Expected timeout 30, got %d", f.timeout)
	}
}

func TestBindEnv(t *testing.T) {
	f := &testFlags{}
	cmd := newTestCommand(f)
	if err := cmd.Flags().Set("token", "from-flag"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	env := map[string]string{
		"SYNC_CONTENTFUL_API_KEY":      "from-env",
		"SYNC_CONTENTFUL_SPACE_ID":     "space-env",
		"SYNC_RICH_TEXT_CONVERTER_URL": "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	if err := bindEnv(cmd, lookup); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if f.token != "from-flag" {
		t.Errorf("Expected the flag to win, got %q", f.token)
	}
	if f.space != "space-env" {
		t.Errorf("Expected space from the environment, got %q", f.space)
	}
	if f.converter != "" {
		t.Errorf("Expected empty variable ignored, got %q", f.converter)
	}
}

func TestSelectSites(t *testing.T) {
	sites := map[string]string{
		"en":    "https://global.example",
		"en-US": "https://us.example",
		"de-DE": "https://de.example",
	}

	got, err := selectSites(sites, nil)
	if err != nil || !reflect.DeepEqual(got, sites) {
		t.Errorf("Expected every site, got %v %v", got, err)
	}

	got, err = selectSites(sites, []string{"de-DE"})
	want := map[string]string{"en": "https://global.example", "de-DE": "https://de.example"}
	if err != nil || !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v %v", want, got, err)
	}

	if _, err := selectSites(sites, []string{"fr-FR"}); err == nil {
		t.Error("Expected error for a locale without site")
	}

	got, err = selectSites(nil, []string{"nb-NO"})
	if err != nil || got["nb-NO"] == "" {
		t.Errorf("Expected the known market site, got %v %v", got, err)
	}
}

func TestTableCorrector(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "fixes.yaml")
	body := "\"htp:/broken.jpg\": https://cdn.example/fixed.jpg\n"
	if err := os.WriteFile(file, []byte(body), 0o644); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	fixes, err := loadURIFixes(file)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	correct := tableCorrector(fixes, log.New(io.Discard, "", 0))
	ctx := context.Background()

	fixed, ok := correct(ctx, "excp7", " htp:/broken.jpg")
	if !ok || fixed != "https://cdn.example/fixed.jpg" {
		t.Errorf("Expected the listed fix, got %q %v", fixed, ok)
	}
	if _, ok := correct(ctx, "excp8", "htp:/other.jpg"); ok {
		t.Error("Expected an unlisted URL to be skipped")
	}

	if _, err := loadURIFixes(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestShortVersion(t *testing.T) {
	cases := []struct {
		version, revision string
		dirty             bool
		want              string
	}{
		{"unknown", "unknown", true, "devel"},
		{"(devel)", "abc123", false, "rev-abc123"},
		{"(devel)", "abc123", true, "rev-abc123-dirty"},
		{"v1.2.0", "", false, "v1.2.0"},
	}
	for _, c := range cases {
		if got := shortVersion(c.version, c.revision, c.dirty); got != c.want {
			t.Errorf("Expected %q, got %q", c.want, got)
		}
	}
}

func TestMask(t *testing.T) {
	if got := mask("CFPAT-secret"); got != "CFPA****" {
		t.Errorf("Expected CFPA****, got %q", got)
	}
	if got := mask("abc"); got != "****" {
		t.Errorf("Expected ****, got %q", got)
	}
	if got := mask(""); got != "" {
		t.Errorf("Expected empty, got %q", got)
	}
}

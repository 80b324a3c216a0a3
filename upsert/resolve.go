package upsert

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// MalformedURIError is returned when a source file URI can't be turned into something fetchable.
type MalformedURIError struct {
	URI string
	Err error
}

func (e *MalformedURIError) Error() string {
	return fmt.Sprintf("upsert: malformed asset URI %q: %v", e.URI, e.Err)
}

func (e *MalformedURIError) Unwrap() error { return e.Err }

// URICorrector may return a fixed URI for a malformed one, e.g. from an operator or a lookup
// table.  ok=false gives up on the asset.
type URICorrector func(ctx context.Context, targetID string, uri string) (fixed string, ok bool)

// ResolveURI turns a source file reference into an absolute URL: the query string is dropped,
// root-relative paths get the site of locale, and protocol-relative ones get https.
func (u *Upserter) ResolveURI(locale string, raw string) (*url.URL, error) {
	ref := strings.TrimSpace(raw)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if ref == "" {
		return nil, &MalformedURIError{URI: raw, Err: fmt.Errorf("empty")}
	}

	switch {
	case strings.HasPrefix(ref, "//"):
		ref = "https:" + ref
	case strings.HasPrefix(ref, "/"):
		base := u.siteFor(locale)
		if base == nil {
			return nil, &MalformedURIError{URI: raw, Err: fmt.Errorf("relative path but no site configured for %q", locale)}
		}
		ref = base.Scheme + "://" + base.Host + ref
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, &MalformedURIError{URI: raw, Err: err}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &MalformedURIError{URI: raw, Err: fmt.Errorf("missing or unsupported scheme %q", parsed.Scheme)}
	}
	if parsed.Host == "" {
		return nil, &MalformedURIError{URI: raw, Err: fmt.Errorf("missing host")}
	}
	return parsed, nil
}

func (u *Upserter) siteFor(locale string) *url.URL {
	if site, ok := u.Sites[locale]; ok && site != nil {
		return site
	}
	return u.Fallback
}

// cmsFileURL makes the protocol-relative file URL of an asset fetchable.
func cmsFileURL(raw string) string {
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}

package upsert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/toothbrush/epi-contentful-sync/internal/httpx"
)

type fileMeta struct {
	Size        int64
	ContentType string
}

// probe finds size and MIME type of the file at uri with a HEAD request, falling back to a full
// download when the server won't say.
func (u *Upserter) probe(ctx context.Context, uri *url.URL) (fileMeta, error) {
	ctx, cancel := u.withTimeout(ctx)
	defer cancel()

	resp, _, err := httpx.Do(ctx, u.Client, getter(http.MethodHead, uri.String()), u.Retry)
	if err != nil {
		if malformed := asMalformed(uri.String(), err); malformed != nil {
			return fileMeta{}, malformed
		}
		var statusErr *httpx.StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusMethodNotAllowed {
			return fileMeta{}, fmt.Errorf("upsert: couldn't probe %s: %w", uri, err)
		}
		resp = nil
	}

	meta := fileMeta{Size: -1}
	if resp != nil {
		meta.Size = resp.ContentLength
		meta.ContentType = resp.Header.Get("Content-Type")
	}

	if meta.Size < 0 {
		resp, body, err := httpx.Do(ctx, u.Client, getter(http.MethodGet, uri.String()), u.Retry)
		if err != nil {
			return fileMeta{}, fmt.Errorf("upsert: couldn't download %s: %w", uri, err)
		}
		meta.Size = int64(len(body))
		if meta.ContentType == "" {
			meta.ContentType = resp.Header.Get("Content-Type")
		}
		u.rememberHash(uri.String(), body)
	}

	meta.ContentType = contentTypeFor(meta.ContentType, uri.Path)
	return meta, nil
}

func contentTypeFor(header string, filePath string) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	if mt := mime.TypeByExtension(strings.ToLower(path.Ext(filePath))); mt != "" {
		if parsed, _, err := mime.ParseMediaType(mt); err == nil {
			return parsed
		}
	}
	return "application/octet-stream"
}

func getter(method string, uri string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, method, uri, nil)
	}
}

// asMalformed recognises the client errors that mean the URI itself is unusable.
func asMalformed(uri string, err error) *MalformedURIError {
	var statusErr *httpx.StatusError
	if errors.As(err, &statusErr) {
		return nil
	}
	msg := err.Error()
	for _, hint := range []string{"unsupported protocol scheme", "no Host in request URL", "invalid URL", "invalid character"} {
		if strings.Contains(msg, hint) {
			return &MalformedURIError{URI: uri, Err: err}
		}
	}
	return nil
}

// sameContent reports whether the files at a and b have identical bytes.  Both are fetched
// concurrently; hashes are remembered so each URL is downloaded at most once.
func (u *Upserter) sameContent(ctx context.Context, a string, b string) (bool, error) {
	var hashA, hashB string

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := u.hash(ctx, a)
		hashA = h
		return err
	})
	g.Go(func() error {
		h, err := u.hash(ctx, b)
		hashB = h
		return err
	})
	if err := g.Wait(); err != nil {
		return false, err
	}

	return hashA == hashB, nil
}

func (u *Upserter) hash(ctx context.Context, uri string) (string, error) {
	u.hashMu.Lock()
	h, ok := u.hashes[uri]
	u.hashMu.Unlock()
	if ok {
		return h, nil
	}

	ctx, cancel := u.withTimeout(ctx)
	defer cancel()

	_, body, err := httpx.Do(ctx, u.Client, getter(http.MethodGet, uri), u.Retry)
	if err != nil {
		return "", fmt.Errorf("upsert: couldn't download %s: %w", uri, err)
	}
	return u.rememberHash(uri, body), nil
}

func (u *Upserter) rememberHash(uri string, body []byte) string {
	sum := sha256.Sum256(body)
	h := hex.EncodeToString(sum[:])

	u.hashMu.Lock()
	defer u.hashMu.Unlock()
	if u.hashes == nil {
		u.hashes = map[string]string{}
	}
	u.hashes[uri] = h
	return h
}

func (u *Upserter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, u.Timeout)
}

// Package upsert creates or updates CMS entries and assets under stable, caller-chosen IDs.
//
// Entries are written either in Replace mode (delete and recreate) or MergeByLocale mode (only the
// supplied field/locale slots are overwritten).  Assets are deduplicated: an upload is skipped when
// an asset with the same size and bytes already exists, whatever its ID.
package upsert

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/toothbrush/epi-contentful-sync/contentful"
	"github.com/toothbrush/epi-contentful-sync/internal/httpx"
)

// CMS is the part of the management API the upserter needs.  *contentful.API implements it.
type CMS interface {
	GetEntry(ctx context.Context, id string) (*contentful.Entry, error)
	CreateEntry(ctx context.Context, id string, contentType string, fields contentful.Fields) (*contentful.Entry, error)
	UpdateEntry(ctx context.Context, entry *contentful.Entry) (*contentful.Entry, error)
	PublishEntry(ctx context.Context, id string, version int) (*contentful.Entry, error)
	UnpublishEntry(ctx context.Context, id string) error
	DeleteEntry(ctx context.Context, id string) error

	GetAsset(ctx context.Context, id string) (*contentful.Asset, error)
	CreateAsset(ctx context.Context, id string, fields contentful.AssetFields) (*contentful.Asset, error)
	ProcessAsset(ctx context.Context, id string, version int, locale string) error
	UnpublishAsset(ctx context.Context, id string) error
	DeleteAsset(ctx context.Context, id string) error
	FindAssetsBySize(ctx context.Context, size int64) ([]contentful.Asset, error)
}

type Mode int

const (
	// MergeByLocale overwrites the supplied field/locale slots of an existing entry and keeps
	// everything else.
	MergeByLocale Mode = iota
	// Replace deletes an existing entry and creates it anew from the supplied fields only.
	Replace
)

func (m Mode) String() string {
	switch m {
	case Replace:
		return "replace"
	default:
		return "merge"
	}
}

// ParseMode accepts "merge" (or "") and "replace".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "merge", "merge-by-locale":
		return MergeByLocale, nil
	case "replace":
		return Replace, nil
	}
	return MergeByLocale, fmt.Errorf("upsert: unknown mode %q, expected merge or replace", s)
}

// Upserter holds what entry and asset upserts share.  Use New, then adjust the fields.
type Upserter struct {
	CMS CMS

	// Used for probing and downloading source files and existing assets.
	Client *http.Client

	Logger *log.Logger

	// Locale that asset titles/files and code entries are written under.
	DefaultLocale string

	// Locale to site base, for root-relative source URIs.  Fallback is used for locales without a
	// site of their own.
	Sites    map[string]*url.URL
	Fallback *url.URL

	// Optional; consulted once when a source URI is malformed.
	Corrector URICorrector

	// Applied to probes and downloads.
	Retry httpx.Policy

	// Per-call timeout for probes and downloads.
	Timeout time.Duration

	Now func() time.Time

	hashMu sync.Mutex
	hashes map[string]string
}

func New(cms CMS, defaultLocale string) *Upserter {
	return &Upserter{
		CMS:           cms,
		Client:        &http.Client{},
		Logger:        log.Default(),
		DefaultLocale: defaultLocale,
		Sites:         map[string]*url.URL{},
		Retry:         httpx.DefaultPolicy(),
		Timeout:       60 * time.Second,
		Now:           time.Now,
	}
}

func (u *Upserter) logf(format string, args ...any) {
	if u.Logger != nil {
		u.Logger.Printf(format, args...)
	}
}

// ResetHashes forgets the content hashes remembered so far.  Call it between runs.
func (u *Upserter) ResetHashes() {
	u.hashMu.Lock()
	defer u.hashMu.Unlock()
	u.hashes = nil
}

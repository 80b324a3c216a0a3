// Package cmsfake is an in-memory stand-in for the content management API, with its version and
// publish bookkeeping, for tests.
package cmsfake

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/toothbrush/epi-contentful-sync/contentful"
)

type CMS struct {
	mu           sync.Mutex
	Entries      map[string]*contentful.Entry
	Assets       map[string]*contentful.Asset
	ContentTypes map[string]*contentful.ContentType

	// Size the processed file of an upload URL gets.
	SizeOf func(upload string) int64

	// Entry or asset IDs whose next publish fails validation.
	RejectPublish map[string]bool

	Calls map[string]int
}

func New() *CMS {
	return &CMS{
		Entries:       map[string]*contentful.Entry{},
		Assets:        map[string]*contentful.Asset{},
		ContentTypes:  map[string]*contentful.ContentType{},
		RejectPublish: map[string]bool{},
		Calls:         map[string]int{},
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", contentful.ErrNotFound, kind, id)
}

func conflict() error {
	return &contentful.APIError{StatusCode: http.StatusConflict, ErrorID: "VersionMismatch"}
}

func invalid(msg string) error {
	return &contentful.APIError{StatusCode: http.StatusUnprocessableEntity, ErrorID: "ValidationFailed", Message: msg}
}

func copyEntry(e *contentful.Entry) *contentful.Entry {
	out := &contentful.Entry{Sys: e.Sys, Fields: contentful.Fields{}}
	for name, locales := range e.Fields {
		out.Fields[name] = map[string]any{}
		for l, v := range locales {
			out.Fields[name][l] = v
		}
	}
	return out
}

func copyAsset(a *contentful.Asset) *contentful.Asset {
	out := &contentful.Asset{Sys: a.Sys, Fields: contentful.AssetFields{
		Title: map[string]string{},
		File:  map[string]*contentful.AssetFile{},
	}}
	for l, t := range a.Fields.Title {
		out.Fields.Title[l] = t
	}
	for l, f := range a.Fields.File {
		if f == nil {
			continue
		}
		cp := *f
		if f.Details != nil {
			d := *f.Details
			cp.Details = &d
		}
		out.Fields.File[l] = &cp
	}
	return out
}

func (f *CMS) count(name string) {
	f.Calls[name]++
}

// Count returns how often method was called.
func (f *CMS) Count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

// Entry returns a copy of entry id, or nil.
func (f *CMS) Entry(id string) *contentful.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.Entries[id]
	if !ok {
		return nil
	}
	return copyEntry(e)
}

// Asset returns a copy of asset id, or nil.
func (f *CMS) Asset(id string) *contentful.Asset {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.Assets[id]
	if !ok {
		return nil
	}
	return copyAsset(a)
}

func (f *CMS) GetEntry(_ context.Context, id string) (*contentful.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("GetEntry")
	e, ok := f.Entries[id]
	if !ok {
		return nil, notFound("entry", id)
	}
	return copyEntry(e), nil
}

func (f *CMS) CreateEntry(_ context.Context, id string, contentType string, fields contentful.Fields) (*contentful.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CreateEntry")
	if _, ok := f.Entries[id]; ok {
		return nil, conflict()
	}
	e := &contentful.Entry{
		Sys: contentful.Sys{
			ID:          id,
			Type:        "Entry",
			Version:     1,
			ContentType: &contentful.Link{Sys: contentful.LinkSys{Type: "Link", LinkType: "ContentType", ID: contentType}},
		},
		Fields: fields,
	}
	f.Entries[id] = copyEntry(e)
	return copyEntry(e), nil
}

func (f *CMS) UpdateEntry(_ context.Context, entry *contentful.Entry) (*contentful.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("UpdateEntry")
	e, ok := f.Entries[entry.Sys.ID]
	if !ok {
		return nil, notFound("entry", entry.Sys.ID)
	}
	if e.Sys.Version != entry.Sys.Version {
		return nil, conflict()
	}
	updated := copyEntry(entry)
	updated.Sys = e.Sys
	updated.Sys.Version++
	f.Entries[entry.Sys.ID] = updated
	return copyEntry(updated), nil
}

func (f *CMS) PublishEntry(_ context.Context, id string, version int) (*contentful.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("PublishEntry")
	e, ok := f.Entries[id]
	if !ok {
		return nil, notFound("entry", id)
	}
	if e.Sys.Version != version {
		return nil, conflict()
	}
	if f.RejectPublish[id] {
		return nil, invalid("rejected entry " + id)
	}
	e.Sys.PublishedVersion = e.Sys.Version
	e.Sys.Version++
	return copyEntry(e), nil
}

func (f *CMS) UnpublishEntry(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("UnpublishEntry")
	e, ok := f.Entries[id]
	if !ok {
		return notFound("entry", id)
	}
	e.Sys.PublishedVersion = 0
	e.Sys.Version++
	return nil
}

func (f *CMS) DeleteEntry(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("DeleteEntry")
	e, ok := f.Entries[id]
	if !ok {
		return notFound("entry", id)
	}
	if e.Sys.PublishedVersion > 0 {
		return &contentful.APIError{StatusCode: http.StatusBadRequest, ErrorID: "BadRequest", Message: "Cannot delete published"}
	}
	delete(f.Entries, id)
	return nil
}

func (f *CMS) ListAllEntries(_ context.Context, query contentful.EntriesQuery) ([]contentful.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListAllEntries")
	out := []contentful.Entry{}
	for _, id := range sortedKeys(f.Entries) {
		e := f.Entries[id]
		if query.ContentType != "" && e.ContentTypeID() != query.ContentType {
			continue
		}
		if len(query.IDs) > 0 && !slices.Contains(query.IDs, id) {
			continue
		}
		if query.IDMatch != "" && !strings.Contains(id, query.IDMatch) {
			continue
		}
		out = append(out, *copyEntry(e))
	}
	return out, nil
}

func (f *CMS) GetAsset(_ context.Context, id string) (*contentful.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("GetAsset")
	a, ok := f.Assets[id]
	if !ok {
		return nil, notFound("asset", id)
	}
	return copyAsset(a), nil
}

func (f *CMS) CreateAsset(_ context.Context, id string, fields contentful.AssetFields) (*contentful.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CreateAsset")
	if _, ok := f.Assets[id]; ok {
		return nil, conflict()
	}
	a := &contentful.Asset{Sys: contentful.Sys{ID: id, Type: "Asset", Version: 1}, Fields: fields}
	f.Assets[id] = copyAsset(a)
	return copyAsset(a), nil
}

func (f *CMS) ProcessAsset(_ context.Context, id string, version int, locale string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ProcessAsset")
	a, ok := f.Assets[id]
	if !ok {
		return notFound("asset", id)
	}
	if a.Sys.Version != version {
		return conflict()
	}
	file := a.Fields.File[locale]
	if file == nil {
		return invalid("no file for " + locale)
	}
	file.URL = file.Upload
	if f.SizeOf != nil {
		file.Details = &contentful.FileDetails{Size: f.SizeOf(file.Upload)}
	}
	a.Sys.Version++
	return nil
}

func (f *CMS) PublishAsset(_ context.Context, id string, version int) (*contentful.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("PublishAsset")
	a, ok := f.Assets[id]
	if !ok {
		return nil, notFound("asset", id)
	}
	if a.Sys.Version != version {
		return nil, conflict()
	}
	if f.RejectPublish[id] {
		return nil, invalid("rejected asset " + id)
	}
	a.Sys.PublishedVersion = a.Sys.Version
	a.Sys.Version++
	return copyAsset(a), nil
}

func (f *CMS) UnpublishAsset(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("UnpublishAsset")
	a, ok := f.Assets[id]
	if !ok {
		return notFound("asset", id)
	}
	a.Sys.PublishedVersion = 0
	a.Sys.Version++
	return nil
}

func (f *CMS) DeleteAsset(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("DeleteAsset")
	if _, ok := f.Assets[id]; !ok {
		return notFound("asset", id)
	}
	delete(f.Assets, id)
	return nil
}

func (f *CMS) FindAssetsBySize(_ context.Context, size int64) ([]contentful.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("FindAssetsBySize")
	out := []contentful.Asset{}
	for _, id := range sortedKeys(f.Assets) {
		a := f.Assets[id]
		for _, file := range a.Fields.File {
			if file != nil && file.Details != nil && file.Details.Size == size {
				out = append(out, *copyAsset(a))
				break
			}
		}
	}
	return out, nil
}

func (f *CMS) ListAllAssets(_ context.Context, query contentful.AssetsQuery) ([]contentful.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListAllAssets")
	out := []contentful.Asset{}
	for _, id := range sortedKeys(f.Assets) {
		if query.IDMatch != "" && !strings.Contains(id, query.IDMatch) {
			continue
		}
		out = append(out, *copyAsset(f.Assets[id]))
	}
	return out, nil
}

func (f *CMS) GetContentType(_ context.Context, id string) (*contentful.ContentType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("GetContentType")
	ct, ok := f.ContentTypes[id]
	if !ok {
		return nil, notFound("content type", id)
	}
	cp := *ct
	return &cp, nil
}

func (f *CMS) UnpublishContentType(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("UnpublishContentType")
	ct, ok := f.ContentTypes[id]
	if !ok {
		return notFound("content type", id)
	}
	ct.Sys.PublishedVersion = 0
	return nil
}

func (f *CMS) DeleteContentType(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("DeleteContentType")
	ct, ok := f.ContentTypes[id]
	if !ok {
		return notFound("content type", id)
	}
	if ct.Sys.PublishedVersion > 0 {
		return &contentful.APIError{StatusCode: http.StatusBadRequest, ErrorID: "BadRequest", Message: "Cannot delete published"}
	}
	for _, e := range f.Entries {
		if e.ContentTypeID() == id {
			return &contentful.APIError{StatusCode: http.StatusBadRequest, ErrorID: "BadRequest", Message: "Content type has entries"}
		}
	}
	delete(f.ContentTypes, id)
	return nil
}

// PutEntry seeds a published entry.
func (f *CMS) PutEntry(id string, contentType string, fields contentful.Fields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Entries[id] = &contentful.Entry{
		Sys: contentful.Sys{
			ID:               id,
			Type:             "Entry",
			Version:          2,
			PublishedVersion: 1,
			ContentType:      &contentful.Link{Sys: contentful.LinkSys{Type: "Link", LinkType: "ContentType", ID: contentType}},
		},
		Fields: fields,
	}
}

// PutAsset seeds an already processed asset in locale.
func (f *CMS) PutAsset(id string, locale string, url string, size int64, published bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := &contentful.Asset{
		Sys: contentful.Sys{ID: id, Type: "Asset", Version: 2},
		Fields: contentful.AssetFields{
			Title: map[string]string{locale: id},
			File: map[string]*contentful.AssetFile{locale: {
				FileName: path.Base(url),
				URL:      url,
				Details:  &contentful.FileDetails{Size: size},
			}},
		},
	}
	if published {
		a.Sys.PublishedVersion = 2
		a.Sys.Version = 3
	}
	f.Assets[id] = a
}

// PutContentType seeds a published content type.
func (f *CMS) PutContentType(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ContentTypes[id] = &contentful.ContentType{
		Sys:  contentful.Sys{ID: id, Type: "ContentType", Version: 2, PublishedVersion: 1},
		Name: id,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

package upsert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/toothbrush/epi-contentful-sync/contentful"
	"github.com/toothbrush/epi-contentful-sync/localize"
	"github.com/toothbrush/epi-contentful-sync/sanitize"
)

type EntryUpsertRequest struct {
	TargetID    string
	ContentType string
	Fields      localize.FieldSet
	Mode        Mode
}

// UpsertEntry makes the entry TargetID carry Fields and be published, and returns a link to it.
func (u *Upserter) UpsertEntry(ctx context.Context, req EntryUpsertRequest) (contentful.Link, error) {
	id := sanitize.SanitizeID(req.TargetID)
	if id == "" {
		return contentful.Link{}, fmt.Errorf("upsert: entry ID is empty")
	}

	fields, err := normalize(req.Fields)
	if err != nil {
		u.logf("Couldn't encode fields of entry %s: %v", id, err)
		return contentful.Link{}, fmt.Errorf("upsert: couldn't encode fields of entry %s: %w", id, err)
	}

	existing, err := u.CMS.GetEntry(ctx, id)
	switch {
	case errors.Is(err, contentful.ErrNotFound):
		existing = nil
	case err != nil:
		u.logf("Exception occurred while finding entry with ID: %s, error: %v", id, err)
		return contentful.Link{}, fmt.Errorf("upsert: couldn't look up entry %s: %w", id, err)
	}

	if existing != nil && req.Mode == MergeByLocale {
		return u.mergeEntry(ctx, existing, fields)
	}

	if existing != nil {
		if err := u.deleteEntry(ctx, existing); err != nil {
			return contentful.Link{}, err
		}
	}

	created, err := u.CMS.CreateEntry(ctx, id, req.ContentType, fields)
	if err != nil {
		u.logf("Exception occurred while creating entry with ID: %s, error: %v", id, err)
		return contentful.Link{}, fmt.Errorf("upsert: couldn't create entry %s: %w", id, err)
	}

	if _, err := u.CMS.PublishEntry(ctx, id, created.Sys.Version); err != nil {
		u.logf("Exception occurred while publishing entry with ID: %s, error: %v", id, err)
		return contentful.Link{}, fmt.Errorf("upsert: couldn't publish entry %s: %w", id, err)
	}

	u.logf("Entry added: %s", id)
	return contentful.EntryLink(id), nil
}

func (u *Upserter) mergeEntry(ctx context.Context, existing *contentful.Entry, fields contentful.Fields) (contentful.Link, error) {
	id := existing.Sys.ID
	if existing.Fields == nil {
		existing.Fields = contentful.Fields{}
	}

	changed := false
	for name, locales := range fields {
		slot, ok := existing.Fields[name]
		if !ok || slot == nil {
			slot = map[string]any{}
			existing.Fields[name] = slot
		}
		for locale, value := range locales {
			if old, ok := slot[locale]; ok && reflect.DeepEqual(old, value) {
				continue
			}
			slot[locale] = value
			changed = true
		}
	}

	if !changed && existing.Sys.IsPublished() {
		u.logf("Entry unchanged: %s", id)
		return contentful.EntryLink(id), nil
	}

	version := existing.Sys.Version
	if changed {
		updated, err := u.CMS.UpdateEntry(ctx, existing)
		if err != nil {
			u.logf("Exception occurred while updating entry with ID: %s, error: %v", id, err)
			return contentful.Link{}, fmt.Errorf("upsert: couldn't update entry %s: %w", id, err)
		}
		version = updated.Sys.Version
	}

	if _, err := u.CMS.PublishEntry(ctx, id, version); err != nil {
		u.logf("Exception occurred while publishing entry with ID: %s, error: %v", id, err)
		return contentful.Link{}, fmt.Errorf("upsert: couldn't publish entry %s: %w", id, err)
	}

	u.logf("Entry updated: %s", id)
	return contentful.EntryLink(id), nil
}

func (u *Upserter) deleteEntry(ctx context.Context, entry *contentful.Entry) error {
	id := entry.Sys.ID
	if entry.Sys.HasPublishedVersion() {
		if err := u.CMS.UnpublishEntry(ctx, id); err != nil && !errors.Is(err, contentful.ErrNotFound) {
			u.logf("Exception occurred while unpublishing entry with ID: %s, error: %v", id, err)
			return fmt.Errorf("upsert: couldn't unpublish entry %s: %w", id, err)
		}
	}
	if err := u.CMS.DeleteEntry(ctx, id); err != nil && !errors.Is(err, contentful.ErrNotFound) {
		u.logf("Exception occurred while deleting entry with ID: %s, error: %v", id, err)
		return fmt.Errorf("upsert: couldn't delete entry %s: %w", id, err)
	}
	return nil
}

// EnsureCodeEntry returns a link to entry id, creating it with just its code field (set to id)
// when it doesn't exist.  Existing entries are never touched.
func (u *Upserter) EnsureCodeEntry(ctx context.Context, contentType string, id string) (contentful.Link, error) {
	id = sanitize.SanitizeID(id)
	if id == "" {
		return contentful.Link{}, fmt.Errorf("upsert: %s code is empty", contentType)
	}

	_, err := u.CMS.GetEntry(ctx, id)
	if err == nil {
		return contentful.EntryLink(id), nil
	}
	if !errors.Is(err, contentful.ErrNotFound) {
		return contentful.Link{}, fmt.Errorf("upsert: couldn't look up entry %s: %w", id, err)
	}

	return u.UpsertEntry(ctx, EntryUpsertRequest{
		TargetID:    id,
		ContentType: contentType,
		Fields:      localize.Localize(u.DefaultLocale, map[string]any{"code": id}),
		Mode:        Replace,
	})
}

// normalize round-trips fields through JSON, so they compare equal to what the CMA returns.
func normalize(fs localize.FieldSet) (contentful.Fields, error) {
	b, err := json.Marshal(fs)
	if err != nil {
		return nil, err
	}
	out := contentful.Fields{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

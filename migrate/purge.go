package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/toothbrush/epi-contentful-sync/contentful"
)

// Purge deletes every entry of contentType, unpublishing first, and with deleteType the content
// type itself.  It returns how many entries were deleted.
func (m *Migrator) Purge(ctx context.Context, contentType string, deleteType bool) (int, error) {
	entries, err := m.CMS.ListAllEntries(ctx, contentful.EntriesQuery{ContentType: contentType})
	if err != nil {
		return 0, fmt.Errorf("migrate: couldn't list %s entries: %w", contentType, err)
	}

	deleted := 0
	var errs errList
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return deleted, fmt.Errorf("migrate: purge interrupted: %w", context.Cause(ctx))
		}
		if e.Sys.HasPublishedVersion() {
			if err := m.CMS.UnpublishEntry(ctx, e.Sys.ID); err != nil {
				errs.add(fmt.Errorf("unpublish %s: %w", e.Sys.ID, err))
				continue
			}
		}
		if err := m.CMS.DeleteEntry(ctx, e.Sys.ID); err != nil {
			errs.add(fmt.Errorf("delete %s: %w", e.Sys.ID, err))
			continue
		}
		deleted++
	}
	m.logf("Deleted %d of %d %s entries", deleted, len(entries), contentType)
	if err := errs.err(); err != nil {
		return deleted, fmt.Errorf("migrate: purge of %s incomplete: %w", contentType, err)
	}

	if !deleteType {
		return deleted, nil
	}
	ct, err := m.CMS.GetContentType(ctx, contentType)
	if errors.Is(err, contentful.ErrNotFound) {
		return deleted, nil
	}
	if err != nil {
		return deleted, fmt.Errorf("migrate: couldn't get content type %s: %w", contentType, err)
	}
	if ct.Sys.HasPublishedVersion() {
		if err := m.CMS.UnpublishContentType(ctx, contentType); err != nil {
			return deleted, fmt.Errorf("migrate: couldn't unpublish content type %s: %w", contentType, err)
		}
	}
	if err := m.CMS.DeleteContentType(ctx, contentType); err != nil {
		return deleted, fmt.Errorf("migrate: couldn't delete content type %s: %w", contentType, err)
	}
	m.logf("Deleted content type %s", contentType)
	return deleted, nil
}

package migrate

import (
	"context"
	"fmt"

	"github.com/toothbrush/epi-contentful-sync/contentful"
	"github.com/toothbrush/epi-contentful-sync/episerver"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Unmigrated lists the source IDs of contentType, across all markets, that have no CMS entry.
func (m *Migrator) Unmigrated(ctx context.Context, contentType string) ([]string, error) {
	entryType, ok := entryContentTypes[contentType]
	if !ok || contentType == "ships" {
		return nil, fmt.Errorf("migrate: can't list unmigrated %s", contentType)
	}

	source := map[string]bool{}
	for _, locale := range m.Locales {
		lctx, cancel := m.withTimeout(ctx)
		summaries, err := m.Source.ListSummaries(lctx, locale, episerver.ContentType(contentType))
		cancel()
		if err != nil {
			return nil, fmt.Errorf("migrate: couldn't list %s for %s: %w", contentType, locale, err)
		}
		for _, s := range summaries {
			id := s.ID.String()
			if contentType == "ports" {
				id = s.Code.String()
			}
			if id != "" {
				source[id] = true
			}
		}
	}

	entries, err := m.CMS.ListAllEntries(ctx, contentful.EntriesQuery{ContentType: entryType, Select: []string{"sys.id"}})
	if err != nil {
		return nil, fmt.Errorf("migrate: couldn't list %s entries: %w", entryType, err)
	}
	for _, e := range entries {
		delete(source, e.Sys.ID)
	}

	out := maps.Keys(source)
	slices.Sort(out)
	return out, nil
}

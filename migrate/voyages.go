package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/toothbrush/epi-contentful-sync/contentful"
	"github.com/toothbrush/epi-contentful-sync/episerver"
	"github.com/toothbrush/epi-contentful-sync/localize"
	"github.com/toothbrush/epi-contentful-sync/sanitize"
	"github.com/toothbrush/epi-contentful-sync/upsert"
)

// SyncVoyages migrates voyages with their selling points, map, pictures and itinerary days.
func (m *Migrator) SyncVoyages(ctx context.Context, opts RunOptions) (Report, error) {
	list, err := collect(ctx, m, m.Locales, m.Source.ListVoyages, func(v episerver.Voyage) string {
		return strconv.Itoa(v.ID)
	})
	if err != nil {
		return Report{ContentType: "voyages"}, fmt.Errorf("migrate: couldn't list voyages: %w", err)
	}

	records := []record{}
	for _, id := range list.order {
		listedIn := list.byID[id]
		var details map[string]*episerver.Voyage

		records = append(records, record{
			id: id,
			load: func(ctx context.Context) (map[string]json.RawMessage, error) {
				details = map[string]*episerver.Voyage{}
				raws := map[string]json.RawMessage{}
				for _, locale := range m.Locales {
					summary, ok := listedIn[locale]
					if !ok {
						continue
					}
					lctx, cancel := m.withTimeout(ctx)
					detail, err := m.Source.GetVoyage(lctx, locale, summary.ID)
					cancel()
					if err != nil {
						return nil, fmt.Errorf("migrate: couldn't fetch voyage %s for %s: %w", id, locale, err)
					}
					details[locale] = detail
					raws[locale] = detail.Raw
				}
				return raws, nil
			},
			migrate: func(ctx context.Context) error {
				return m.migrateVoyage(ctx, id, details)
			},
		})
	}

	return m.run(ctx, "voyages", "Voyage", records, opts)
}

func voyageIsFallback(v *episerver.Voyage) bool { return v.IsFallbackContent }

func (m *Migrator) migrateVoyage(ctx context.Context, id string, details map[string]*episerver.Voyage) error {
	defLocale, def, ok := localize.PickDefault(m.DefaultLocale, m.Locales, details, voyageIsFallback)
	if !ok {
		return fmt.Errorf("migrate: no detail for voyage %s", id)
	}
	locales, content := contentLocales(m.Locales, details, voyageIsFallback, defLocale)

	var errs errList

	usps := []*contentful.Link{}
	for i := 0; i < maxLen(locales, content, func(v *episerver.Voyage) int { return len(v.SellingPoints) }); i++ {
		sets := []localize.FieldSet{}
		for _, l := range locales {
			if v := content[l]; i < len(v.SellingPoints) {
				sets = append(sets, localize.Localize(l, map[string]any{"text": nonEmpty(v.SellingPoints[i])}))
			}
		}
		fields := localize.Merge(sets...)
		if len(fields) == 0 {
			continue
		}
		usps = append(usps, m.entry(ctx, &errs, upsert.EntryUpsertRequest{
			TargetID:    fmt.Sprintf("usp%s-%d", id, i),
			ContentType: "usp",
			Fields:      fields,
			Mode:        m.Mode,
		}))
	}

	var voyageMap *contentful.Link
	if def.LargeMap != nil && def.LargeMap.HighResolutionURI != "" {
		voyageMap = m.asset(ctx, &errs, upsert.AssetUpsertRequest{
			TargetID:  "voyageMap" + id,
			SourceURI: def.LargeMap.HighResolutionURI,
			Title:     deref(def.LargeMap.AlternateText),
			Locale:    defLocale,
		})
	}

	media := []*contentful.Link{}
	for i, item := range def.MediaContent {
		media = append(media, m.asset(ctx, &errs, upsert.AssetUpsertRequest{
			TargetID:  fmt.Sprintf("voyagePicture%s-%d", id, i),
			SourceURI: item.HighResolutionURI,
			Title:     deref(item.AlternateText),
			Locale:    defLocale,
		}))
	}

	itinerary := []*contentful.Link{}
	for i := 0; i < maxLen(locales, content, func(v *episerver.Voyage) int { return len(v.Itinerary) }); i++ {
		itinerary = append(itinerary, m.itineraryDay(ctx, &errs, id, i, defLocale, def, locales, content))
	}

	sets := []localize.FieldSet{}
	for _, l := range locales {
		v := content[l]
		sets = append(sets, localize.Localize(l, map[string]any{
			"name":                  str(v.Heading),
			"description":           nonEmpty(v.Intro),
			"included":              m.rich(ctx, &errs, v.IncludedInfo),
			"notIncluded":           m.rich(ctx, &errs, v.NotIncludedInfo),
			"travelSuggestionCodes": v.TravelSuggestionCodes,
			"duration":              nonEmpty(v.DurationText),
			"notes":                 m.rich(ctx, &errs, v.Notes),
		}))
	}
	shared := map[string]any{
		"usps":      links(usps...),
		"media":     links(media...),
		"itinerary": links(itinerary...),
	}
	if voyageMap != nil {
		shared["map"] = *voyageMap
	}
	if def.DestinationID != "" {
		shared["destinations"] = []contentful.Link{contentful.EntryLink(def.DestinationID.String())}
	}
	if def.FromPort != "" {
		shared["fromPort"] = contentful.EntryLink(def.FromPort.String())
	}
	if def.ToPort != "" {
		shared["toPort"] = contentful.EntryLink(def.ToPort.String())
	}
	sets = append(sets, localize.Localize(m.DefaultLocale, shared))

	if _, err := m.Upserter.UpsertEntry(ctx, upsert.EntryUpsertRequest{
		TargetID:    id,
		ContentType: "voyage",
		Fields:      localize.Merge(sets...),
		Mode:        m.Mode,
	}); err != nil {
		errs.add(fmt.Errorf("voyage %s: %w", id, err))
	}
	return errs.err()
}

func (m *Migrator) itineraryDay(ctx context.Context, errs *errList, id string, i int, defLocale string, def *episerver.Voyage, locales []string, content map[string]*episerver.Voyage) *contentful.Link {
	sets := []localize.FieldSet{}
	for _, l := range locales {
		v := content[l]
		if i >= len(v.Itinerary) {
			continue
		}
		day := v.Itinerary[i]
		sets = append(sets, localize.Localize(l, map[string]any{
			"day":         str(day.Day.String()),
			"location":    nonEmpty(day.Location),
			"name":        nonEmpty(day.Heading),
			"description": m.rich(ctx, errs, day.Body),
		}))
	}

	if i < len(def.Itinerary) {
		day := def.Itinerary[i]
		images := []*contentful.Link{}
		for j, item := range day.MediaContent {
			images = append(images, m.asset(ctx, errs, upsert.AssetUpsertRequest{
				TargetID:  fmt.Sprintf("itdpic%s-%s-%d", id, sanitize.Camelize(day.Day.String()), j),
				SourceURI: item.HighResolutionURI,
				Title:     deref(item.AlternateText),
				Locale:    defLocale,
			}))
		}
		sets = append(sets, localize.Localize(m.DefaultLocale, map[string]any{"images": links(images...)}))
	}

	return m.entry(ctx, errs, upsert.EntryUpsertRequest{
		TargetID:    fmt.Sprintf("itday%s-%d", id, i),
		ContentType: "itineraryDay",
		Fields:      localize.Merge(sets...),
		Mode:        m.Mode,
	})
}

// contentLocales are the locales that get content, with the record each one shows.  A market
// flagged as fallback content shows what its fallback chain resolves to, or nothing.  When no
// locale resolves, the default record stands in.
func contentLocales[T any](order []string, records map[string]T, isFallback func(T) bool, defLocale string) ([]string, map[string]T) {
	locales := []string{}
	content := map[string]T{}
	for _, l := range order {
		if _, r, ok := localize.Resolve(l, records, isFallback); ok {
			locales = append(locales, l)
			content[l] = r
		}
	}
	if len(locales) == 0 {
		locales = append(locales, defLocale)
		content[defLocale] = records[defLocale]
	}
	return locales, content
}

func maxLen[T any](locales []string, records map[string]T, length func(T) int) int {
	n := 0
	for _, l := range locales {
		if r, ok := records[l]; ok {
			n = max(n, length(r))
		}
	}
	return n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

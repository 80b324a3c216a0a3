package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/toothbrush/epi-contentful-sync/contentful"
	"github.com/toothbrush/epi-contentful-sync/episerver"
	"github.com/toothbrush/epi-contentful-sync/localize"
	"github.com/toothbrush/epi-contentful-sync/upsert"
)

var difficulties = map[string]string{
	"1": "Level 1 - For everyone",
	"2": "Level 2 - Easy",
	"3": "Level 3 - Medium",
	"4": "Level 4 - Hard",
}

// Season option IDs, for options that come without a text.
var seasonNames = map[string]string{
	"1": "Winter (Nov - Mar)",
	"2": "Spring (Apr - May)",
	"4": "Summer (Jun - Aug)",
	"8": "Autumn (Sep - Oct)",
}

// SyncExcursions migrates excursions and their picture.  The list feed already carries every
// field, so nothing is fetched per record.
func (m *Migrator) SyncExcursions(ctx context.Context, opts RunOptions) (Report, error) {
	list, err := collect(ctx, m, m.Locales, m.Source.ListExcursions, func(e episerver.Excursion) string {
		return strconv.Itoa(e.ID)
	})
	if err != nil {
		return Report{ContentType: "excursions"}, fmt.Errorf("migrate: couldn't list excursions: %w", err)
	}

	records := []record{}
	for _, id := range list.order {
		byLocale := list.byID[id]
		records = append(records, record{
			id: id,
			load: func(context.Context) (map[string]json.RawMessage, error) {
				raws := map[string]json.RawMessage{}
				for l, e := range byLocale {
					raws[l] = e.Raw
				}
				return raws, nil
			},
			migrate: func(ctx context.Context) error {
				return m.migrateExcursion(ctx, id, byLocale)
			},
		})
	}

	return m.run(ctx, "excursions", "Excursion", records, opts)
}

func excursionIsFallback(e episerver.Excursion) bool { return e.IsFallbackContent }

func (m *Migrator) migrateExcursion(ctx context.Context, id string, byLocale map[string]episerver.Excursion) error {
	defLocale, def, ok := localize.PickDefault(m.DefaultLocale, m.Locales, byLocale, excursionIsFallback)
	if !ok {
		return fmt.Errorf("migrate: no record for excursion %s", id)
	}

	var errs errList

	media := []*contentful.Link{}
	if def.Image != nil && def.Image.ImageURL != "" {
		title := def.Title
		if alt := nonEmpty(def.Image.AltText); alt != nil {
			title = *alt
		}
		media = append(media, m.asset(ctx, &errs, upsert.AssetUpsertRequest{
			TargetID:  "excp" + id,
			SourceURI: def.Image.ImageURL,
			Title:     deref(cleanTitle(title)),
			Locale:    defLocale,
		}))
	}

	sets := []localize.FieldSet{}
	locales, content := contentLocales(m.Locales, byLocale, excursionIsFallback, defLocale)
	for _, l := range locales {
		e := content[l]
		sets = append(sets, localize.Localize(l, excursionFields(e, m.rich(ctx, &errs, e.Summary))))
	}
	sets = append(sets, localize.Localize(m.DefaultLocale, map[string]any{
		"media": links(media...),
	}))

	if _, err := m.Upserter.UpsertEntry(ctx, upsert.EntryUpsertRequest{
		TargetID:    id,
		ContentType: "excursion",
		Fields:      localize.Merge(sets...),
		Mode:        m.Mode,
	}); err != nil {
		errs.add(fmt.Errorf("excursion %s: %w", id, err))
	}
	return errs.err()
}

func excursionFields(e episerver.Excursion, description any) map[string]any {
	categories := []string{}
	for _, c := range e.ActivityCategory {
		if c.ID != "0" {
			categories = append(categories, c.Text)
		}
	}
	years := []string{}
	for _, y := range e.Years {
		years = append(years, y.ID.String())
	}
	seasons := []string{}
	for _, s := range e.Seasons {
		text := s.Text
		if text == "" {
			text = seasonNames[s.ID.String()]
		}
		if text != "" {
			seasons = append(seasons, text)
		}
	}
	directions := []string{}
	for _, d := range e.Directions {
		if word, _, _ := strings.Cut(strings.TrimSpace(d.Text), " "); word != "" {
			directions = append(directions, word)
		}
	}

	fields := map[string]any{
		"name":        str(e.Title),
		"description": description,
		"categories":  categories,
		"years":       years,
		"seasons":     seasons,
		"location":    nonEmpty(e.Details),
		"directions":  directions,
		"duration":    nonEmpty(e.DurationText),
		"bookingCode": str(e.Code.String()),
	}
	if len(e.PhysicalLevel) > 0 {
		if label, ok := difficulties[e.PhysicalLevel[0].ID.String()]; ok {
			fields["difficulty"] = label
		}
	}
	return fields
}

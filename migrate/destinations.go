package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/toothbrush/epi-contentful-sync/episerver"
	"github.com/toothbrush/epi-contentful-sync/localize"
	"github.com/toothbrush/epi-contentful-sync/upsert"
)

// SyncDestinations migrates destinations, named by their heading in each market.
func (m *Migrator) SyncDestinations(ctx context.Context, opts RunOptions) (Report, error) {
	list, err := collect(ctx, m, m.Locales, m.Source.ListDestinations, func(d episerver.Destination) string {
		return strconv.Itoa(d.ID)
	})
	if err != nil {
		return Report{ContentType: "destinations"}, fmt.Errorf("migrate: couldn't list destinations: %w", err)
	}

	records := []record{}
	for _, id := range list.order {
		byLocale := list.byID[id]
		records = append(records, record{
			id: id,
			load: func(context.Context) (map[string]json.RawMessage, error) {
				raws := map[string]json.RawMessage{}
				for l, d := range byLocale {
					raws[l] = d.Raw
				}
				return raws, nil
			},
			migrate: func(ctx context.Context) error {
				sets := []localize.FieldSet{}
				for _, l := range m.Locales {
					if d, ok := byLocale[l]; ok {
						sets = append(sets, localize.Localize(l, map[string]any{"name": str(d.Heading)}))
					}
				}
				if _, err := m.Upserter.UpsertEntry(ctx, upsert.EntryUpsertRequest{
					TargetID:    id,
					ContentType: "destination",
					Fields:      localize.Merge(sets...),
					Mode:        m.Mode,
				}); err != nil {
					return fmt.Errorf("destination %s: %w", id, err)
				}
				return nil
			},
		})
	}

	return m.run(ctx, "destinations", "Destination", records, opts)
}

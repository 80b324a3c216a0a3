package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/toothbrush/epi-contentful-sync/episerver"
	"github.com/toothbrush/epi-contentful-sync/localize"
	"github.com/toothbrush/epi-contentful-sync/upsert"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// SyncPorts migrates ports under their port code.  Port names are taken per market.
func (m *Migrator) SyncPorts(ctx context.Context, opts RunOptions) (Report, error) {
	list, err := collect(ctx, m, m.Locales, m.Source.ListPorts, func(p episerver.Port) string {
		return p.Code
	})
	if err != nil {
		return Report{ContentType: "ports"}, fmt.Errorf("migrate: couldn't list ports: %w", err)
	}

	records := []record{}
	for _, code := range list.order {
		byLocale := list.byID[code]
		records = append(records, record{
			id: code,
			load: func(context.Context) (map[string]json.RawMessage, error) {
				if strings.TrimSpace(code) == "" {
					return nil, fmt.Errorf("migrate: port without code")
				}
				raws := map[string]json.RawMessage{}
				for l, p := range byLocale {
					raws[l] = p.Raw
				}
				return raws, nil
			},
			migrate: func(ctx context.Context) error {
				return m.migratePort(ctx, code, byLocale)
			},
		})
	}

	return m.run(ctx, "ports", "Port", records, opts)
}

func (m *Migrator) migratePort(ctx context.Context, code string, byLocale map[string]episerver.Port) error {
	_, def, ok := localize.PickDefault(m.DefaultLocale, m.Locales, byLocale, func(episerver.Port) bool { return false })
	if !ok {
		return fmt.Errorf("migrate: no record for port %s", code)
	}

	sets := []localize.FieldSet{}
	for _, l := range m.Locales {
		if p, ok := byLocale[l]; ok {
			sets = append(sets, localize.Localize(l, map[string]any{"name": str(p.Name)}))
		}
	}
	sets = append(sets, localize.Localize(m.DefaultLocale, map[string]any{
		"code":    code,
		"country": str(CountryName(def.CountryCode)),
	}))

	if _, err := m.Upserter.UpsertEntry(ctx, upsert.EntryUpsertRequest{
		TargetID:    code,
		ContentType: "port",
		Fields:      localize.Merge(sets...),
		Mode:        m.Mode,
	}); err != nil {
		return fmt.Errorf("port %s: %w", code, err)
	}
	return nil
}

// CountryName is the English name of an ISO 3166 country code, e.g. NO is Norway.  Unknown codes
// are returned as they are.
func CountryName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return code
	}
	if name := display.English.Regions().Name(region); name != "" {
		return name
	}
	return code
}

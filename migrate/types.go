package migrate

import (
	"context"
	"fmt"
	"strings"
)

// SyncTypes are the content types a sync run accepts.
var SyncTypes = []string{"excursions", "voyages", "ships", "programs", "ports", "destinations"}

// AllTypes are what "all" syncs and publishes, in order.
var AllTypes = []string{"excursions", "voyages", "ships"}

// The CMS content type each sync type writes its records as.
var entryContentTypes = map[string]string{
	"excursions":   "excursion",
	"voyages":      "voyage",
	"ships":        "ship",
	"programs":     "program",
	"ports":        "port",
	"destinations": "destination",
}

// ParseTypes splits a comma-separated list of sync types.  "all" expands to AllTypes.
func ParseTypes(s string) ([]string, error) {
	out := []string{}
	for _, t := range strings.Split(s, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		switch {
		case t == "":
			continue
		case t == "all":
			out = append(out, AllTypes...)
		case entryContentTypes[t] != "":
			out = append(out, t)
		default:
			return nil, fmt.Errorf("migrate: unknown content type %q, expected one of %s", t, strings.Join(SyncTypes, ", "))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("migrate: no content type given")
	}
	return out, nil
}

// Sync runs the sync of one content type.
func (m *Migrator) Sync(ctx context.Context, contentType string, opts RunOptions) (Report, error) {
	m.Upserter.ResetHashes()
	switch contentType {
	case "excursions":
		return m.SyncExcursions(ctx, opts)
	case "voyages":
		return m.SyncVoyages(ctx, opts)
	case "ships":
		return m.SyncShips(ctx, opts)
	case "programs":
		return m.SyncPrograms(ctx, opts)
	case "ports":
		return m.SyncPorts(ctx, opts)
	case "destinations":
		return m.SyncDestinations(ctx, opts)
	}
	return Report{ContentType: contentType}, fmt.Errorf("migrate: unknown content type %q", contentType)
}

// SyncMany syncs each type in turn.  A failing type is logged and the rest still run; the
// returned error joins the failures.
func (m *Migrator) SyncMany(ctx context.Context, types []string, opts RunOptions) ([]Report, error) {
	reports := []Report{}
	var errs errList
	for _, t := range types {
		report, err := m.Sync(ctx, t, opts)
		reports = append(reports, report)
		if err != nil {
			m.logf("Sync of %s failed: %v", t, err)
			errs.add(err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return reports, errs.err()
}

// PublishMany publishes the assets of each type in turn.
func (m *Migrator) PublishMany(ctx context.Context, types []string) ([]PublishReport, error) {
	reports := []PublishReport{}
	var errs errList
	for _, t := range types {
		if _, ok := AssetPrefixes[t]; !ok {
			m.logf("No assets to publish for %s", t)
			continue
		}
		report, err := m.PublishAssets(ctx, t)
		reports = append(reports, report)
		if err != nil {
			m.logf("Publishing %s assets failed: %v", t, err)
			errs.add(err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return reports, errs.err()
}

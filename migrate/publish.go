package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/toothbrush/epi-contentful-sync/contentful"
	"golang.org/x/exp/slices"
)

// AssetPrefixes are the ID prefixes of the assets each sync type creates.
var AssetPrefixes = map[string][]string{
	"excursions": {"excp"},
	"voyages":    {"voyagePicture", "itdpic", "voyageMap"},
	"ships":      {"shippic-", "shCabCatPic-", "shCabGr-", "deckPic-"},
	"programs":   {"prpo-"},
}

type PublishReport struct {
	ContentType string
	Published   int
	Unchanged   int
	// Rejected by validation and deleted.
	Deleted int
	Failed  int
}

func (r PublishReport) String() string {
	return fmt.Sprintf("%s assets: %d published, %d already live, %d deleted, %d failed",
		r.ContentType, r.Published, r.Unchanged, r.Deleted, r.Failed)
}

// PublishAssets publishes the unpublished assets a sync of contentType created.  Assets the CMS
// refuses to publish are deleted, so the next sync uploads them again.
func (m *Migrator) PublishAssets(ctx context.Context, contentType string) (PublishReport, error) {
	report := PublishReport{ContentType: contentType}
	prefixes, ok := AssetPrefixes[contentType]
	if !ok {
		return report, fmt.Errorf("migrate: no assets known for %q", contentType)
	}

	assets := []contentful.Asset{}
	seen := map[string]bool{}
	for _, prefix := range prefixes {
		// sys.id[match] is a full-text match, so it can return more than the prefix.
		found, err := m.CMS.ListAllAssets(ctx, contentful.AssetsQuery{IDMatch: prefix, Limit: contentful.MaxPageSize})
		if err != nil {
			return report, fmt.Errorf("migrate: couldn't list %s assets: %w", prefix, err)
		}
		for _, a := range found {
			if strings.HasPrefix(a.Sys.ID, prefix) && !seen[a.Sys.ID] {
				seen[a.Sys.ID] = true
				assets = append(assets, a)
			}
		}
	}
	slices.SortFunc(assets, func(a, b contentful.Asset) int { return strings.Compare(a.Sys.ID, b.Sys.ID) })
	m.logf("Found %d %s assets", len(assets), contentType)

	p, bar := m.progress(contentType+" assets", len(assets))
	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			if bar != nil {
				bar.Abort(false)
				p.Wait()
			}
			return report, fmt.Errorf("migrate: publishing interrupted: %w", context.Cause(ctx))
		}
		m.publishAsset(ctx, a, &report)
		if bar != nil {
			bar.Increment()
		}
	}
	if p != nil {
		p.Wait()
	}

	m.logf("...done: %s", report)
	return report, nil
}

func (m *Migrator) publishAsset(ctx context.Context, a contentful.Asset, report *PublishReport) {
	if a.Sys.IsPublished() {
		report.Unchanged++
		return
	}

	_, err := m.CMS.PublishAsset(ctx, a.Sys.ID, a.Sys.Version)
	switch {
	case err == nil:
		m.logf("Asset published: %s", a.Sys.ID)
		report.Published++
	case contentful.IsValidation(err):
		m.logf("Asset %s failed validation, deleting it: %v", a.Sys.ID, err)
		if a.Sys.HasPublishedVersion() {
			if err := m.CMS.UnpublishAsset(ctx, a.Sys.ID); err != nil {
				m.logf("Couldn't unpublish asset %s: %v", a.Sys.ID, err)
			}
		}
		if err := m.CMS.DeleteAsset(ctx, a.Sys.ID); err != nil {
			m.logf("Couldn't delete asset %s: %v", a.Sys.ID, err)
			report.Failed++
			return
		}
		report.Deleted++
	default:
		m.logf("Couldn't publish asset %s: %v", a.Sys.ID, err)
		report.Failed++
	}
}

package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/toothbrush/epi-contentful-sync/contentful"
	"github.com/toothbrush/epi-contentful-sync/episerver"
	"github.com/toothbrush/epi-contentful-sync/localize"
	"github.com/toothbrush/epi-contentful-sync/sanitize"
	"github.com/toothbrush/epi-contentful-sync/upsert"
)

// SyncShips fills in the ship entries that already exist in the CMS: picture, cabin categories
// with their grades, and deck plans.  Ships are read from a single market.
func (m *Migrator) SyncShips(ctx context.Context, opts RunOptions) (Report, error) {
	lctx, cancel := m.withTimeout(ctx)
	ships, err := m.CMS.ListAllEntries(lctx, contentful.EntriesQuery{ContentType: "ship"})
	cancel()
	if err != nil {
		return Report{ContentType: "ships"}, fmt.Errorf("migrate: couldn't list ships: %w", err)
	}
	m.logf("Number of ships in Contentful: %d", len(ships))

	locale := m.sourceLocale()
	records := []record{}
	for _, ship := range ships {
		code := fieldString(ship.Fields, "code", m.DefaultLocale)
		name := fieldString(ship.Fields, "name", m.DefaultLocale)
		var data *episerver.Ship

		records = append(records, record{
			id: ship.Sys.ID,
			load: func(ctx context.Context) (map[string]json.RawMessage, error) {
				if code == "" {
					return nil, fmt.Errorf("migrate: ship %s has no code", ship.Sys.ID)
				}
				lctx, cancel := m.withTimeout(ctx)
				defer cancel()
				d, err := m.Source.GetShip(lctx, locale, code)
				if err != nil {
					return nil, fmt.Errorf("migrate: couldn't fetch ship %s: %w", code, err)
				}
				data = d
				return map[string]json.RawMessage{locale: d.Raw}, nil
			},
			migrate: func(ctx context.Context) error {
				m.logf("Migrating data for ship %s, %s", name, ship.Sys.ID)
				return m.migrateShip(ctx, ship.Sys.ID, code, name, locale, data)
			},
		})
	}

	return m.run(ctx, "ships", "Ship", records, opts)
}

func (m *Migrator) migrateShip(ctx context.Context, shipID string, code string, name string, locale string, data *episerver.Ship) error {
	var errs errList
	shared := map[string]any{}

	if data.ImageURL != "" {
		if image := m.asset(ctx, &errs, upsert.AssetUpsertRequest{
			TargetID:  "shippic-" + code,
			SourceURI: data.ImageURL,
			Title:     name,
			Locale:    locale,
		}); image != nil {
			shared["images"] = []contentful.Link{*image}
		}
	}

	if len(data.CabinCategories) > 0 {
		containers := []*contentful.Link{}
		for _, category := range data.CabinCategories {
			containers = append(containers, m.cabinCategory(ctx, &errs, code, locale, category))
		}
		shared["cabinCategories"] = links(containers...)
	}

	if len(data.Decks) > 0 {
		plans := []*contentful.Link{}
		for _, deck := range data.Decks {
			plans = append(plans, m.deckPlan(ctx, &errs, code, locale, deck))
		}
		shared["deckPlans"] = links(plans...)
	}

	if len(shared) == 0 {
		return errs.err()
	}

	// The ship entry is maintained by hand, so only these slots are touched.
	if _, err := m.Upserter.UpsertEntry(ctx, upsert.EntryUpsertRequest{
		TargetID:    shipID,
		ContentType: "ship",
		Fields:      localize.Localize(m.DefaultLocale, shared),
		Mode:        upsert.MergeByLocale,
	}); err != nil {
		errs.add(fmt.Errorf("ship %s: %w", shipID, err))
	} else {
		m.logf("Ship %s updated", name)
	}
	return errs.err()
}

// cabinCategory writes the category, its container with pictures and grades, and returns the
// container link.
func (m *Migrator) cabinCategory(ctx context.Context, errs *errList, code string, locale string, category episerver.CabinCategory) *contentful.Link {
	letters := sanitize.ExtractFirstLetters(category.Title)
	categoryID := fmt.Sprintf("%s-%s", code, letters)

	categoryLink := m.entry(ctx, errs, upsert.EntryUpsertRequest{
		TargetID:    categoryID,
		ContentType: "cabinCategory",
		Fields: localize.Localize(m.DefaultLocale, map[string]any{
			"code":        categoryID,
			"name":        str(category.Title),
			"description": m.rich(ctx, errs, category.Description),
		}),
		Mode: m.Mode,
	})
	if categoryLink == nil {
		return nil
	}

	media := []*contentful.Link{}
	for i, item := range category.Media {
		media = append(media, m.asset(ctx, errs, upsert.AssetUpsertRequest{
			TargetID:  fmt.Sprintf("shCabCatPic-%s-%s-%d", code, letters, i),
			SourceURI: item.HighResolutionURI,
			Title:     deref(item.AlternateText),
			Locale:    locale,
		}))
	}

	grades := []*contentful.Link{}
	for _, grade := range category.CabinGrades {
		grades = append(grades, m.cabinGrade(ctx, errs, code, letters, locale, grade))
	}

	return m.entry(ctx, errs, upsert.EntryUpsertRequest{
		TargetID:    fmt.Sprintf("cabcatcont-%s-%s", code, letters),
		ContentType: "cabinCategoryContainer",
		Fields: localize.Localize(m.DefaultLocale, map[string]any{
			"category":    *categoryLink,
			"media":       links(media...),
			"cabinGrades": links(grades...),
		}),
		Mode: m.Mode,
	})
}

func (m *Migrator) cabinGrade(ctx context.Context, errs *errList, code string, letters string, locale string, grade episerver.CabinGrade) *contentful.Link {
	gradeCode := grade.Code.String()

	features := []string{}
	for _, f := range []struct {
		name string
		has  bool
	}{
		{"bathroom", grade.HasBathroom},
		{"balcony", grade.HasBalcony},
		{"sofa", grade.HasSofa},
		{"tv", grade.HasTv},
		{"dinnerTable", grade.HasDinnerTable},
	} {
		if f.has {
			features = append(features, f.name)
		}
	}

	media := []*contentful.Link{}
	for i, imageURL := range grade.CabinGradeImages {
		media = append(media, m.asset(ctx, errs, upsert.AssetUpsertRequest{
			TargetID:  fmt.Sprintf("shCabGr-%s-%s-%d", code, gradeCode, i),
			SourceURI: imageURL,
			Title:     deref(cleanTitle(baseName(imageURL))),
			Locale:    locale,
		}))
	}

	fields := map[string]any{
		"code":             str(gradeCode),
		"name":             str(grade.Title),
		"shortDescription": m.rich(ctx, errs, grade.ShortDescription),
		"longDescription":  m.rich(ctx, errs, grade.LongDescription),
		"extraInformation": m.rich(ctx, errs, grade.ExtraInformation),
		"sizeFrom":         grade.SizeFrom,
		"sizeTo":           grade.SizeTo,
		"features":         features,
		"isSpecial":        grade.IsSpecial,
		"media":            links(media...),
	}
	if bed := m.codeEntry(ctx, errs, "bed", grade.Bed.String()); bed != nil {
		fields["bed"] = *bed
	}
	if window := m.codeEntry(ctx, errs, "window", grade.Window.String()); window != nil {
		fields["window"] = *window
	}

	return m.entry(ctx, errs, upsert.EntryUpsertRequest{
		TargetID:    fmt.Sprintf("cg-%s-%s-%s", code, letters, gradeCode),
		ContentType: "cabinGrade",
		Fields:      localize.Localize(m.DefaultLocale, fields),
		Mode:        m.Mode,
	})
}

func (m *Migrator) codeEntry(ctx context.Context, errs *errList, contentType string, code string) *contentful.Link {
	if strings.TrimSpace(code) == "" {
		return nil
	}
	link, err := m.Upserter.EnsureCodeEntry(ctx, contentType, code)
	if err != nil {
		errs.add(fmt.Errorf("%s %s: %w", contentType, code, err))
		return nil
	}
	return &link
}

func (m *Migrator) deckPlan(ctx context.Context, errs *errList, code string, locale string, deck episerver.Deck) *contentful.Link {
	number, err := deck.Number.Int()
	if err != nil {
		errs.add(fmt.Errorf("migrate: deck number %q of ship %s: %w", deck.Number, code, err))
		return nil
	}

	fields := map[string]any{"deck": number}
	if deck.Deck != nil && deck.Deck.HighResolutionURI != "" {
		if plan := m.asset(ctx, errs, upsert.AssetUpsertRequest{
			TargetID:  fmt.Sprintf("deckPic-%s-%d", code, number),
			SourceURI: deck.Deck.HighResolutionURI,
			Title:     deref(sanitize.CleanAssetName(deck.Deck.AlternateText)),
			Locale:    locale,
		}); plan != nil {
			fields["plan"] = *plan
		}
	}

	return m.entry(ctx, errs, upsert.EntryUpsertRequest{
		TargetID:    "dplan-" + code + "-" + strconv.Itoa(number),
		ContentType: "deckPlan",
		Fields:      localize.Localize(m.DefaultLocale, fields),
		Mode:        m.Mode,
	})
}

// fieldString reads a text field of an entry, or "".
func fieldString(fields contentful.Fields, name string, locale string) string {
	s, _ := fields[name][locale].(string)
	return s
}

// baseName is the file name of a URL without its extension.
func baseName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

func cleanTitle(s string) *string {
	return sanitize.CleanAssetName(&s)
}

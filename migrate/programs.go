package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/toothbrush/epi-contentful-sync/episerver"
	"github.com/toothbrush/epi-contentful-sync/localize"
	"github.com/toothbrush/epi-contentful-sync/sanitize"
	"github.com/toothbrush/epi-contentful-sync/upsert"
	"golang.org/x/exp/slices"
)

// SyncPrograms migrates programs from every market.  Markets that flag a program as fallback
// content only contribute its booking code and price.
func (m *Migrator) SyncPrograms(ctx context.Context, opts RunOptions) (Report, error) {
	list, err := collect(ctx, m, m.Locales, m.Source.ListPrograms, func(p episerver.Program) string {
		return strconv.Itoa(p.ID)
	})
	if err != nil {
		return Report{ContentType: "programs"}, fmt.Errorf("migrate: couldn't list programs: %w", err)
	}

	records := []record{}
	for _, id := range list.order {
		byLocale := list.byID[id]
		records = append(records, record{
			id: id,
			load: func(context.Context) (map[string]json.RawMessage, error) {
				raws := map[string]json.RawMessage{}
				for l, p := range byLocale {
					raws[l] = p.Raw
				}
				return raws, nil
			},
			migrate: func(ctx context.Context) error {
				return m.migrateProgram(ctx, id, byLocale)
			},
		})
	}

	return m.run(ctx, "programs", "Program", records, opts)
}

func programIsFallback(p episerver.Program) bool { return p.IsFallbackContent }

func (m *Migrator) migrateProgram(ctx context.Context, id string, byLocale map[string]episerver.Program) error {
	_, def, ok := localize.PickDefault(m.DefaultLocale, m.Locales, byLocale, programIsFallback)
	if !ok {
		return fmt.Errorf("migrate: could not find default program detail for program ID: %s", id)
	}

	var errs errList
	m.programImages(ctx, &errs, def, byLocale)

	sets := []localize.FieldSet{}
	for _, l := range m.Locales {
		p, ok := byLocale[l]
		if !ok {
			continue
		}

		fields := map[string]any{
			"bookingCode": str(firstNonEmpty(p.BookingCode.String(), p.Code.String())),
			"price":       programPrice(p),
			"currency":    programCurrency(p),
		}
		if !p.IsFallbackContent {
			slug := sanitize.ExtractSlug(p.URL)
			if slug == "" {
				slug = sanitize.SlugFromTitle(p.Name())
			}
			description := p.Body
			for _, alt := range []*string{p.Summary, def.Body} {
				if nonEmpty(description) == nil {
					description = alt
				}
			}
			fields["slug"] = str(slug)
			fields["name"] = str(p.Name())
			fields["introduction"] = nonEmpty(p.Intro)
			fields["description"] = m.rich(ctx, &errs, description)
			fields["practicalInformation"] = m.rich(ctx, &errs, p.SecondaryBody)
			fields["durationHours"] = number(p.DurationHours)
			fields["durationDays"] = number(p.DurationDays)
			fields["sellingPoints"] = texts(p.SellingPoints)
		}
		sets = append(sets, localize.Localize(l, localize.RemoveFieldsIfFallback(fields, p.IsFallbackContent)))
	}

	if _, err := m.Upserter.UpsertEntry(ctx, upsert.EntryUpsertRequest{
		TargetID:    id,
		ContentType: "program",
		Fields:      localize.Merge(sets...),
		Mode:        m.Mode,
	}); err != nil {
		errs.add(fmt.Errorf("program %s: %w", id, err))
	}
	return errs.err()
}

type programImage struct {
	item     *episerver.Media
	locale   string
	captions []localize.FieldSet
}

// programImages writes one asset and one imageWrapper entry per distinct picture, captioned in
// every market that shows it.
func (m *Migrator) programImages(ctx context.Context, errs *errList, def episerver.Program, byLocale map[string]episerver.Program) {
	order := []string{}
	images := map[string]*programImage{}
	for _, l := range m.Locales {
		p, ok := byLocale[l]
		if !ok {
			continue
		}
		for _, item := range p.MediaContent {
			if item == nil || item.HighResolutionURI == "" {
				continue
			}
			mediaID := item.ID.String()
			img, seen := images[mediaID]
			if !seen {
				img = &programImage{item: item, locale: l}
				images[mediaID] = img
				order = append(order, mediaID)
			}
			img.captions = append(img.captions, localize.Localize(l, map[string]any{
				"caption": nonEmpty(item.AlternateText),
			}))
		}
	}

	internalName := ""
	if def.Image != nil {
		internalName = deref(def.Image.AltText)
	}

	for _, mediaID := range order {
		img := images[mediaID]
		title := deref(nonEmpty(img.item.AlternateText))
		if title == "" {
			title = def.Name()
		}
		image := m.asset(ctx, errs, upsert.AssetUpsertRequest{
			TargetID:  "prpo-" + mediaID,
			SourceURI: img.item.HighResolutionURI,
			Title:     title,
			Locale:    img.locale,
		})
		if image == nil {
			continue
		}
		sets := append(slices.Clone(img.captions), localize.Localize(m.DefaultLocale, map[string]any{
			"internalName": internalName,
			"image":        *image,
		}))
		m.entry(ctx, errs, upsert.EntryUpsertRequest{
			TargetID:    "prpo-" + mediaID,
			ContentType: "imageWrapper",
			Fields:      localize.Merge(sets...),
			Mode:        m.Mode,
		})
	}
}

var (
	digits       = regexp.MustCompile(`[0-9]`)
	numericChars = regexp.MustCompile(`[^0-9.]`)
)

// programPrice is priceValue, else the number inside price, else 0.
func programPrice(p episerver.Program) any {
	if p.PriceValue != nil && *p.PriceValue != 0 {
		return *p.PriceValue
	}
	cleaned := numericChars.ReplaceAllString(p.Price.String(), "")
	if v, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return v
	}
	return 0
}

// programCurrency is currency, else whatever price carries besides digits, e.g. "NOK" of "1990 NOK".
func programCurrency(p episerver.Program) *string {
	if c := nonEmpty(p.Currency); c != nil {
		return c
	}
	rest := digits.ReplaceAllString(p.Price.String(), "")
	rest = strings.Trim(rest, " .,")
	return str(rest)
}

// number converts a source number of any spelling, or nil when there is none.
func number(f episerver.FlexString) any {
	s := strings.TrimSpace(f.String())
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return nil
}

// texts drops empty entries.
func texts(in []*string) []string {
	out := []string{}
	for _, s := range in {
		if nonEmpty(s) != nil {
			out = append(out, *s)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

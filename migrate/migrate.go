// Package migrate holds the per-content-type orchestrations: fetch the records of every market,
// map them to CMS fields, and write them through the upsert layer.
package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/toothbrush/epi-contentful-sync/checkpoint"
	"github.com/toothbrush/epi-contentful-sync/contentful"
	"github.com/toothbrush/epi-contentful-sync/episerver"
	"github.com/toothbrush/epi-contentful-sync/richtext"
	"github.com/toothbrush/epi-contentful-sync/upsert"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/exp/slices"
)

// CMS is what the orchestrations need from the management API on top of the upserter's needs.
// *contentful.API implements it.
type CMS interface {
	upsert.CMS
	ListAllEntries(ctx context.Context, query contentful.EntriesQuery) ([]contentful.Entry, error)
	ListAllAssets(ctx context.Context, query contentful.AssetsQuery) ([]contentful.Asset, error)
	PublishAsset(ctx context.Context, id string, version int) (*contentful.Asset, error)
	GetContentType(ctx context.Context, id string) (*contentful.ContentType, error)
	UnpublishContentType(ctx context.Context, id string) error
	DeleteContentType(ctx context.Context, id string) error
}

// Source is the market feed.  *episerver.API implements it.
type Source interface {
	ConfiguredLocales() []string
	ListVoyages(ctx context.Context, locale string) ([]episerver.Voyage, error)
	GetVoyage(ctx context.Context, locale string, id int) (*episerver.Voyage, error)
	ListExcursions(ctx context.Context, locale string) ([]episerver.Excursion, error)
	GetShip(ctx context.Context, locale string, code string) (*episerver.Ship, error)
	ListPrograms(ctx context.Context, locale string) ([]episerver.Program, error)
	ListPorts(ctx context.Context, locale string) ([]episerver.Port, error)
	ListDestinations(ctx context.Context, locale string) ([]episerver.Destination, error)
	ListSummaries(ctx context.Context, locale string, contentType episerver.ContentType) ([]episerver.Summary, error)
}

type Migrator struct {
	CMS         CMS
	Source      Source
	Upserter    *upsert.Upserter
	RichText    richtext.Converter
	Checkpoints checkpoint.Store

	// Locale that links, asset files and code entries live under.
	DefaultLocale string

	// Source locales to migrate, in merge order.  Each is also the CMS locale it's written to.
	Locales []string

	// How records' own entries are written.  Sub-entries that only this tool owns follow it too.
	Mode upsert.Mode

	// Per source request.
	Timeout time.Duration

	// Render a progress bar over the records of a run.
	Progress bool

	Logger   *log.Logger
	loggerMu sync.Mutex
}

// New returns a Migrator over every configured source locale except the global "en" site, whose
// content the markets fall back to.
func New(cms CMS, source Source, upserter *upsert.Upserter, converter richtext.Converter, store checkpoint.Store) *Migrator {
	locales := []string{}
	for _, l := range source.ConfiguredLocales() {
		if l != "en" {
			locales = append(locales, l)
		}
	}
	return &Migrator{
		CMS:           cms,
		Source:        source,
		Upserter:      upserter,
		RichText:      converter,
		Checkpoints:   store,
		DefaultLocale: upserter.DefaultLocale,
		Locales:       locales,
		Mode:          upsert.MergeByLocale,
		Timeout:       2 * time.Minute,
		Logger:        log.Default(),
	}
}

func (m *Migrator) logf(format string, args ...any) {
	m.loggerMu.Lock()
	defer m.loggerMu.Unlock()
	if m.Logger != nil {
		m.Logger.Printf(format, args...)
	}
}

// RunOptions narrows a sync run.
type RunOptions struct {
	// Source IDs (CMS entry IDs for ships) to migrate.  Empty means all.
	IDs []string
	// Skip IDs instead of restricting to them.
	Exclude bool
	// Process records in random order, so several instances can share the work.
	Shuffle bool
	// Migrate records even when their checkpoints match.
	AlwaysSync bool
}

func (o RunOptions) wants(id string) bool {
	if len(o.IDs) == 0 {
		return true
	}
	return slices.Contains(o.IDs, id) != o.Exclude
}

type Outcome int8

const (
	Migrated Outcome = iota
	SkippedCached
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Migrated:
		return "migrated"
	case SkippedCached:
		return "skipped"
	default:
		return "failed"
	}
}

// Report summarises one content type's run.
type Report struct {
	ContentType string
	Migrated    int
	Skipped     int
	Failed      []string
}

func (r Report) String() string {
	return fmt.Sprintf("%s: %d migrated, %d unchanged, %d failed", r.ContentType, r.Migrated, r.Skipped, len(r.Failed))
}

// record is one unit of the loop.  load fetches whatever the migration needs and returns the raw
// bytes per locale the checkpoints are computed from; migrate writes it.
type record struct {
	id      string
	load    func(ctx context.Context) (map[string]json.RawMessage, error)
	migrate func(ctx context.Context) error
}

// errList gathers failures of sub-entries and assets.  They don't stop the record, but make it
// fail at the end so that its checkpoints are dropped and the next run retries it.
type errList struct {
	errs []error
}

func (e *errList) add(err error) {
	if err != nil {
		e.errs = append(e.errs, err)
	}
}

func (e *errList) err() error {
	return errors.Join(e.errs...)
}

// run migrates the wanted records one after the other.  A failing record is logged and its
// checkpoints dropped; only cancellation stops the loop.
func (m *Migrator) run(ctx context.Context, phase string, label string, records []record, opts RunOptions) (Report, error) {
	report := Report{ContentType: phase}

	selected := []record{}
	for _, r := range records {
		if opts.wants(r.id) {
			selected = append(selected, r)
		}
	}
	if opts.Shuffle {
		rand.Shuffle(len(selected), func(i, j int) { selected[i], selected[j] = selected[j], selected[i] })
	}
	m.logf("Migrating %d %s...", len(selected), phase)

	p, bar := m.progress(phase, len(selected))

	for _, r := range selected {
		if err := ctx.Err(); err != nil {
			if bar != nil {
				bar.Abort(false)
				p.Wait()
			}
			return report, fmt.Errorf("migrate: %s run interrupted: %w", phase, context.Cause(ctx))
		}

		switch m.runRecord(ctx, label, r, opts.AlwaysSync) {
		case Migrated:
			report.Migrated++
		case SkippedCached:
			report.Skipped++
		case Failed:
			report.Failed = append(report.Failed, r.id)
		}
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

// progress returns a bar over total units, or nils when progress output is off.
func (m *Migrator) progress(phase string, total int) (*mpb.Progress, *mpb.Bar) {
	if !m.Progress || total == 0 {
		return nil, nil
	}
	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			// display our name with one space on the right
			decor.Name(fmt.Sprintf("%s:", phase),
				decor.WC{C: decor.DindentRight | decor.DextraSpace}),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d/%d) "),
			decor.NewPercentage("%d"),
			decor.Spinner([]string{" /", " -", " \\", " |"}),
		),
	)
	return p, bar
}

func (m *Migrator) runRecord(ctx context.Context, label string, r record, alwaysSync bool) (outcome Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logf("%s migration panicked with ID: %s: %v\n%s", label, r.id, rec, debug.Stack())
			m.dropCheckpoints(ctx, r.id)
			outcome = Failed
		}
	}()

	raws, err := r.load(ctx)
	if err != nil {
		m.logf("%s migration error with ID: %s, error: %v", label, r.id, err)
		m.dropCheckpoints(ctx, r.id)
		return Failed
	}

	sums := map[string]string{}
	for locale, raw := range raws {
		sums[locale] = checkpoint.Checksum(raw)
	}
	if !alwaysSync && m.unchanged(ctx, r.id, sums) {
		return SkippedCached
	}

	m.logf("%s migration started with ID: %s", label, r.id)
	if err := r.migrate(ctx); err != nil {
		m.logf("%s migration error with ID: %s, error: %v", label, r.id, err)
		m.dropCheckpoints(ctx, r.id)
		return Failed
	}

	for locale, sum := range sums {
		if err := m.Checkpoints.Put(ctx, checkpoint.Key{SourceID: r.id, Locale: locale}, sum); err != nil {
			m.logf("Couldn't store checkpoint for %s/%s: %v", r.id, locale, err)
		}
	}
	m.logf("%s migration finished with ID: %s", label, r.id)
	return Migrated
}

func (m *Migrator) unchanged(ctx context.Context, id string, sums map[string]string) bool {
	if m.Checkpoints == nil || len(sums) == 0 {
		return false
	}
	for locale, sum := range sums {
		stored, ok, err := m.Checkpoints.Get(ctx, checkpoint.Key{SourceID: id, Locale: locale})
		if err != nil {
			m.logf("Couldn't read checkpoint for %s/%s: %v", id, locale, err)
			return false
		}
		if !ok || stored != sum {
			return false
		}
	}
	return true
}

// dropCheckpoints forgets every locale of id, so the next run retries it.
func (m *Migrator) dropCheckpoints(ctx context.Context, id string) {
	if m.Checkpoints == nil {
		return
	}
	for _, locale := range m.Locales {
		if err := m.Checkpoints.Delete(ctx, checkpoint.Key{SourceID: id, Locale: locale}); err != nil {
			m.logf("Couldn't delete checkpoint for %s/%s: %v", id, locale, err)
		}
	}
}

func (m *Migrator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.Timeout)
}

// sourceLocale is where single-market content (ships, ports) is read from.
func (m *Migrator) sourceLocale() string {
	if slices.Contains(m.Locales, m.DefaultLocale) {
		return m.DefaultLocale
	}
	if len(m.Locales) > 0 {
		return m.Locales[0]
	}
	return m.DefaultLocale
}

// listed is one feed fetched from every locale, grouped by record ID.
type listed[T any] struct {
	order []string
	byID  map[string]map[string]T
}

// collect lists a feed in every locale.  A market that can't be read is logged and left out.
func collect[T any](ctx context.Context, m *Migrator, locales []string, list func(context.Context, string) ([]T, error), idOf func(T) string) (listed[T], error) {
	out := listed[T]{byID: map[string]map[string]T{}}
	failures := 0
	for _, locale := range locales {
		lctx, cancel := m.withTimeout(ctx)
		items, err := list(lctx, locale)
		cancel()
		if err != nil {
			m.logf("Couldn't list %s records: %v", locale, err)
			failures++
			continue
		}
		for _, item := range items {
			id := idOf(item)
			if _, ok := out.byID[id]; !ok {
				out.order = append(out.order, id)
				out.byID[id] = map[string]T{}
			}
			out.byID[id][locale] = item
		}
	}
	if failures == len(locales) && failures > 0 {
		return out, fmt.Errorf("migrate: couldn't list records in any locale")
	}
	return out, nil
}

// rich converts html, logging failures into errs.  Nil input or a failed conversion yields nil.
func (m *Migrator) rich(ctx context.Context, errs *errList, html *string) any {
	if m.RichText == nil {
		return nil
	}
	doc, err := richtext.Convert(ctx, m.RichText, html)
	if err != nil {
		errs.add(err)
		return nil
	}
	if doc == nil {
		return nil
	}
	return doc
}

// asset upserts and returns the link, or nil after recording the failure.
func (m *Migrator) asset(ctx context.Context, errs *errList, req upsert.AssetUpsertRequest) *contentful.Link {
	ref, err := m.Upserter.UpsertAsset(ctx, req)
	if err != nil {
		m.logf("Asset %s failed: %v", req.TargetID, err)
		errs.add(fmt.Errorf("asset %s: %w", req.TargetID, err))
		return nil
	}
	link := ref.Link()
	return &link
}

// entry upserts and returns the link, or nil after recording the failure.
func (m *Migrator) entry(ctx context.Context, errs *errList, req upsert.EntryUpsertRequest) *contentful.Link {
	link, err := m.Upserter.UpsertEntry(ctx, req)
	if err != nil {
		errs.add(fmt.Errorf("entry %s: %w", req.TargetID, err))
		return nil
	}
	return &link
}

// links drops the failed ones.
func links(in ...*contentful.Link) []contentful.Link {
	out := []contentful.Link{}
	for _, l := range in {
		if l != nil {
			out = append(out, *l)
		}
	}
	return out
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func str(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

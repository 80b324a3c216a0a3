/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/exp/slices"
	"gopkg.in/dnaeon/go-vcr.v3/cassette"
	"gopkg.in/dnaeon/go-vcr.v3/recorder"
	"gopkg.in/yaml.v2"

	"github.com/toothbrush/epi-contentful-sync/checkpoint"
	"github.com/toothbrush/epi-contentful-sync/contentful"
	"github.com/toothbrush/epi-contentful-sync/episerver"
	"github.com/toothbrush/epi-contentful-sync/migrate"
	"github.com/toothbrush/epi-contentful-sync/notify"
	"github.com/toothbrush/epi-contentful-sync/richtext"
	"github.com/toothbrush/epi-contentful-sync/upsert"
)

// wiring holds everything a command needs.  close releases it in reverse order.
type wiring struct {
	contentful *contentful.API
	episerver  *episerver.API
	upserter   *upsert.Upserter
	migrator   *migrate.Migrator

	closers []func()
}

func (w *wiring) close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		w.closers[i]()
	}
}

func newWiring(ctx context.Context, logger *log.Logger) (*wiring, error) {
	w := &wiring{}
	if err := w.build(ctx, logger); err != nil {
		w.close()
		return nil, err
	}
	return w, nil
}

func (w *wiring) build(ctx context.Context, logger *log.Logger) error {
	mode, err := upsert.ParseMode(Mode)
	if err != nil {
		return fmt.Errorf("cmd: %w", err)
	}
	timeout := time.Duration(RequestTimeoutSecs) * time.Second

	cf, err := contentful.NewAPI(ContentfulHost, ContentfulSpace, ContentfulEnv, ContentfulToken)
	if err != nil {
		return fmt.Errorf("cmd: Contentful API creation failed: %w", err)
	}
	w.contentful = cf

	sites, err := selectSites(Sites, Locales)
	if err != nil {
		return err
	}
	epi, err := episerver.NewAPI(sites)
	if err != nil {
		return fmt.Errorf("cmd: Episerver API creation failed: %w", err)
	}
	w.episerver = epi
	debugLog("Reading locales %v\n", epi.ConfiguredLocales())

	var client *http.Client
	if WithVCR {
		r, err := newRecorder("fixtures/epi-contentful-sync")
		if err != nil {
			return err
		}
		w.closers = append(w.closers, func() { r.Stop() })
		client = r.GetDefaultClient()
		cf.Client = client
		epi.Client = client
	}

	converter, err := newConverter(logger, client)
	if err != nil {
		return err
	}

	store, closeStore, err := checkpoint.Open(ctx, CheckpointBackend, CheckpointURL)
	if err != nil {
		return fmt.Errorf("cmd: couldn't open checkpoint store: %w", err)
	}
	w.closers = append(w.closers, closeStore)
	debugLog("Checkpoints kept in %s\n", CheckpointBackend)

	u := upsert.New(cf, DefaultLocale)
	u.Logger = logger
	u.Timeout = timeout
	u.Sites = epi.Sites
	if base, ok := epi.Sites[DefaultLocale]; ok {
		u.Fallback = base
	} else if bases := epi.SiteBases(); len(bases) > 0 {
		u.Fallback = bases[0]
	}
	if client != nil {
		u.Client = client
	}
	w.upserter = u

	m := migrate.New(cf, epi, u, converter, store)
	m.Mode = mode
	m.Timeout = timeout
	m.Logger = logger
	w.migrator = m

	return nil
}

// selectSites narrows the market sites to locales.  No sites means every known market.
func selectSites(sites map[string]string, locales []string) (map[string]string, error) {
	all := sites
	if len(all) == 0 {
		all = episerver.DefaultSites
	}
	if len(locales) == 0 {
		return all, nil
	}

	out := map[string]string{}
	for _, l := range locales {
		site, ok := all[l]
		if !ok {
			return nil, fmt.Errorf("cmd: no site configured for locale %q", l)
		}
		out[l] = site
	}
	// The global site is what the markets fall back to, keep it whenever it's known.
	if site, ok := all["en"]; ok && !slices.Contains(locales, "en") {
		out["en"] = site
	}
	return out, nil
}

func newConverter(logger *log.Logger, client *http.Client) (richtext.Converter, error) {
	if LocalRichText || ConverterURL == "" {
		if !LocalRichText {
			logger.Printf("No --converter-url set, converting rich text in-process")
		}
		return richtext.NewLocal(), nil
	}

	remote, err := richtext.NewRemote(ConverterURL)
	if err != nil {
		return nil, fmt.Errorf("cmd: %w", err)
	}
	if client != nil {
		remote.Client = client
	}
	return remote, nil
}

func newRecorder(name string) (*recorder.Recorder, error) {
	opts := &recorder.Options{
		CassetteName:       name,
		Mode:               recorder.ModeReplayWithNewEpisodes,
		SkipRequestLatency: true,
		RealTransport:      http.DefaultTransport,
	}
	r, err := recorder.NewWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("cmd: couldn't set up go-vcr recording: %w", err)
	}

	// Keep the management token out of the cassette.
	hook := func(i *cassette.Interaction) error {
		delete(i.Request.Headers, "Authorization")
		return nil
	}
	r.AddHook(hook, recorder.AfterCaptureHook)
	r.SetReplayableInteractions(true)
	return r, nil
}

// newNotifier always logs events, and publishes them too when a broker is configured.
func newNotifier(ctx context.Context, logger *log.Logger) (notify.Notifier, func(), error) {
	notifiers := notify.Multi{notify.LogNotifier{Logger: logger}}
	if AMQPURL == "" {
		return notifiers, func() {}, nil
	}

	n := notify.NewAMQPNotifier(notify.AMQPConfig{URL: AMQPURL, Exchange: AMQPExchange}, logger)
	if err := n.Connect(ctx); err != nil {
		return nil, func() {}, fmt.Errorf("cmd: %w", err)
	}
	return append(notifiers, n), func() { _ = n.Close() }, nil
}

// loadURIFixes reads a YAML map of malformed source URIs to their corrections.
func loadURIFixes(file string) (map[string]string, error) {
	expanded, err := homedir.Expand(file)
	if err != nil {
		return nil, fmt.Errorf("cmd: unable to expand homedir: %w", err)
	}
	raw, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("cmd: couldn't read URI fixes: %w", err)
	}
	fixes := map[string]string{}
	if err := yaml.UnmarshalStrict(raw, &fixes); err != nil {
		return nil, fmt.Errorf("cmd: issue parsing URI fixes %s: %w", expanded, err)
	}
	return fixes, nil
}

// tableCorrector answers from fixes and gives up on anything else.
func tableCorrector(fixes map[string]string, logger *log.Logger) upsert.URICorrector {
	return func(_ context.Context, targetID string, uri string) (string, bool) {
		fixed, ok := fixes[strings.TrimSpace(uri)]
		if !ok || fixed == "" {
			logger.Printf("No fix for malformed URL of asset %s: %s", targetID, uri)
			return "", false
		}
		return fixed, true
	}
}

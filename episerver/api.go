// Package episerver reads the public B2B REST feeds of the Episerver market sites.
package episerver

import (
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/exp/slices"
)

// Locales lists every market in the order records are fetched and merged.
var Locales = []string{
	"en",
	"en-US",
	"en-AU",
	"de-DE",
	"en-GB",
	"gsw-CH",
	"sv-SE",
	"nb-NO",
	"da-DK",
	"fr-FR",
}

// DefaultSites maps each locale to the market site serving its feed.
var DefaultSites = map[string]string{
	"en":     "https://global.hurtigruten.com",
	"en-US":  "https://www.hurtigruten.com",
	"en-AU":  "https://www.hurtigruten.com.au",
	"de-DE":  "https://www.hurtigruten.de",
	"en-GB":  "https://www.hurtigruten.co.uk",
	"gsw-CH": "https://www.hurtigruten.ch",
	"sv-SE":  "https://www.hurtigrutenresan.se",
	"nb-NO":  "https://www.hurtigruten.no",
	"da-DK":  "https://www.hurtigruten.dk",
	"fr-FR":  "https://www.hurtigruten.fr",
}

// Some sites block anything that doesn't look like a browser.
const browserUserAgent = "Mozilla/5.0"

func NewAPI(sites map[string]string) (*API, error) {
	if len(sites) == 0 {
		sites = DefaultSites
	}

	a := &API{
		Sites:     map[string]*url.URL{},
		UserAgent: browserUserAgent,
	}
	for locale, site := range sites {
		u, err := url.ParseRequestURI(site)
		if err != nil {
			return nil, fmt.Errorf("episerver: couldn't parse site URL for %s: %w", locale, err)
		}
		a.Sites[locale] = u
	}
	a.Client = &http.Client{}

	return a, nil
}

type API struct {
	// Locale to market site, e.g. de-DE to https://www.hurtigruten.de
	Sites map[string]*url.URL

	// An HTTP client - you can substitute VCR or whatnot.
	Client *http.Client

	UserAgent string
}

// SiteBases returns the base URL of every configured site, for resolving relative asset URIs.
func (api *API) SiteBases() []*url.URL {
	out := []*url.URL{}
	for _, locale := range Locales {
		if u, ok := api.Sites[locale]; ok {
			out = append(out, u)
		}
	}
	for locale, u := range api.Sites {
		if !slices.Contains(Locales, locale) {
			out = append(out, u)
		}
	}
	return out
}

// ConfiguredLocales returns the locales with a configured site, in fetch order.
func (api *API) ConfiguredLocales() []string {
	out := []string{}
	for _, locale := range Locales {
		if _, ok := api.Sites[locale]; ok {
			out = append(out, locale)
		}
	}
	return out
}

package episerver

import (
	"fmt"
	"net/url"
)

// ContentType names one B2B feed.
type ContentType string

const (
	Voyages      ContentType = "voyages"
	Excursions   ContentType = "excursions"
	Ships        ContentType = "ships"
	Programs     ContentType = "programs"
	Ports        ContentType = "ports"
	Destinations ContentType = "destinations"
)

// recordEndpoint returns {site}/rest/b2b/{type}, or {site}/rest/b2b/{type}/{id} when id is set.
func (api *API) recordEndpoint(locale string, contentType ContentType, id string) (*url.URL, error) {
	base, ok := api.Sites[locale]
	if !ok {
		return nil, fmt.Errorf("episerver: no site configured for locale %s", locale)
	}

	p := fmt.Sprintf("/rest/b2b/%s", contentType)
	if id != "" {
		p += "/" + url.PathEscape(id)
	}

	ref, err := url.Parse(p)
	if err != nil {
		return nil, fmt.Errorf("episerver: failed to parse endpoint ref: %w", err)
	}

	return base.ResolveReference(ref), nil
}

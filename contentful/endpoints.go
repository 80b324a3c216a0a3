package contentful

import (
	"fmt"
	"net/url"

	"github.com/google/go-querystring/query"
)

// entryEndpoint returns entries/{id}, optionally with a trailing sub-resource like "published".
func (a *API) entryEndpoint(id string, sub ...string) (*url.URL, error) {
	if id == "" {
		return nil, fmt.Errorf("contentful: please provide an entry ID")
	}
	return a.resolveEndpoint("entries", id, sub...)
}

func (a *API) assetEndpoint(id string, sub ...string) (*url.URL, error) {
	if id == "" {
		return nil, fmt.Errorf("contentful: please provide an asset ID")
	}
	return a.resolveEndpoint("assets", id, sub...)
}

func (a *API) contentTypeEndpoint(id string, sub ...string) (*url.URL, error) {
	if id == "" {
		return nil, fmt.Errorf("contentful: please provide a content type ID")
	}
	return a.resolveEndpoint("content_types", id, sub...)
}

// getEntriesEndpoint returns the entries collection endpoint:
// https://www.contentful.com/developers/docs/references/content-management-api/#/reference/entries/entries-collection/get-all-entries-of-a-space
func (a *API) getEntriesEndpoint(opts EntriesQuery) (*url.URL, error) {
	ep, err := a.resolveEndpoint("entries", "")
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't resolve endpoint: %w", err)
	}

	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't encode query params: %w", err)
	}
	ep.RawQuery = v.Encode()

	return ep, nil
}

// getAssetsEndpoint returns the assets collection endpoint:
// https://www.contentful.com/developers/docs/references/content-management-api/#/reference/assets/assets-collection/get-all-assets-of-a-space
func (a *API) getAssetsEndpoint(opts AssetsQuery) (*url.URL, error) {
	ep, err := a.resolveEndpoint("assets", "")
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't resolve endpoint: %w", err)
	}

	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't encode query params: %w", err)
	}
	ep.RawQuery = v.Encode()

	return ep, nil
}

// Build a collection/{id}/{sub...} reference and return it relative to the environment base URI.
func (a *API) resolveEndpoint(collection string, id string, sub ...string) (*url.URL, error) {
	if a.BaseURI == nil {
		return nil, fmt.Errorf("contentful: API has no base URI, use NewAPI")
	}

	p := collection
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	for _, s := range sub {
		p += "/" + url.PathEscape(s)
	}

	ref, err := url.Parse(p)
	if err != nil {
		return nil, fmt.Errorf("contentful: failed to parse endpoint ref: %w", err)
	}

	return a.BaseURI.ResolveReference(ref), nil
}

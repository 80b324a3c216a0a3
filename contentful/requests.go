package contentful

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/toothbrush/epi-contentful-sync/internal/httpx"
)

const mediaType = "application/vnd.contentful.management.v1+json"

type entryPayload struct {
	Fields Fields `json:"fields"`
}

type assetPayload struct {
	Fields AssetFields `json:"fields"`
}

func (api *API) GetEntry(ctx context.Context, id string) (*Entry, error) {
	ep, err := api.entryEndpoint(id)
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't get entry endpoint: %w", err)
	}

	var entry Entry
	if err := api.request(ctx, http.MethodGet, ep, nil, nil, &entry); err != nil {
		return nil, fmt.Errorf("contentful: couldn't get entry %s: %w", id, err)
	}
	return &entry, nil
}

// CreateEntry creates an entry with a caller-chosen ID.
func (api *API) CreateEntry(ctx context.Context, id string, contentType string, fields Fields) (*Entry, error) {
	ep, err := api.entryEndpoint(id)
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't get entry endpoint: %w", err)
	}

	headers := map[string]string{"X-Contentful-Content-Type": contentType}
	var entry Entry
	if err := api.request(ctx, http.MethodPut, ep, headers, entryPayload{Fields: fields}, &entry); err != nil {
		return nil, fmt.Errorf("contentful: couldn't create entry %s: %w", id, err)
	}
	return &entry, nil
}

// UpdateEntry saves entry.Fields, based on entry.Sys.Version.
func (api *API) UpdateEntry(ctx context.Context, entry *Entry) (*Entry, error) {
	ep, err := api.entryEndpoint(entry.Sys.ID)
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't get entry endpoint: %w", err)
	}

	var updated Entry
	if err := api.request(ctx, http.MethodPut, ep, versionHeader(entry.Sys.Version), entryPayload{Fields: entry.Fields}, &updated); err != nil {
		return nil, fmt.Errorf("contentful: couldn't update entry %s: %w", entry.Sys.ID, err)
	}
	return &updated, nil
}

func (api *API) PublishEntry(ctx context.Context, id string, version int) (*Entry, error) {
	ep, err := api.entryEndpoint(id, "published")
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't get entry endpoint: %w", err)
	}

	var entry Entry
	if err := api.request(ctx, http.MethodPut, ep, versionHeader(version), nil, &entry); err != nil {
		return nil, fmt.Errorf("contentful: couldn't publish entry %s: %w", id, err)
	}
	return &entry, nil
}

func (api *API) UnpublishEntry(ctx context.Context, id string) error {
	ep, err := api.entryEndpoint(id, "published")
	if err != nil {
		return fmt.Errorf("contentful: couldn't get entry endpoint: %w", err)
	}

	if err := api.request(ctx, http.MethodDelete, ep, nil, nil, nil); err != nil {
		return fmt.Errorf("contentful: couldn't unpublish entry %s: %w", id, err)
	}
	return nil
}

func (api *API) DeleteEntry(ctx context.Context, id string) error {
	ep, err := api.entryEndpoint(id)
	if err != nil {
		return fmt.Errorf("contentful: couldn't get entry endpoint: %w", err)
	}

	if err := api.request(ctx, http.MethodDelete, ep, nil, nil, nil); err != nil {
		return fmt.Errorf("contentful: couldn't delete entry %s: %w", id, err)
	}
	return nil
}

func (api *API) GetEntries(ctx context.Context, opts EntriesQuery) (*Collection[Entry], error) {
	ep, err := api.getEntriesEndpoint(opts)
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't get entries endpoint: %w", err)
	}

	var entries Collection[Entry]
	if err := api.request(ctx, http.MethodGet, ep, nil, nil, &entries); err != nil {
		return nil, fmt.Errorf("contentful: couldn't list entries: %w", err)
	}
	return &entries, nil
}

func (api *API) GetAsset(ctx context.Context, id string) (*Asset, error) {
	ep, err := api.assetEndpoint(id)
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't get asset endpoint: %w", err)
	}

	var asset Asset
	if err := api.request(ctx, http.MethodGet, ep, nil, nil, &asset); err != nil {
		return nil, fmt.Errorf("contentful: couldn't get asset %s: %w", id, err)
	}
	return &asset, nil
}

// CreateAsset creates an asset whose files are still to be processed from their upload URLs.
func (api *API) CreateAsset(ctx context.Context, id string, fields AssetFields) (*Asset, error) {
	ep, err := api.assetEndpoint(id)
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't get asset endpoint: %w", err)
	}

	var asset Asset
	if err := api.request(ctx, http.MethodPut, ep, nil, assetPayload{Fields: fields}, &asset); err != nil {
		return nil, fmt.Errorf("contentful: couldn't create asset %s: %w", id, err)
	}
	return &asset, nil
}

// ProcessAsset asks the CMA to fetch the upload URL of one locale's file.  Processing is
// asynchronous; the asset can be published once file.url shows up.
func (api *API) ProcessAsset(ctx context.Context, id string, version int, locale string) error {
	ep, err := api.assetEndpoint(id, "files", locale, "process")
	if err != nil {
		return fmt.Errorf("contentful: couldn't get asset endpoint: %w", err)
	}

	if err := api.request(ctx, http.MethodPut, ep, versionHeader(version), nil, nil); err != nil {
		return fmt.Errorf("contentful: couldn't process asset %s: %w", id, err)
	}
	return nil
}

func (api *API) PublishAsset(ctx context.Context, id string, version int) (*Asset, error) {
	ep, err := api.assetEndpoint(id, "published")
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't get asset endpoint: %w", err)
	}

	var asset Asset
	if err := api.request(ctx, http.MethodPut, ep, versionHeader(version), nil, &asset); err != nil {
		return nil, fmt.Errorf("contentful: couldn't publish asset %s: %w", id, err)
	}
	return &asset, nil
}

func (api *API) UnpublishAsset(ctx context.Context, id string) error {
	ep, err := api.assetEndpoint(id, "published")
	if err != nil {
		return fmt.Errorf("contentful: couldn't get asset endpoint: %w", err)
	}

	if err := api.request(ctx, http.MethodDelete, ep, nil, nil, nil); err != nil {
		return fmt.Errorf("contentful: couldn't unpublish asset %s: %w", id, err)
	}
	return nil
}

func (api *API) DeleteAsset(ctx context.Context, id string) error {
	ep, err := api.assetEndpoint(id)
	if err != nil {
		return fmt.Errorf("contentful: couldn't get asset endpoint: %w", err)
	}

	if err := api.request(ctx, http.MethodDelete, ep, nil, nil, nil); err != nil {
		return fmt.Errorf("contentful: couldn't delete asset %s: %w", id, err)
	}
	return nil
}

func (api *API) GetAssets(ctx context.Context, opts AssetsQuery) (*Collection[Asset], error) {
	ep, err := api.getAssetsEndpoint(opts)
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't get assets endpoint: %w", err)
	}

	var assets Collection[Asset]
	if err := api.request(ctx, http.MethodGet, ep, nil, nil, &assets); err != nil {
		return nil, fmt.Errorf("contentful: couldn't list assets: %w", err)
	}
	return &assets, nil
}

func (api *API) GetContentType(ctx context.Context, id string) (*ContentType, error) {
	ep, err := api.contentTypeEndpoint(id)
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't get content type endpoint: %w", err)
	}

	var ct ContentType
	if err := api.request(ctx, http.MethodGet, ep, nil, nil, &ct); err != nil {
		return nil, fmt.Errorf("contentful: couldn't get content type %s: %w", id, err)
	}
	return &ct, nil
}

func (api *API) UnpublishContentType(ctx context.Context, id string) error {
	ep, err := api.contentTypeEndpoint(id, "published")
	if err != nil {
		return fmt.Errorf("contentful: couldn't get content type endpoint: %w", err)
	}

	if err := api.request(ctx, http.MethodDelete, ep, nil, nil, nil); err != nil {
		return fmt.Errorf("contentful: couldn't unpublish content type %s: %w", id, err)
	}
	return nil
}

func (api *API) DeleteContentType(ctx context.Context, id string) error {
	ep, err := api.contentTypeEndpoint(id)
	if err != nil {
		return fmt.Errorf("contentful: couldn't get content type endpoint: %w", err)
	}

	if err := api.request(ctx, http.MethodDelete, ep, nil, nil, nil); err != nil {
		return fmt.Errorf("contentful: couldn't delete content type %s: %w", id, err)
	}
	return nil
}

func versionHeader(version int) map[string]string {
	return map[string]string{"X-Contentful-Version": strconv.Itoa(version)}
}

// request performs one CMA call: payload (if any) is sent as JSON, and the response is decoded
// into out (if any).  404 becomes ErrNotFound, other failures an *APIError.
func (api *API) request(ctx context.Context, method string, ep *url.URL, headers map[string]string, payload any, out any) error {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("contentful: couldn't encode request body: %w", err)
		}
		body = b
	}

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, ep.String(), bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("contentful: couldn't instantiate http request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+api.token)
		req.Header.Set("Accept", "application/json, */*")
		if body != nil {
			req.Header.Set("Content-Type", mediaType)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}

	_, respBody, err := httpx.Do(ctx, api.Client, build, api.Retry)
	if err != nil {
		var statusErr *httpx.StatusError
		if errors.As(err, &statusErr) {
			return toAPIError(statusErr)
		}
		return fmt.Errorf("contentful: couldn't perform http request: %w", err)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("contentful: couldn't parse json response: %w", err)
	}
	return nil
}

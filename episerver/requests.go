package episerver

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/andybalholm/brotli"
)

func (api *API) ListVoyages(ctx context.Context, locale string) ([]Voyage, error) {
	return listRecords[Voyage](ctx, api, locale, Voyages)
}

// GetVoyage loads the full voyage, including its itinerary.  The list endpoint only has a summary.
func (api *API) GetVoyage(ctx context.Context, locale string, id int) (*Voyage, error) {
	return getRecord[Voyage](ctx, api, locale, Voyages, strconv.Itoa(id))
}

func (api *API) ListExcursions(ctx context.Context, locale string) ([]Excursion, error) {
	return listRecords[Excursion](ctx, api, locale, Excursions)
}

func (api *API) GetShip(ctx context.Context, locale string, code string) (*Ship, error) {
	return getRecord[Ship](ctx, api, locale, Ships, code)
}

func (api *API) ListPrograms(ctx context.Context, locale string) ([]Program, error) {
	return listRecords[Program](ctx, api, locale, Programs)
}

func (api *API) ListPorts(ctx context.Context, locale string) ([]Port, error) {
	return listRecords[Port](ctx, api, locale, Ports)
}

func (api *API) ListDestinations(ctx context.Context, locale string) ([]Destination, error) {
	return listRecords[Destination](ctx, api, locale, Destinations)
}

// ListSummaries returns just IDs and fallback flags of any feed.
func (api *API) ListSummaries(ctx context.Context, locale string, contentType ContentType) ([]Summary, error) {
	return listRecords[Summary](ctx, api, locale, contentType)
}

type rawSetter[T any] interface {
	*T
	setRaw(json.RawMessage)
}

func listRecords[T any, PT rawSetter[T]](ctx context.Context, api *API, locale string, contentType ContentType) ([]T, error) {
	ep, err := api.recordEndpoint(locale, contentType, "")
	if err != nil {
		return nil, fmt.Errorf("episerver: couldn't get %s endpoint: %w", contentType, err)
	}

	body, err := api.request(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("episerver: couldn't list %s for %s: %w", contentType, locale, err)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("episerver: couldn't parse %s list: %w", contentType, err)
	}

	records := make([]T, 0, len(raws))
	for i, raw := range raws {
		var record T
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("episerver: couldn't parse %s item %d: %w", contentType, i, err)
		}
		PT(&record).setRaw(raw)
		records = append(records, record)
	}

	return records, nil
}

func getRecord[T any, PT rawSetter[T]](ctx context.Context, api *API, locale string, contentType ContentType, id string) (*T, error) {
	if id == "" {
		return nil, fmt.Errorf("episerver: please provide an ID to get from %s", contentType)
	}
	ep, err := api.recordEndpoint(locale, contentType, id)
	if err != nil {
		return nil, fmt.Errorf("episerver: couldn't get %s endpoint: %w", contentType, err)
	}

	body, err := api.request(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("episerver: couldn't get %s %s for %s: %w", contentType, id, locale, err)
	}

	var record T
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("episerver: couldn't parse %s %s: %w", contentType, id, err)
	}
	PT(&record).setRaw(body)

	return &record, nil
}

// request performs a GET with browser-ish headers.  Because Accept-Encoding is set by hand, the
// transport won't decompress for us.
func (api *API) request(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("episerver: couldn't instantiate http request: %w", err)
	}

	req.Header.Set("User-Agent", api.UserAgent)
	req.Header.Set("Accept", "application/json, */*")
	req.Header.Set("Accept-Encoding", "br, gzip")

	response, err := api.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("episerver: couldn't perform http request: %w", err)
	}
	defer response.Body.Close()

	var reader io.Reader = response.Body
	switch response.Header.Get("Content-Encoding") {
	case "br":
		reader = brotli.NewReader(response.Body)
	case "gzip":
		gz, err := gzip.NewReader(response.Body)
		if err != nil {
			return nil, fmt.Errorf("episerver: couldn't open gzip body: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("episerver: couldn't read response body: %w", err)
	}

	switch response.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("episerver: %w: %s", ErrNotFound, u.String())
	case http.StatusForbidden:
		return nil, fmt.Errorf("episerver: blocked by site (check User-Agent): %s", response.Status)
	case http.StatusServiceUnavailable, http.StatusInternalServerError:
		return nil, fmt.Errorf("episerver: site error: %s", response.Status)
	}

	return nil, fmt.Errorf("episerver: unknown HTTP response status: %s: %s", response.Status, u.String())
}

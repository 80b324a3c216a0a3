package contentful

import (
	"context"
	"fmt"
	"time"
)

// ListAllEntries pages through every entry matching query.
func (api *API) ListAllEntries(ctx context.Context, query EntriesQuery) ([]Entry, error) {
	if query.Limit == 0 {
		query.Limit = MaxPageSize
	}

	entries := []Entry{}
	for {
		page, err := func() (*Collection[Entry], error) {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return api.GetEntries(ctx, query)
		}()
		if err != nil {
			return nil, fmt.Errorf("contentful: couldn't list entries from %d: %w", query.Skip, err)
		}

		entries = append(entries, page.Items...)

		query.Skip += len(page.Items)
		if len(page.Items) == 0 || query.Skip >= page.Total {
			break
		}
	}

	return entries, nil
}

// ListAllAssets pages through every asset matching query.
func (api *API) ListAllAssets(ctx context.Context, query AssetsQuery) ([]Asset, error) {
	if query.Limit == 0 {
		query.Limit = MaxPageSize
	}

	assets := []Asset{}
	for {
		page, err := func() (*Collection[Asset], error) {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return api.GetAssets(ctx, query)
		}()
		if err != nil {
			return nil, fmt.Errorf("contentful: couldn't list assets from %d: %w", query.Skip, err)
		}

		assets = append(assets, page.Items...)

		query.Skip += len(page.Items)
		if len(page.Items) == 0 || query.Skip >= page.Total {
			break
		}
	}

	return assets, nil
}

// FindAssetsBySize lists assets whose file has exactly size bytes.
func (api *API) FindAssetsBySize(ctx context.Context, size int64) ([]Asset, error) {
	if size <= 0 {
		return nil, nil
	}
	return api.ListAllAssets(ctx, AssetsQuery{FileSize: size})
}

package upsert

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/toothbrush/epi-contentful-sync/contentful"
	"github.com/toothbrush/epi-contentful-sync/sanitize"
)

type AssetUpsertRequest struct {
	TargetID  string
	SourceURI string
	// Defaults to the cleaned-up file name.
	Title string
	// Site whose base resolves root-relative URIs.
	Locale string
}

// AssetRef identifies the asset a request ended up at, which may not be TargetID.
type AssetRef struct {
	ID string
	// Set when an existing asset was reused instead of creating one.
	Reused bool
}

func (r AssetRef) Link() contentful.Link {
	return contentful.AssetLink(r.ID)
}

const timestampSuffix = "20060102.150405.000000"

// UpsertAsset makes sure the file at SourceURI exists as an asset, reusing an existing asset with
// identical size and bytes, and returns a reference to it.  New assets are processed but not
// published.
func (u *Upserter) UpsertAsset(ctx context.Context, req AssetUpsertRequest) (AssetRef, error) {
	id := sanitize.SanitizeID(req.TargetID)
	if id == "" {
		return AssetRef{}, fmt.Errorf("upsert: asset ID is empty")
	}

	uri, meta, err := u.resolveAndProbe(ctx, id, req)
	if err != nil {
		u.logf("Exception occurred while fetching image for asset with ID: %s, error: %v", id, err)
		return AssetRef{}, err
	}
	source := uri.String()

	existing, err := u.CMS.GetAsset(ctx, id)
	switch {
	case errors.Is(err, contentful.ErrNotFound):
		existing = nil
	case err != nil:
		u.logf("Exception occurred while finding asset with ID: %s, error: %v", id, err)
		return AssetRef{}, fmt.Errorf("upsert: couldn't look up asset %s: %w", id, err)
	}

	if existing != nil {
		if isSVG(uri, meta) {
			// Declared sizes of SVGs aren't reliable, always upload anew.
			if err := u.deleteAsset(ctx, existing); err != nil {
				return AssetRef{}, err
			}
		} else {
			size, err := u.existingSize(ctx, existing)
			if err != nil {
				u.logf("Could not determine size of asset %s: %v", id, err)
			}
			if err == nil && size == meta.Size {
				u.logf("Asset id and size are the same: %s", id)
				return AssetRef{ID: id, Reused: true}, nil
			}
			u.logf("Asset size is different: %s (%d, source %d)", id, size, meta.Size)
			id = id + "-" + u.Now().Format(timestampSuffix)
		}
	}

	if ref, ok := u.findDuplicate(ctx, source, meta.Size); ok {
		u.logf("Same asset already exists: %s, reusing it for %s", ref.ID, id)
		return ref, nil
	}

	title := req.Title
	if title == "" {
		base := path.Base(uri.Path)
		if cleaned := sanitize.CleanAssetName(&base); cleaned != nil {
			title = *cleaned
		}
	}

	fields := contentful.AssetFields{
		Title: map[string]string{u.DefaultLocale: title},
		File: map[string]*contentful.AssetFile{
			u.DefaultLocale: {
				FileName:    path.Base(uri.Path),
				ContentType: meta.ContentType,
				Upload:      source,
			},
		},
	}

	created, err := u.CMS.CreateAsset(ctx, id, fields)
	if err != nil {
		u.logf("Exception occurred while creating asset with ID: %s, error: %v", id, err)
		return AssetRef{}, fmt.Errorf("upsert: couldn't create asset %s: %w", id, err)
	}

	if err := u.CMS.ProcessAsset(ctx, id, created.Sys.Version, u.DefaultLocale); err != nil {
		u.logf("Exception occurred while processing asset with ID: %s, error: %v", id, err)
		return AssetRef{}, fmt.Errorf("upsert: couldn't process asset %s: %w", id, err)
	}

	u.logf("Asset added: %s", id)
	return AssetRef{ID: id}, nil
}

// resolveAndProbe resolves the source URI and probes it.  A malformed URI gets one chance with the
// corrector.
func (u *Upserter) resolveAndProbe(ctx context.Context, id string, req AssetUpsertRequest) (*url.URL, fileMeta, error) {
	raw := req.SourceURI
	corrected := false

	for {
		uri, err := u.ResolveURI(req.Locale, raw)
		var meta fileMeta
		if err == nil {
			meta, err = u.probe(ctx, uri)
		}
		if err == nil {
			return uri, meta, nil
		}

		var malformed *MalformedURIError
		if !errors.As(err, &malformed) || u.Corrector == nil || corrected {
			return nil, fileMeta{}, err
		}
		fixed, ok := u.Corrector(ctx, id, malformed.URI)
		if !ok {
			return nil, fileMeta{}, err
		}
		raw, corrected = fixed, true
	}
}

// existingSize is the declared size of the asset's file, or its Content-Length when the CMA
// didn't report one.
func (u *Upserter) existingSize(ctx context.Context, asset *contentful.Asset) (int64, error) {
	file := asset.FileFor(u.DefaultLocale)
	if file == nil {
		return 0, fmt.Errorf("upsert: asset %s has no file", asset.Sys.ID)
	}
	if file.Details != nil && file.Details.Size > 0 {
		return file.Details.Size, nil
	}
	if file.URL == "" {
		return 0, fmt.Errorf("upsert: asset %s has no file URL", asset.Sys.ID)
	}
	fileURL, err := url.Parse(cmsFileURL(file.URL))
	if err != nil {
		return 0, fmt.Errorf("upsert: couldn't parse file URL of asset %s: %w", asset.Sys.ID, err)
	}
	meta, err := u.probe(ctx, fileURL)
	if err != nil {
		return 0, err
	}
	return meta.Size, nil
}

// findDuplicate looks for an asset of the same size whose bytes equal the source file's.
func (u *Upserter) findDuplicate(ctx context.Context, source string, size int64) (AssetRef, bool) {
	candidates, err := u.CMS.FindAssetsBySize(ctx, size)
	if err != nil {
		u.logf("Couldn't search assets of size %d: %v", size, err)
		return AssetRef{}, false
	}

	for _, candidate := range candidates {
		file := candidate.FileFor(u.DefaultLocale)
		if file == nil || file.URL == "" {
			continue
		}
		same, err := u.sameContent(ctx, source, cmsFileURL(file.URL))
		if err != nil {
			u.logf("Couldn't compare with asset %s: %v", candidate.Sys.ID, err)
			continue
		}
		if same {
			return AssetRef{ID: candidate.Sys.ID, Reused: true}, true
		}
	}
	return AssetRef{}, false
}

func (u *Upserter) deleteAsset(ctx context.Context, asset *contentful.Asset) error {
	id := asset.Sys.ID
	if asset.Sys.HasPublishedVersion() {
		if err := u.CMS.UnpublishAsset(ctx, id); err != nil && !errors.Is(err, contentful.ErrNotFound) {
			u.logf("Exception occurred while unpublishing asset with ID: %s, error: %v", id, err)
			return fmt.Errorf("upsert: couldn't unpublish asset %s: %w", id, err)
		}
	}
	if err := u.CMS.DeleteAsset(ctx, id); err != nil && !errors.Is(err, contentful.ErrNotFound) {
		u.logf("Exception occurred while deleting asset with ID: %s, error: %v", id, err)
		return fmt.Errorf("upsert: couldn't delete asset %s: %w", id, err)
	}
	return nil
}

func isSVG(uri *url.URL, meta fileMeta) bool {
	return strings.EqualFold(path.Ext(uri.Path), ".svg") || meta.ContentType == "image/svg+xml"
}

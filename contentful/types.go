package contentful

import "time"

// Link points at another entry, asset or content type.
type Link struct {
	Sys LinkSys `json:"sys"`
}

type LinkSys struct {
	Type     string `json:"type"`
	LinkType string `json:"linkType"`
	ID       string `json:"id"`
}

func EntryLink(id string) Link {
	return Link{Sys: LinkSys{Type: "Link", LinkType: "Entry", ID: id}}
}

func AssetLink(id string) Link {
	return Link{Sys: LinkSys{Type: "Link", LinkType: "Asset", ID: id}}
}

// Sys is the metadata block every CMA object carries.
type Sys struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	Version          int        `json:"version,omitempty"`
	PublishedVersion int        `json:"publishedVersion,omitempty"`
	ArchivedVersion  int        `json:"archivedVersion,omitempty"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
	ContentType      *Link      `json:"contentType,omitempty"`
}

// IsPublished reports whether the current version is live, i.e. nothing was changed since the
// last publish.
func (s Sys) IsPublished() bool {
	return s.PublishedVersion > 0 && s.Version == s.PublishedVersion+1
}

// HasPublishedVersion reports whether some version is live, possibly with pending changes.
func (s Sys) HasPublishedVersion() bool {
	return s.PublishedVersion > 0
}

// Fields is field name to locale to value.
type Fields map[string]map[string]any

type Entry struct {
	Sys    Sys    `json:"sys"`
	Fields Fields `json:"fields"`
}

// ContentTypeID returns the entry's content type, or "" when the CMA didn't include it.
func (e Entry) ContentTypeID() string {
	if e.Sys.ContentType == nil {
		return ""
	}
	return e.Sys.ContentType.Sys.ID
}

type Asset struct {
	Sys    Sys         `json:"sys"`
	Fields AssetFields `json:"fields"`
}

type AssetFields struct {
	Title       map[string]string     `json:"title,omitempty"`
	Description map[string]string     `json:"description,omitempty"`
	File        map[string]*AssetFile `json:"file,omitempty"`
}

type AssetFile struct {
	FileName    string       `json:"fileName,omitempty"`
	ContentType string       `json:"contentType,omitempty"`
	Upload      string       `json:"upload,omitempty"`
	URL         string       `json:"url,omitempty"`
	Details     *FileDetails `json:"details,omitempty"`
}

type FileDetails struct {
	Size int64 `json:"size"`
}

// FileFor returns the file of the given locale, falling back to any locale's file.
func (a Asset) FileFor(locale string) *AssetFile {
	if f, ok := a.Fields.File[locale]; ok && f != nil {
		return f
	}
	for _, f := range a.Fields.File {
		if f != nil {
			return f
		}
	}
	return nil
}

type ContentType struct {
	Sys  Sys    `json:"sys"`
	Name string `json:"name"`
}

// Collection is the CMA's paginated list envelope.
type Collection[T any] struct {
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
	Items []T `json:"items"`
}

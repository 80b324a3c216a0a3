package contentful

// EntriesQuery defines the query parameters for:
// https://www.contentful.com/developers/docs/references/content-management-api/#/reference/entries/entries-collection
type EntriesQuery struct {
	ContentType string   `url:"content_type,omitempty"` // required when filtering on fields
	IDs         []string `url:"sys.id[in],omitempty,comma"`
	IDMatch     string   `url:"sys.id[match],omitempty"` // full-text match on the ID
	Select      []string `url:"select,omitempty,comma"`  // e.g. sys.id to keep responses small

	Skip  int `url:"skip,omitempty"`
	Limit int `url:"limit,omitempty"` // page limit; default 100, max 1000
}

// AssetsQuery defines the query parameters for:
// https://www.contentful.com/developers/docs/references/content-management-api/#/reference/assets/assets-collection
type AssetsQuery struct {
	FileSize int64  `url:"fields.file.details.size,omitempty"`
	IDMatch  string `url:"sys.id[match],omitempty"`

	Skip  int `url:"skip,omitempty"`
	Limit int `url:"limit,omitempty"`
}

// MaxPageSize is the largest page the CMA serves.
const MaxPageSize = 1000

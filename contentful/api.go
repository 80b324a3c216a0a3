package contentful

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/toothbrush/epi-contentful-sync/internal/httpx"
)

// DefaultHost is the Content Management API.
const DefaultHost = "https://api.contentful.com"

func NewAPI(host string, space string, environment string, token string) (*API, error) {
	if space == "" {
		return &API{}, fmt.Errorf("contentful: configure your space ID with --space")
	}
	if environment == "" {
		return &API{}, fmt.Errorf("contentful: configure your environment with --environment")
	}
	if token == "" {
		return &API{}, fmt.Errorf("contentful: management token is empty, please check --token or SYNC_CONTENTFUL_API_KEY")
	}
	if host == "" {
		host = DefaultHost
	}

	// The trailing slash matters: every endpoint is resolved relative to the environment.
	u, err := url.ParseRequestURI(
		fmt.Sprintf("%s/spaces/%s/environments/%s/",
			host,
			url.PathEscape(space),
			url.PathEscape(environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("contentful: couldn't parse CMA URL: %w", err)
	}

	a := &API{
		BaseURI:     u,
		Space:       space,
		Environment: environment,
		Retry:       httpx.DefaultPolicy(),
		token:       token,
	}
	a.Client = &http.Client{}

	return a, nil
}

type API struct {
	// e.g. https://api.contentful.com/spaces/SPACE/environments/master/
	BaseURI *url.URL

	Space, Environment string

	// An HTTP client - you can substitute VCR or whatnot.
	Client *http.Client

	// Applied to every CMA call.  Rate limiting (429) is the common case.
	Retry httpx.Policy

	token string
}

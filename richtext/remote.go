package richtext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/toothbrush/epi-contentful-sync/internal/httpx"
)

// Remote talks to the html-to-rich-text service.
type Remote struct {
	BaseURI *url.URL
	Client  *http.Client
}

func NewRemote(base string) (*Remote, error) {
	if base == "" {
		return nil, fmt.Errorf("richtext: please configure the converter URL")
	}
	u, err := url.ParseRequestURI(base)
	if err != nil {
		return nil, fmt.Errorf("richtext: couldn't parse converter URL: %w", err)
	}
	return &Remote{BaseURI: u, Client: &http.Client{}}, nil
}

type convertRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	HTML string `json:"html"`
}

func (r *Remote) Convert(ctx context.Context, html string) (Document, error) {
	ep := r.BaseURI.JoinPath("convert")

	body, err := json.Marshal(convertRequest{From: "html", To: "richtext", HTML: html})
	if err != nil {
		return nil, fmt.Errorf("richtext: couldn't encode request: %w", err)
	}

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.String(), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		return req, nil
	}

	_, respBody, err := httpx.Do(ctx, r.Client, build, httpx.NoRetry())
	if err != nil {
		return nil, fmt.Errorf("richtext: couldn't call converter: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(respBody, &doc); err != nil {
		return nil, fmt.Errorf("richtext: couldn't parse converter response: %w", err)
	}
	return doc, nil
}

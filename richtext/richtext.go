// Package richtext turns source HTML into CMS rich-text documents.
//
// The canonical path is the remote conversion service (POST /convert).  When no service is
// configured, Local produces a simpler document via Markdown, good enough for paragraphs, headings
// and bullet lists.
package richtext

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a rich-text document as the CMS stores it: {"nodeType":"document",...}.
type Document map[string]any

// Converter converts one HTML fragment.
type Converter interface {
	Convert(ctx context.Context, html string) (Document, error)
}

// Convert prepares html and runs it through c.  A nil or blank input yields a nil document, which
// callers treat as "leave the field alone".
func Convert(ctx context.Context, c Converter, html *string) (Document, error) {
	if html == nil || strings.TrimSpace(*html) == "" {
		return nil, nil
	}

	cleaned, err := Prepare(*html)
	if err != nil {
		return nil, fmt.Errorf("richtext: couldn't prepare html: %w", err)
	}

	doc, err := c.Convert(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("richtext: conversion failed: %w", err)
	}
	return doc, nil
}

// Prepare strips line breaks and unwraps links, keeping their text.  Source links point at the
// old market sites and mustn't survive the migration.
func Prepare(html string) (string, error) {
	html = strings.NewReplacer("\n", "", "\r", "").Replace(html)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("richtext: couldn't parse html: %w", err)
	}

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		inner, err := s.Html()
		if err != nil {
			return
		}
		s.ReplaceWithHtml(inner)
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("richtext: couldn't render html: %w", err)
	}
	return out, nil
}

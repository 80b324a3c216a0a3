package richtext

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	mdplugin "github.com/JohannesKaufmann/html-to-markdown/plugin"
)

// Local converts without the remote service: HTML to Markdown, then Markdown blocks to rich-text
// nodes.  Only paragraphs, headings, bullet lists and bold text are recognised; images are dropped.
type Local struct {
	converter *md.Converter
}

func NewLocal() *Local {
	opt := &md.Options{
		StrongDelimiter:  "**",
		BulletListMarker: "-",
		HeadingStyle:     "atx",
	}
	converter := md.NewConverter("", true, opt)
	converter.Use(mdplugin.GitHubFlavored())
	converter.Remove("img", "script", "style")
	return &Local{converter: converter}
}

// Markdown renders html as Markdown.
func (l *Local) Markdown(html string) (string, error) {
	markdown, err := l.converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("richtext: failed to convert to Markdown: %w", err)
	}
	return markdown, nil
}

func (l *Local) Convert(ctx context.Context, html string) (Document, error) {
	markdown, err := l.Markdown(html)
	if err != nil {
		return nil, err
	}
	return FromMarkdown(markdown), nil
}

var (
	blankLines = regexp.MustCompile(`\n\s*\n`)
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	bulletRe   = regexp.MustCompile(`^[-*+]\s+(.*)$`)
)

// FromMarkdown builds a rich-text document from simple Markdown.
func FromMarkdown(markdown string) Document {
	content := []any{}

	for _, block := range blankLines.Split(strings.TrimSpace(markdown), -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")

		if m := headingRe.FindStringSubmatch(lines[0]); m != nil && len(lines) == 1 {
			content = append(content, node(fmt.Sprintf("heading-%d", len(m[1])), inline(m[2])))
			continue
		}

		if items, ok := bulletItems(lines); ok {
			listItems := []any{}
			for _, item := range items {
				listItems = append(listItems, node("list-item", []any{node("paragraph", inline(item))}))
			}
			content = append(content, node("unordered-list", listItems))
			continue
		}

		content = append(content, node("paragraph", inline(strings.Join(lines, " "))))
	}

	return Document{
		"nodeType": "document",
		"data":     map[string]any{},
		"content":  content,
	}
}

func bulletItems(lines []string) ([]string, bool) {
	items := []string{}
	for _, line := range lines {
		m := bulletRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			return nil, false
		}
		items = append(items, m[1])
	}
	return items, true
}

func node(nodeType string, content []any) map[string]any {
	return map[string]any{
		"nodeType": nodeType,
		"data":     map[string]any{},
		"content":  content,
	}
}

// inline splits text on ** into alternately plain and bold text nodes.
func inline(text string) []any {
	out := []any{}
	for i, part := range strings.Split(text, "**") {
		if part == "" {
			continue
		}
		marks := []any{}
		if i%2 == 1 {
			marks = append(marks, map[string]any{"type": "bold"})
		}
		out = append(out, map[string]any{
			"nodeType": "text",
			"value":    part,
			"marks":    marks,
			"data":     map[string]any{},
		})
	}
	if len(out) == 0 {
		out = append(out, map[string]any{"nodeType": "text", "value": "", "marks": []any{}, "data": map[string]any{}})
	}
	return out
}

// Package sanitize turns human-readable source strings into identifiers, slugs and asset titles
// that the destination CMS accepts.
package sanitize

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	alnumRun     = regexp.MustCompile(`[a-zA-Z0-9]+`)
	nonSlugChars = regexp.MustCompile(`[^a-z0-9\-_]+`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Camelize splits text on anything that isn't an ASCII letter or digit, capitalises each token,
// and lowercases the very first character: "Day 1: Bergen" becomes "day1Bergen".  Input without
// any alphanumeric token returns "".
func Camelize(text string) string {
	var b strings.Builder
	for _, token := range alnumRun.FindAllString(text, -1) {
		b.WriteString(strings.ToUpper(token[:1]))
		b.WriteString(strings.ToLower(token[1:]))
	}
	pascalized := b.String()
	if pascalized == "" {
		return ""
	}
	return strings.ToLower(pascalized[:1]) + pascalized[1:]
}

var imageExtensions = []string{
	".jpeg", ".jpg", ".png", ".svg",
	".JPEG", ".JPG", ".PNG", ".SVG",
}

// CleanAssetName derives an asset title from a file name.  A nil name stays nil.
func CleanAssetName(name *string) *string {
	if name == nil {
		return nil
	}
	cleaned := *name
	for _, ext := range imageExtensions {
		cleaned = strings.ReplaceAll(cleaned, ext, " ")
	}
	cleaned = strings.NewReplacer("_", " ", "-", " ").Replace(cleaned)
	cleaned = strings.TrimSpace(cleaned)
	return &cleaned
}

// ExtractFirstLetters returns the first character of every whitespace-delimited word.
func ExtractFirstLetters(text string) string {
	var b strings.Builder
	for _, word := range strings.Fields(text) {
		r := []rune(word)
		b.WriteRune(r[0])
	}
	return b.String()
}

// ExtractSlug returns the final non-empty path segment of a URL, or "" if there is none.
func ExtractSlug(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	segments := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// FoldASCII strips diacritics, e.g. "Tromsø" keeps its ø but "Ålesund" becomes "Alesund".
func FoldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// SlugFromTitle builds a URL slug out of a heading when the source record has no usable URL.
func SlugFromTitle(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = whitespace.ReplaceAllString(slug, "-")
	slug = FoldASCII(slug)
	return nonSlugChars.ReplaceAllString(slug, "")
}

// SanitizeID removes path separators, which the CMS would otherwise treat as URL segments.
func SanitizeID(id string) string {
	return strings.ReplaceAll(id, "/", "")
}

package localize

// fallbacks maps a locale to the one the CMS falls back to when a field has no value.
var fallbacks = map[string]string{
	"en-US":  "en",
	"en-AU":  "en",
	"en-GB":  "en",
	"de-DE":  "en",
	"fr-FR":  "en",
	"nb-NO":  "en",
	"sv-SE":  "en",
	"da-DK":  "en",
	"gsw-CH": "de-DE",
}

// FallbackChain returns locale followed by each locale it falls back to, e.g.
// gsw-CH, de-DE, en.
func FallbackChain(locale string) []string {
	chain := []string{locale}
	seen := map[string]bool{locale: true}
	for {
		next, ok := fallbacks[locale]
		if !ok || seen[next] {
			return chain
		}
		chain = append(chain, next)
		seen[next] = true
		locale = next
	}
}

// Resolve finds the record whose content locale shows.  A record flagged as fallback content
// stands for the first record along FallbackChain(locale) that isn't.  ok is false when locale
// has no record or nothing along its chain resolves.
func Resolve[T any](locale string, records map[string]T, isFallback func(T) bool) (from string, record T, ok bool) {
	var zero T
	r, found := records[locale]
	if !found {
		return "", zero, false
	}
	if !isFallback(r) {
		return locale, r, true
	}
	for _, l := range FallbackChain(locale)[1:] {
		if r, found := records[l]; found && !isFallback(r) {
			return l, r, true
		}
	}
	return "", zero, false
}

// PickDefault chooses which per-locale record is authoritative for locale-independent fields
// (IDs, links, default-locale titles).  Precedence:
//
//  1. the record defaultLocale resolves to along its fallback chain;
//  2. the first record in order that is not fallback content;
//  3. the first record present in order at all.
//
// ok is false when records holds none of the locales in order.
func PickDefault[T any](defaultLocale string, order []string, records map[string]T, isFallback func(T) bool) (locale string, record T, ok bool) {
	if l, r, found := Resolve(defaultLocale, records, isFallback); found {
		return l, r, true
	}
	for _, l := range order {
		if r, found := records[l]; found && !isFallback(r) {
			return l, r, true
		}
	}
	for _, l := range order {
		if r, found := records[l]; found {
			return l, r, true
		}
	}
	var zero T
	return "", zero, false
}

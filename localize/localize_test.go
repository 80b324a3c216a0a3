package localize

import (
	"reflect"
	"testing"
)

func TestMergePrecedence(t *testing.T) {
	got := Merge(
		FieldSet{"name": {"en": "A"}},
		FieldSet{"name": {"en": "B", "fr": "C"}},
	)
	want := FieldSet{"name": {"en": "A", "fr": "C"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestMergeIsAssociative(t *testing.T) {
	a := FieldSet{"name": {"en": "A"}, "slug": {"en": "a"}}
	b := FieldSet{"name": {"de-DE": "B", "en": "x"}}
	c := FieldSet{"name": {"de-DE": "y", "fr-FR": "C"}, "price": {"en": 10}}

	left := Merge(Merge(a, b), c)
	right := Merge(a, Merge(b, c))
	flat := Merge(a, b, c)

	if !reflect.DeepEqual(left, right) {
		t.Errorf("Expected (a+b)+c == a+(b+c), got %v vs %v", left, right)
	}
	if !reflect.DeepEqual(left, flat) {
		t.Errorf("Expected nested merge == flat merge, got %v vs %v", left, flat)
	}
}

func TestMergeDoesNotModifyInputs(t *testing.T) {
	a := FieldSet{"name": {"en": "A"}}
	b := FieldSet{"name": {"fr": "C"}}
	Merge(a, b)
	if len(a["name"]) != 1 || len(b["name"]) != 1 {
		t.Errorf("Expected inputs untouched, got %v and %v", a, b)
	}
}

func TestMergeDefaultLocaleFillsGaps(t *testing.T) {
	perLocale := []FieldSet{
		Localize("de-DE", map[string]any{"name": "Nordlicht"}),
		Localize("en", map[string]any{"name": "Northern lights"}),
	}
	// default block appended last only fills in what's missing
	all := append(perLocale, Localize("en", map[string]any{"name": "ignored", "internalName": "NL"}))

	got := Merge(all...)
	if got["name"]["en"] != "Northern lights" {
		t.Errorf("Expected explicit en value to survive, got %v", got["name"]["en"])
	}
	if got["internalName"]["en"] != "NL" {
		t.Errorf("Expected default block to fill internalName, got %v", got["internalName"])
	}
}

func TestLocalizeSkipsNil(t *testing.T) {
	var intro *string
	var doc map[string]any
	got := Localize("en", map[string]any{"name": "A", "notes": nil, "intro": intro, "body": doc})
	for _, name := range []string{"notes", "intro", "body"} {
		if _, ok := got[name]; ok {
			t.Errorf("Expected nil field %s to be omitted, got %v", name, got)
		}
	}
	if got["name"]["en"] != "A" {
		t.Errorf("Expected name.en == A, got %v", got["name"])
	}
}

func TestRemoveFieldsIfFallback(t *testing.T) {
	fields := map[string]any{"name": "A", "bookingCode": "X1", "price": 100}

	if got := RemoveFieldsIfFallback(fields, false); !reflect.DeepEqual(got, fields) {
		t.Errorf("Expected fields unchanged, got %v", got)
	}

	want := map[string]any{"bookingCode": "X1", "price": 100}
	if got := RemoveFieldsIfFallback(fields, true); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestFallbackChain(t *testing.T) {
	cases := map[string][]string{
		"gsw-CH": {"gsw-CH", "de-DE", "en"},
		"en-US":  {"en-US", "en"},
		"en":     {"en"},
	}
	for locale, want := range cases {
		if got := FallbackChain(locale); !reflect.DeepEqual(got, want) {
			t.Errorf("FallbackChain(%s): expected %v, got %v", locale, want, got)
		}
	}
}

type rec struct {
	name     string
	fallback bool
}

func TestResolve(t *testing.T) {
	isFallback := func(r rec) bool { return r.fallback }
	records := map[string]rec{
		"gsw-CH": {"ch", true},
		"de-DE":  {"de", false},
		"en-US":  {"us", true},
		"fr-FR":  {"fr", false},
	}

	from, r, ok := Resolve("gsw-CH", records, isFallback)
	if !ok || from != "de-DE" || r.name != "de" {
		t.Errorf("Expected gsw-CH to resolve to de-DE, got %s %v %v", from, r, ok)
	}
	from, r, ok = Resolve("fr-FR", records, isFallback)
	if !ok || from != "fr-FR" || r.name != "fr" {
		t.Errorf("Expected fr-FR to keep its own record, got %s %v %v", from, r, ok)
	}
	if from, _, ok := Resolve("en-US", records, isFallback); ok {
		t.Errorf("Expected en-US without an en record to resolve to nothing, got %s", from)
	}
	if from, _, ok := Resolve("sv-SE", records, isFallback); ok {
		t.Errorf("Expected a missing locale to resolve to nothing, got %s", from)
	}

	records["de-DE"] = rec{"de", true}
	records["en"] = rec{"global", false}
	from, r, ok = Resolve("gsw-CH", records, isFallback)
	if !ok || from != "en" || r.name != "global" {
		t.Errorf("Expected gsw-CH to follow the chain to en, got %s %v %v", from, r, ok)
	}
}

func TestPickDefault(t *testing.T) {
	isFallback := func(r rec) bool { return r.fallback }
	order := []string{"en-US", "de-DE", "en-GB"}

	records := map[string]rec{
		"en-US": {"us", true},
		"de-DE": {"de", false},
		"en-GB": {"gb", false},
	}

	locale, r, ok := PickDefault("en-GB", order, records, isFallback)
	if !ok || locale != "en-GB" || r.name != "gb" {
		t.Errorf("Expected configured default en-GB, got %s %v %v", locale, r, ok)
	}

	locale, r, ok = PickDefault("en", order, records, isFallback)
	if !ok || locale != "de-DE" {
		t.Errorf("Expected first non-fallback de-DE, got %s %v %v", locale, r, ok)
	}

	onlyFallback := map[string]rec{"de-DE": {"de", true}}
	locale, _, ok = PickDefault("en", order, onlyFallback, isFallback)
	if !ok || locale != "de-DE" {
		t.Errorf("Expected first present record de-DE, got %s %v", locale, ok)
	}

	chained := map[string]rec{
		"gsw-CH": {"ch", true},
		"de-DE":  {"de", false},
		"en-GB":  {"gb", false},
	}
	locale, r, ok = PickDefault("gsw-CH", []string{"en-GB", "de-DE", "gsw-CH"}, chained, isFallback)
	if !ok || locale != "de-DE" || r.name != "de" {
		t.Errorf("Expected default gsw-CH to resolve to de-DE, got %s %v %v", locale, r, ok)
	}

	if _, _, ok := PickDefault("en", order, map[string]rec{}, isFallback); ok {
		t.Errorf("Expected no default for empty records")
	}
}

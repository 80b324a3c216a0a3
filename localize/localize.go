// Package localize builds the per-locale field maps sent to the CMS.
//
// Each source locale is fetched and mapped independently, yielding a FieldSet that covers just
// that locale.  Merge folds those together into the one multi-locale FieldSet an entry upsert
// expects.
package localize

import (
	"reflect"
)

// FieldSet maps field name to locale to value, the shape the CMS uses for entry fields.
type FieldSet map[string]map[string]any

// Localize wraps every value of fields under the given locale.  Nil values (including nil
// pointers, maps and slices) are left out, so that a merge-by-locale upsert doesn't touch slots the
// source had nothing for.
func Localize(locale string, fields map[string]any) FieldSet {
	out := FieldSet{}
	for name, value := range fields {
		if isNil(value) {
			continue
		}
		out[name] = map[string]any{locale: value}
	}
	return out
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Merge unions the field/locale maps of all inputs.  When two inputs carry a value for the same
// field and locale, the earliest one wins: later inputs only fill gaps.  Inputs are not modified.
func Merge(sets ...FieldSet) FieldSet {
	merged := FieldSet{}
	for _, set := range sets {
		for name, locales := range set {
			slot, ok := merged[name]
			if !ok {
				slot = map[string]any{}
				merged[name] = slot
			}
			for locale, value := range locales {
				if _, taken := slot[locale]; taken {
					continue
				}
				slot[locale] = value
			}
		}
	}
	return merged
}

// fallbackRetained are the only fields a market may override when its record is flagged as
// fallback content: the rest comes from the locale it falls back to.
var fallbackRetained = []string{"bookingCode", "price", "currency"}

// RemoveFieldsIfFallback strips a single-locale field map down to its commercial fields when the
// source flagged the record as fallback content.
func RemoveFieldsIfFallback(fields map[string]any, isFallback bool) map[string]any {
	if !isFallback {
		return fields
	}
	out := map[string]any{}
	for _, name := range fallbackRetained {
		if v, ok := fields[name]; ok {
			out[name] = v
		}
	}
	return out
}

package upsert

import (
	"context"
	"reflect"
	"testing"

	"github.com/toothbrush/epi-contentful-sync/internal/cmsfake"
	"github.com/toothbrush/epi-contentful-sync/localize"
)

func newTestUpserter(cms CMS) *Upserter {
	u := New(cms, "en-US")
	u.Logger = discardLogger()
	return u
}

func TestUpsertEntryIdempotent(t *testing.T) {
	ctx := context.Background()
	cms := cmsfake.New()
	u := newTestUpserter(cms)

	req := EntryUpsertRequest{
		TargetID:    "usp7-1",
		ContentType: "usp",
		Fields: localize.Merge(
			localize.Localize("en-US", map[string]any{"text": "Northern lights", "order": 1}),
			localize.Localize("de-DE", map[string]any{"text": "Nordlicht"}),
		),
	}

	for i := 0; i < 2; i++ {
		link, err := u.UpsertEntry(ctx, req)
		if err != nil {
			t.Fatalf("Expected no error on call %d, got %v", i+1, err)
		}
		if link.Sys.ID != "usp7-1" || link.Sys.LinkType != "Entry" {
			t.Errorf("Unexpected link %+v", link)
		}
	}

	if len(cms.Entries) != 1 {
		t.Fatalf("Expected exactly one entry, got %d", len(cms.Entries))
	}
	e := cms.Entries["usp7-1"]
	if !e.Sys.IsPublished() {
		t.Errorf("Expected entry to be published, got %+v", e.Sys)
	}
	if e.Fields["text"]["de-DE"] != "Nordlicht" || e.Fields["order"]["en-US"] != float64(1) {
		t.Errorf("Unexpected fields %v", e.Fields)
	}
	if cms.Calls["CreateEntry"] != 1 || cms.Calls["UpdateEntry"] != 0 {
		t.Errorf("Expected one create and no update, got %v", cms.Calls)
	}
}

func TestUpsertEntryMergeKeepsOtherSlots(t *testing.T) {
	ctx := context.Background()
	cms := cmsfake.New()
	u := newTestUpserter(cms)

	_, err := u.UpsertEntry(ctx, EntryUpsertRequest{
		TargetID:    "42",
		ContentType: "excursion",
		Fields: localize.Merge(
			localize.Localize("en-US", map[string]any{"name": "Dog sledding", "bookingCode": "DS1"}),
			localize.Localize("fr-FR", map[string]any{"name": "Chiens de traîneau"}),
		),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err = u.UpsertEntry(ctx, EntryUpsertRequest{
		TargetID:    "42",
		ContentType: "excursion",
		Fields:      localize.Localize("en-US", map[string]any{"name": "Husky sledding"}),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	want := map[string]map[string]any{
		"name":        {"en-US": "Husky sledding", "fr-FR": "Chiens de traîneau"},
		"bookingCode": {"en-US": "DS1"},
	}
	got := cms.Entries["42"].Fields
	if !reflect.DeepEqual(map[string]map[string]any(got), want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if !cms.Entries["42"].Sys.IsPublished() {
		t.Error("Expected merged entry to be published")
	}
	if cms.Calls["UpdateEntry"] != 1 {
		t.Errorf("Expected one update, got %d", cms.Calls["UpdateEntry"])
	}
}

func TestUpsertEntryReplace(t *testing.T) {
	ctx := context.Background()
	cms := cmsfake.New()
	u := newTestUpserter(cms)

	first := EntryUpsertRequest{
		TargetID:    "itday7-1",
		ContentType: "itineraryDay",
		Fields:      localize.Localize("en-US", map[string]any{"name": "Bergen", "location": "Bergen"}),
		Mode:        Replace,
	}
	if _, err := u.UpsertEntry(ctx, first); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	second := first
	second.Fields = localize.Localize("en-US", map[string]any{"name": "Ålesund"})
	if _, err := u.UpsertEntry(ctx, second); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	e := cms.Entries["itday7-1"]
	if _, ok := e.Fields["location"]; ok {
		t.Errorf("Expected unsupplied field to be gone, got %v", e.Fields)
	}
	if e.Fields["name"]["en-US"] != "Ålesund" {
		t.Errorf("Expected replaced name, got %v", e.Fields["name"])
	}
	if cms.Calls["UnpublishEntry"] != 1 || cms.Calls["DeleteEntry"] != 1 {
		t.Errorf("Expected unpublish and delete before recreate, got %v", cms.Calls)
	}
	if !e.Sys.IsPublished() {
		t.Error("Expected recreated entry to be published")
	}
}

func TestUpsertEntrySanitizesID(t *testing.T) {
	cms := cmsfake.New()
	u := newTestUpserter(cms)

	link, err := u.UpsertEntry(context.Background(), EntryUpsertRequest{
		TargetID:    "cg-FRAM/XS",
		ContentType: "cabinGrade",
		Fields:      localize.Localize("en-US", map[string]any{"code": "XS"}),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if link.Sys.ID != "cg-FRAMXS" {
		t.Errorf("Expected slash to be removed, got %s", link.Sys.ID)
	}
	if _, ok := cms.Entries["cg-FRAMXS"]; !ok {
		t.Error("Expected sanitized entry to exist")
	}
}

func TestUpsertEntryCreateFailure(t *testing.T) {
	cms := cmsfake.New()
	u := newTestUpserter(cms)

	_, err := u.UpsertEntry(context.Background(), EntryUpsertRequest{
		TargetID: "bad",
		Fields:   localize.FieldSet{"name": {"en-US": func() {}}},
	})
	if err == nil {
		t.Error("Expected an error for unencodable fields")
	}
	if len(cms.Entries) != 0 {
		t.Errorf("Expected nothing to be created, got %v", cms.Entries)
	}
}

func TestEnsureCodeEntry(t *testing.T) {
	ctx := context.Background()
	cms := cmsfake.New()
	u := newTestUpserter(cms)

	link, err := u.EnsureCodeEntry(ctx, "bedCode", "DBL")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if link.Sys.ID != "DBL" || cms.Entries["DBL"].Fields["code"]["en-US"] != "DBL" {
		t.Errorf("Expected code entry DBL, got %+v %v", link, cms.Entries["DBL"])
	}

	cms.Entries["DBL"].Fields["name"] = map[string]any{"en-US": "Double bed"}
	if _, err := u.EnsureCodeEntry(ctx, "bedCode", "DBL"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cms.Entries["DBL"].Fields["name"] == nil || cms.Calls["CreateEntry"] != 1 {
		t.Error("Expected existing code entry to be left alone")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": MergeByLocale, "merge": MergeByLocale, "replace": Replace} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q): expected %v, got %v %v", in, want, got, err)
		}
	}
	if _, err := ParseMode("upsert"); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

package richtext

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrepareStripsAnchorsAndNewlines(t *testing.T) {
	got, err := Prepare("<p>Visit\n<a href=\"https://old.example/x\">our <b>site</b></a>\r</p>")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if strings.Contains(got, "<a") || strings.Contains(got, "href") {
		t.Errorf("Expected anchors removed, got %q", got)
	}
	if strings.ContainsAny(got, "\n\r") {
		t.Errorf("Expected line breaks removed, got %q", got)
	}
	if !strings.Contains(got, "our <b>site</b>") {
		t.Errorf("Expected link text kept, got %q", got)
	}
}

func TestConvertNilInput(t *testing.T) {
	blank := "   "
	for _, in := range []*string{nil, &blank} {
		doc, err := Convert(context.Background(), NewLocal(), in)
		if err != nil || doc != nil {
			t.Errorf("Expected nil document and no error, got %v %v", doc, err)
		}
	}
}

func TestRemoteConvert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/convert" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body convertRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Couldn't decode body: %v", err)
		}
		if body.From != "html" || body.To != "richtext" || body.HTML != "<p>hi</p>" {
			t.Errorf("Unexpected body %+v", body)
		}
		w.Write([]byte(`{"nodeType":"document","data":{},"content":[]}`))
	}))
	defer srv.Close()

	remote, err := NewRemote(srv.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	html := "<p>hi</p>"
	doc, err := Convert(context.Background(), remote, &html)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if doc["nodeType"] != "document" {
		t.Errorf("Unexpected document %v", doc)
	}
}

func TestRemoteConvertError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	remote, _ := NewRemote(srv.URL)
	if _, err := remote.Convert(context.Background(), "<p>x</p>"); err == nil {
		t.Error("Expected error from failing converter")
	}
}

func TestNewRemoteRequiresURL(t *testing.T) {
	if _, err := NewRemote(""); err == nil {
		t.Error("Expected error for empty URL")
	}
}

func TestFromMarkdown(t *testing.T) {
	doc := FromMarkdown("## Day one\n\nSail **north** today\nand rest.\n\n- Cabin\n- Breakfast")
	content, ok := doc["content"].([]any)
	if !ok || len(content) != 3 {
		t.Fatalf("Expected 3 blocks, got %v", doc["content"])
	}

	types := []string{}
	for _, c := range content {
		types = append(types, c.(map[string]any)["nodeType"].(string))
	}
	want := []string{"heading-2", "paragraph", "unordered-list"}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("Expected block %d to be %s, got %s", i, want[i], types[i])
		}
	}

	para := content[1].(map[string]any)["content"].([]any)
	if len(para) != 3 {
		t.Fatalf("Expected 3 text runs, got %d", len(para))
	}
	bold := para[1].(map[string]any)
	if bold["value"] != "north" || len(bold["marks"].([]any)) != 1 {
		t.Errorf("Expected bold run, got %v", bold)
	}

	list := content[2].(map[string]any)["content"].([]any)
	if len(list) != 2 {
		t.Errorf("Expected 2 list items, got %d", len(list))
	}
}

func TestLocalConvert(t *testing.T) {
	doc, err := NewLocal().Convert(context.Background(), "<p>Hello <strong>world</strong></p>")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	content := doc["content"].([]any)
	if len(content) != 1 || content[0].(map[string]any)["nodeType"] != "paragraph" {
		t.Errorf("Expected a single paragraph, got %v", content)
	}
}

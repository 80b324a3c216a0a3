package checkpoint

import (
	"context"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := Key{SourceID: "42", Locale: "de-DE"}

	if _, ok, err := s.Get(ctx, key); ok || err != nil {
		t.Fatalf("Expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := s.Put(ctx, key, "abc"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	sum, ok, err := s.Get(ctx, key)
	if !ok || err != nil || sum != "abc" {
		t.Errorf("Expected abc, got %q ok=%v err=%v", sum, ok, err)
	}

	if _, ok, _ := s.Get(ctx, Key{SourceID: "42", Locale: "en"}); ok {
		t.Error("Expected locales to be independent")
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Expected empty store, got %d", s.Len())
	}
}

func TestChecksum(t *testing.T) {
	a := Checksum([]byte(`{"id":1}`))
	if a != Checksum([]byte(`{"id":1}`)) {
		t.Error("Expected checksum to be stable")
	}
	if a == Checksum([]byte(`{"id":2}`)) {
		t.Error("Expected different content to give a different checksum")
	}
	if len(a) != 64 {
		t.Errorf("Expected hex SHA-256, got %q", a)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, _, err := Open(context.Background(), "redis", ""); err == nil {
		t.Error("Expected error for unknown backend")
	}
	s, closer, err := Open(context.Background(), "", "")
	if err != nil || s == nil {
		t.Fatalf("Expected memory store, got %v %v", s, err)
	}
	closer()
}

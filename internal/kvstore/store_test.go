package kvstore

import (
	"context"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(NewRedisMediumWithClient(client), "test:"), s
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	value := "default"
	if store.Get(ctx, "absent", &value, nil) {
		t.Fatal("expected Get to report false for absent key")
	}
	if value != "default" {
		t.Errorf("expected destination untouched, got %q", value)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	saved := map[string]any{
		"title": "Login flow rework",
		"tags":  []any{"auth", "p0"},
	}
	if !store.Set(ctx, "record", saved) {
		t.Fatal("Set failed")
	}

	loaded := map[string]any{}
	if !store.Get(ctx, "record", &loaded, IsObjectWithKeys("title", "tags")) {
		t.Fatal("Get failed after Set")
	}
	if !reflect.DeepEqual(loaded, saved) {
		t.Errorf("round trip mismatch: got %#v, want %#v", loaded, saved)
	}
}

func TestGetDeletesCorruptEntry(t *testing.T) {
	store, s := setupTestStore(t)
	ctx := context.Background()

	// Write invalid JSON directly into the medium, bypassing Set.
	if err := s.Set("test:poisoned", "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	value := map[string]any{"keep": "default"}
	if store.Get(ctx, "poisoned", &value, IsObjectWithKeys("keep")) {
		t.Fatal("expected Get to report false for corrupt entry")
	}
	if value["keep"] != "default" {
		t.Errorf("expected destination untouched, got %#v", value)
	}

	// Fail-safe cleanup: the poisoned key must be gone.
	if s.Exists("test:poisoned") {
		t.Error("expected corrupt entry to be deleted")
	}
}

func TestGetRejectsWrongShape(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	// A JSON string where an object is expected: parses fine, wrong shape.
	if !store.Set(ctx, "shape", "just a string") {
		t.Fatal("Set failed")
	}

	value := map[string]any{}
	if store.Get(ctx, "shape", &value, IsObjectWithKeys("id")) {
		t.Fatal("expected validator to reject a string value")
	}
}

func TestSetFailsWhenMediumUnavailable(t *testing.T) {
	store, s := setupTestStore(t)
	ctx := context.Background()

	s.Close()

	if store.Set(ctx, "key", "value") {
		t.Error("expected Set to report false with medium down")
	}

	value := "default"
	if store.Get(ctx, "key", &value, nil) {
		t.Error("expected Get to report false with medium down")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	store, s := setupTestStore(t)
	ctx := context.Background()

	if !store.Set(ctx, "gone", 42) {
		t.Fatal("Set failed")
	}

	store.Remove(ctx, "gone")
	store.Remove(ctx, "gone")

	if s.Exists("test:gone") {
		t.Error("expected key to be absent after Remove")
	}
}

func TestClearByPrefix(t *testing.T) {
	store, s := setupTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"draft:a", "draft:b", "final:c"} {
		if !store.Set(ctx, key, key) {
			t.Fatalf("Set %s failed", key)
		}
	}

	removed := store.ClearByPrefix(ctx, "draft:")
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if s.Exists("test:draft:a") || s.Exists("test:draft:b") {
		t.Error("expected draft keys to be removed")
	}
	if !s.Exists("test:final:c") {
		t.Error("expected non-matching key to survive")
	}
}

func TestClearRemovesOnlyNamespace(t *testing.T) {
	store, s := setupTestStore(t)
	ctx := context.Background()

	if !store.Set(ctx, "mine", 1) {
		t.Fatal("Set failed")
	}
	if err := s.Set("other:key", "x"); err != nil {
		t.Fatalf("seed foreign key: %v", err)
	}

	if removed := store.Clear(ctx); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if !s.Exists("other:key") {
		t.Error("expected foreign key to survive Clear")
	}
}

func TestValidators(t *testing.T) {
	cases := []struct {
		name      string
		validator Validator
		value     any
		want      bool
	}{
		{"string ok", IsString(), "hello", true},
		{"string rejects number", IsString(), float64(3), false},
		{"string array ok", IsStringArray(), []any{"a", "b"}, true},
		{"string array rejects mixed", IsStringArray(), []any{"a", float64(1)}, false},
		{"string array rejects object", IsStringArray(), map[string]any{}, false},
		{"object keys ok", IsObjectWithKeys("id", "title"), map[string]any{"id": "1", "title": "t", "extra": true}, true},
		{"object keys missing", IsObjectWithKeys("id", "title"), map[string]any{"id": "1"}, false},
		{"object keys rejects array", IsObjectWithKeys("id"), []any{}, false},
		{"one of ok", IsOneOf("open", "closed"), "open", true},
		{"one of rejects other", IsOneOf("open", "closed"), "pending", false},
		{"one of rejects non-string", IsOneOf("open"), float64(1), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.validator(tc.value); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

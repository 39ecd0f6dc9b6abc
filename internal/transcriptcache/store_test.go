package transcriptcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"revoice/internal/logging"
	"revoice/internal/transcript"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache", "transcripts.db"), logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	key := Key{AudioHash: "abc", Backend: "auto", Model: "medium", Language: "en"}
	segments := []transcript.Segment{{Start: 0, End: 1.25, Text: "hello"}, {Start: 1.5, End: 2, Text: "world"}}

	if err := store.Put(ctx, key, "whisper", segments); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry == nil {
		t.Fatal("expected cache hit")
	}
	if entry.ProducedBy != "whisper" || len(entry.Segments) != 2 || entry.Segments[0].End != 1.25 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.CreatedAt.IsZero() {
		t.Fatal("expected creation time")
	}
}

func TestGetMissAndKeyIsolation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	key := Key{AudioHash: "abc", Backend: "auto", Model: "medium"}
	if err := store.Put(ctx, key, "whisper", []transcript.Segment{{Start: 0, End: 1, Text: "x"}}); err != nil {
		t.Fatal(err)
	}

	other := key
	other.Model = "large-v3"
	entry, err := store.Get(ctx, other)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected miss for different model, got %+v", entry)
	}
}

func TestPutReplacesAndClear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	key := Key{AudioHash: "abc", Backend: "openai", Model: "whisper-1"}

	for _, text := range []string{"first", "second"} {
		if err := store.Put(ctx, key, "openai", []transcript.Segment{{Start: 0, End: 1, Text: text}}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := store.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Count = %d, %v; want 1", n, err)
	}
	entry, _ := store.Get(ctx, key)
	if entry == nil || entry.Segments[0].Text != "second" {
		t.Fatalf("expected replaced entry, got %+v", entry)
	}

	removed, err := store.Clear(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("Clear = %d, %v", removed, err)
	}
}

func TestPutRejectsEmpty(t *testing.T) {
	store := openTestStore(t)
	if err := store.Put(context.Background(), Key{AudioHash: "x"}, "whisper", nil); !errors.Is(err, transcript.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcripts.db")
	ctx := context.Background()
	store, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	key := Key{AudioHash: "h", Backend: "whisper", Model: "small"}
	if err := store.Put(ctx, key, "whisper", []transcript.Segment{{Start: 0, End: 1, Text: "hi"}}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	store, err = Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	if entry, _ := store.Get(ctx, key); entry == nil {
		t.Fatal("expected entry after reopen")
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcripts.db")
	ctx := context.Background()
	store, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.ExecContext(ctx, "UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	if _, err := Open(ctx, path, nil); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestKeyFor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	key, err := KeyFor(path, "auto", "medium", "en")
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	if key.AudioHash != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("unexpected hash %s", key.AudioHash)
	}
}

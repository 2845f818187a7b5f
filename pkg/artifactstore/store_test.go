package artifactstore

import (
	"context"
	"testing"
)

func TestFileStore_PutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	ref, err := store.Put(ctx, []byte("hello world"))
	if err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("expected roundtrip to preserve content, got %q", got)
	}
}

func TestFileStore_PutIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	ctx := context.Background()

	ref1, err := store.Put(ctx, []byte("same content"))
	if err != nil {
		t.Fatal(err)
	}
	ref2, err := store.Put(ctx, []byte("same content"))
	if err != nil {
		t.Fatal(err)
	}
	if ref1 != ref2 {
		t.Fatalf("expected same ref for same content, got %s != %s", ref1, ref2)
	}
}

func TestFileStore_Exists(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	ctx := context.Background()

	ref, _ := store.Put(ctx, []byte("data"))
	exists, err := store.Exists(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("expected stored ref to exist")
	}

	missing, err := store.Exists(ctx, "sha256:"+"0000000000000000000000000000000000000000000000000000000000000000"[:64])
	if err != nil {
		t.Fatal(err)
	}
	if missing {
		t.Fatal("expected unstored ref to not exist")
	}
}

func TestFileStore_GetInvalidRef(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	if _, err := store.Get(context.Background(), "not-a-valid-ref"); err == nil {
		t.Fatal("expected error for malformed ref")
	}
}

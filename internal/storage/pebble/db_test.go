package pebblestore

import (
	"bytes"
	"context"
	"testing"
)

func openTestDB(t *testing.T, mode FsyncMode) *DB {
	t.Helper()
	db, err := Open(Options{DataDir: t.TempDir(), Fsync: mode})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSetGetDelete(t *testing.T) {
	db := openTestDB(t, FsyncModeNever)

	if err := db.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Fatalf("got %q, want %q", got, "v")
	}

	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k")); !IsNotFound(err) {
		t.Fatalf("got %v, want not-found", err)
	}
}

func TestGetMissingKey(t *testing.T) {
	db := openTestDB(t, FsyncModeNever)
	if _, err := db.Get([]byte("absent")); !IsNotFound(err) {
		t.Fatalf("got %v, want not-found", err)
	}
}

func TestCommitBatchAtomic(t *testing.T) {
	db := openTestDB(t, FsyncModeAlways)

	b := db.NewBatch()
	defer b.Close()
	if err := b.Set([]byte("a"), []byte("1"), nil); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if err := b.Set([]byte("b"), []byte("2"), nil); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if err := db.CommitBatch(context.Background(), b); err != nil {
		t.Fatalf("commit: %v", err)
	}

	for _, k := range []string{"a", "b"} {
		if _, err := db.Get([]byte(k)); err != nil {
			t.Fatalf("get %s: %v", k, err)
		}
	}
}

func TestCommitBatchHonorsContext(t *testing.T) {
	db := openTestDB(t, FsyncModeNever)
	b := db.NewBatch()
	defer b.Close()
	if err := b.Set([]byte("k"), []byte("v"), nil); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := db.CommitBatch(ctx, b); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestParseFsyncMode(t *testing.T) {
	cases := []struct {
		in   string
		want FsyncMode
	}{
		{"", FsyncModeInterval},
		{"interval", FsyncModeInterval},
		{"always", FsyncModeAlways},
		{"never", FsyncModeNever},
	}
	for _, c := range cases {
		got, err := ParseFsyncMode(c.in)
		if err != nil {
			t.Fatalf("parse %q: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("parse %q: got %v, want %v", c.in, got, c.want)
		}
	}
	if _, err := ParseFsyncMode("sometimes"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

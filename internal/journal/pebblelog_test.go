package journal

import (
	"reflect"
	"testing"

	pebblestore "github.com/rzbill/warren/internal/storage/pebble"
)

func newTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeNever,
	})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPebbleJournalRoundTrip(t *testing.T) {
	db := newTestDB(t)
	j, err := OpenPebble(db, "proc-1")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	want := testLogEntries()
	writeAll(t, j, want)

	rx, err := j.Restarted()
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := readAll(t, rx); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestPebbleJournalReopenContinuesSequence(t *testing.T) {
	db := newTestDB(t)
	j, err := OpenPebble(db, "proc-1")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	want := testLogEntries()
	writeAll(t, j, want[:3])

	// Reopening by name restores the last sequence; appends continue
	// without overwriting.
	j, err = OpenPebble(db, "proc-1")
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	writeAll(t, j, want[3:])

	rx, err := j.Restarted()
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := readAll(t, rx); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestPebbleJournalsAreIsolatedByName(t *testing.T) {
	db := newTestDB(t)
	a, err := OpenPebble(db, "proc-a")
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	b, err := OpenPebble(db, "proc-b")
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	writeAll(t, a, []Entry{CreateDirectory{Fd: 3, Path: "/a"}})
	writeAll(t, b, []Entry{CreateDirectory{Fd: 3, Path: "/b"}})

	rx, err := a.Restarted()
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	got := readAll(t, rx)
	if len(got) != 1 || !reflect.DeepEqual(got[0], Entry(CreateDirectory{Fd: 3, Path: "/a"})) {
		t.Fatalf("journal a got %#v", got)
	}
}

func TestPebbleCursorObservesLaterAppends(t *testing.T) {
	db := newTestDB(t)
	j, err := OpenPebble(db, "proc-1")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	rx, err := j.Restarted()
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if e, _ := rx.Read(); e != nil {
		t.Fatalf("unexpected entry %#v", e)
	}
	writeAll(t, j, []Entry{ProcessExit{}})
	got, err := rx.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, Entry(ProcessExit{})) {
		t.Fatalf("drained cursor did not observe append, got %#v", got)
	}
}

func TestCompactPebbleToPebble(t *testing.T) {
	db := newTestDB(t)
	src, err := OpenPebble(db, "live")
	if err != nil {
		t.Fatalf("open src: %v", err)
	}
	dst, err := OpenPebble(db, "compacted")
	if err != nil {
		t.Fatalf("open dst: %v", err)
	}

	cj, err := NewCompacting(src)
	if err != nil {
		t.Fatalf("new compacting: %v", err)
	}
	writeAll(t, cj, []Entry{
		memWrite(0, 16, 11),
		memWrite(0, 16, 22),
		Snapshot{WhenMs: 55, Trigger: "idle"},
	})
	res, err := cj.Compact(dst)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if res.Entries != 2 {
		t.Fatalf("kept %d entries, want 2", res.Entries)
	}

	rx, err := cj.Restarted()
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	want := []Entry{memWrite(0, 16, 22), Snapshot{WhenMs: 55, Trigger: "idle"}}
	if got := readAll(t, rx); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

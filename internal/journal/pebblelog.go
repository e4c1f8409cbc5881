package journal

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	pebblestore "github.com/rzbill/warren/internal/storage/pebble"
)

// PebbleJournal persists a journal in a Pebble store under a name, so many
// journals can share one database. Entries are stored as framed records
// under dense big-endian sequence keys; a metadata key tracks the last
// assigned sequence so the journal survives reopen.
type PebbleJournal struct {
	db   *pebblestore.DB
	name string

	mu      sync.Mutex
	lastSeq uint64

	cursor *pebbleCursor
}

// OpenPebble opens (or creates) the named journal inside db, restoring the
// last sequence from metadata if present.
func OpenPebble(db *pebblestore.DB, name string) (*PebbleJournal, error) {
	j := &PebbleJournal{db: db, name: name}
	meta, err := db.Get(keyJournalMeta(name))
	if err != nil && !pebblestore.IsNotFound(err) {
		return nil, fmt.Errorf("journal: read meta for %q: %w", name, err)
	}
	if len(meta) >= 8 {
		j.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	j.cursor = &pebbleCursor{j: j, nextSeq: 1}
	return j, nil
}

// Write appends one entry as an atomic batch of entry record plus metadata.
func (j *PebbleJournal) Write(e Entry) (WriteResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	seq := j.lastSeq + 1
	val := EncodeRecord(e)

	b := j.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyJournalEntry(j.name, seq), val, nil); err != nil {
		return WriteResult{}, err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], seq)
	if err := b.Set(keyJournalMeta(j.name), meta[:], nil); err != nil {
		return WriteResult{}, err
	}
	if err := j.db.CommitBatch(context.Background(), b); err != nil {
		return WriteResult{}, fmt.Errorf("journal: commit append to %q: %w", j.name, err)
	}
	j.lastSeq = seq
	return WriteResult{Bytes: len(val)}, nil
}

// Flush is a no-op; durability is governed by the store's fsync policy.
func (j *PebbleJournal) Flush() error { return nil }

// Read advances the journal's own cursor.
func (j *PebbleJournal) Read() (Entry, error) { return j.cursor.Read() }

// Restarted returns a fresh cursor at the first entry.
func (j *PebbleJournal) Restarted() (ReadableJournal, error) {
	return &pebbleCursor{j: j, nextSeq: 1}, nil
}

// Split returns a writer handle and an independent cursor.
func (j *PebbleJournal) Split() (WritableJournal, ReadableJournal) {
	return &pebbleWriter{j: j}, &pebbleCursor{j: j, nextSeq: 1}
}

type pebbleWriter struct {
	j *PebbleJournal
}

func (w *pebbleWriter) Write(e Entry) (WriteResult, error) { return w.j.Write(e) }
func (w *pebbleWriter) Flush() error                       { return w.j.Flush() }

// pebbleCursor reads entries by their dense sequence numbers. Sequences are
// assigned without gaps, so a point lookup per position suffices and the
// cursor naturally observes entries appended after it drained to the end.
type pebbleCursor struct {
	j  *PebbleJournal
	mu sync.Mutex
	// nextSeq is the next sequence to return; sequences start at 1.
	nextSeq uint64
}

func (c *pebbleCursor) Read() (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	val, err := c.j.db.Get(keyJournalEntry(c.j.name, c.nextSeq))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("journal: read %q seq %d: %w", c.j.name, c.nextSeq, err)
	}
	e, err := DecodeRecord(val)
	if err != nil {
		return nil, fmt.Errorf("journal: %q seq %d: %w", c.j.name, c.nextSeq, err)
	}
	c.nextSeq++
	return e, nil
}

func (c *pebbleCursor) Restarted() (ReadableJournal, error) {
	return &pebbleCursor{j: c.j, nextSeq: 1}, nil
}

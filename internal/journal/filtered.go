package journal

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// FilteredJournal replays a historical entry sequence into an inner journal,
// keeping only entries whose original position is in the keep-set. The
// position counter starts at the original sequence's first position and
// advances by one per Write, whether or not the entry was kept; the inner
// journal assigns dropped-free fresh positions to whatever passes through.
type FilteredJournal struct {
	inner Journal
	keep  *roaring64.Bitmap

	mu   sync.Mutex
	next uint64
}

// NewFiltered wraps inner with the given keep-set of original positions.
// A nil keep starts empty; use AddEvent to extend it before replaying.
func NewFiltered(inner Journal, keep *roaring64.Bitmap) *FilteredJournal {
	if keep == nil {
		keep = roaring64.New()
	}
	return &FilteredJournal{inner: inner, keep: keep}
}

// AddEvent whitelists one original position. Not safe to call concurrently
// with Write; extend the keep-set before starting the replay.
func (f *FilteredJournal) AddEvent(index uint64) {
	f.keep.Add(index)
}

// Write consumes the next entry of the original sequence, forwarding it
// unchanged when its position is kept and silently dropping it otherwise.
// Dropped entries report a zero WriteResult.
func (f *FilteredJournal) Write(e Entry) (WriteResult, error) {
	f.mu.Lock()
	index := f.next
	f.next++
	f.mu.Unlock()

	if !f.keep.Contains(index) {
		return WriteResult{}, nil
	}
	return f.inner.Write(e)
}

// Flush flushes the inner journal.
func (f *FilteredJournal) Flush() error { return f.inner.Flush() }

// IntoInner unwraps the filtered view, returning the wrapped journal.
func (f *FilteredJournal) IntoInner() Journal { return f.inner }

// Package journal implements Warren's execution-history journal: an
// append-only log of every externally observable effect a running guest
// produces (memory mutation, thread lifecycle, descriptor lifecycle and
// mutation, process termination), sufficient to reconstruct the guest's
// observable state without a full memory dump.
//
// # Overview
//
// The capability surface is deliberately small. A backing store implements
// Journal: append an entry, read the next entry of a position-tracking
// cursor, produce a fresh cursor restarted from the beginning, and split
// into independent write/read handles. Journals compose: adapters wrap any
// other Journal.
//
// Backends:
//   - BufferedJournal: in-memory, used by tests and as a compaction target.
//   - LogFileJournal:  single file, crc32c-framed records, optional
//     per-record zstd, torn-tail recovery.
//   - PebbleJournal:   named journal inside a shared Pebble store.
//
// API surface (internal)
//
//	j, _ := OpenLogFile(LogFileOptions{Path: "guest.journal"})
//	c, _ := NewCompacting(j)
//	tx, rx := c.Split()
//
//	// Producers append effects; the liveness index updates in line.
//	_, _ = tx.Write(UpdateMemoryRegion{Region: ByteRange{0, 16}, Data: page})
//
//	// Rewrite the log into a smaller, replay-equivalent one while writers
//	// keep appending. On error the original journal is untouched.
//	res, err := c.Compact(NewBuffered())
//	_ = res.Entries
//
//	// Cursors drain to the current end and return (nil, nil).
//	for e, err := rx.Read(); e != nil && err == nil; e, err = rx.Read() { _ = e }
//
// # Compaction
//
// CompactingJournal maintains a liveness index keyed by overlapping effect
// categories (exact byte ranges, thread ids, descriptor branches) and
// compacts in two phases: a bulk replay of the historical log that runs
// without holding the state lock, then a brief locked pass that migrates
// the entries written concurrently (the delta) and atomically swaps the
// backing journal. Range dedup is exact-match on [start, end); overlapping
// ranges never supersede each other.
package journal

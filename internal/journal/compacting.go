package journal

import (
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// descriptorState is the per-descriptor bookkeeping while the descriptor is
// tracked as suspect or kept. events holds the positions of its open, seeks
// and other retained operations; writeMap dedups writes keyed by the exact
// byte range they touched.
type descriptorState struct {
	events   []uint64
	writeMap map[ByteRange]uint64
}

func newDescriptorState() *descriptorState {
	return &descriptorState{writeMap: make(map[ByteRange]uint64)}
}

// compactState is the liveness index of one compacting journal. It is
// jointly owned by the journal's write and read handles and guarded by
// sharedState.mu; its identity persists across compactions, only the inner
// handles are swapped.
type compactState struct {
	// memoryMap holds, per exact byte range, the last event that wrote it.
	memoryMap map[ByteRange]uint64
	// threadMap holds the last SetThread per still-running thread.
	threadMap map[uint32]uint64
	// snapshots are always retained until the process exits.
	snapshots []uint64
	// createDirectory/removeDirectory dedup directory churn; creating a
	// directory cancels a pending removal of the same path and vice versa.
	createDirectory map[string]uint64
	removeDirectory map[string]uint64
	// createTruncFile remembers which descriptor last created-and-truncated
	// a path, so an earlier create branch for the same path can be erased.
	createTruncFile map[string]Fd
	// suspectDescriptors hold descriptors assumed read-only so far;
	// keepDescriptors have proven to mutate state.
	suspectDescriptors map[Fd]*descriptorState
	keepDescriptors    map[Fd]*descriptorState
	// whitelist positions are retained unconditionally.
	whitelist *roaring64.Bitmap
	// eventIndex is the next position to assign.
	eventIndex uint64
	// delta records positions written while a compaction pass is running;
	// nil otherwise.
	delta *roaring64.Bitmap

	innerTx WritableJournal
	innerRx ReadableJournal
}

// keepSet collects every position the next compaction must retain.
func (s *compactState) keepSet() *roaring64.Bitmap {
	keep := s.whitelist.Clone()
	for _, idx := range s.snapshots {
		keep.Add(idx)
	}
	for _, idx := range s.memoryMap {
		keep.Add(idx)
	}
	for _, idx := range s.threadMap {
		keep.Add(idx)
	}
	for _, idx := range s.createDirectory {
		keep.Add(idx)
	}
	for _, idx := range s.removeDirectory {
		keep.Add(idx)
	}
	for _, d := range s.suspectDescriptors {
		keep.AddMany(d.events)
		for _, idx := range d.writeMap {
			keep.Add(idx)
		}
	}
	for _, d := range s.keepDescriptors {
		keep.AddMany(d.events)
		for _, idx := range d.writeMap {
			keep.Add(idx)
		}
	}
	return keep
}

type sharedState struct {
	mu sync.Mutex
	// compactMu serializes compactions against each other without
	// serializing them against writers.
	compactMu sync.Mutex
	compactState
}

// CompactResult reports what one compaction persisted into the new journal
// during the bulk replay pass.
type CompactResult struct {
	Entries int
	Bytes   int64
}

// CompactingJournal deduplicates guest effects in line as they are written,
// so the backing journal can later be rewritten into a smaller, replay-
// equivalent one while writes continue.
type CompactingJournal struct {
	tx *CompactingTx
	rx *CompactingRx
}

// CompactingTx is the write handle: it maintains the liveness index and
// forwards every entry to the live backing journal.
type CompactingTx struct {
	st *sharedState
}

// CompactingRx is the read handle split off a compacting journal. It keeps
// draining the backing log captured at construction and is deliberately not
// repointed when Compact swaps the backing journal; take a fresh cursor from
// CompactingJournal.Restarted to observe the compacted log.
type CompactingRx struct {
	inner ReadableJournal
}

// NewCompacting wraps an inner journal with in-line compaction bookkeeping.
func NewCompacting(inner Journal) (*CompactingJournal, error) {
	tx, rx := inner.Split()
	restarted, err := rx.Restarted()
	if err != nil {
		return nil, fmt.Errorf("journal: restart inner cursor: %w", err)
	}
	st := &sharedState{compactState: compactState{
		memoryMap:          make(map[ByteRange]uint64),
		threadMap:          make(map[uint32]uint64),
		createDirectory:    make(map[string]uint64),
		removeDirectory:    make(map[string]uint64),
		createTruncFile:    make(map[string]Fd),
		suspectDescriptors: make(map[Fd]*descriptorState),
		keepDescriptors:    make(map[Fd]*descriptorState),
		whitelist:          roaring64.New(),
		innerTx:            tx,
		innerRx:            restarted,
	}}
	return &CompactingJournal{
		tx: &CompactingTx{st: st},
		rx: &CompactingRx{inner: rx},
	}, nil
}

// Write assigns the next event index, updates the liveness index for the
// entry's kind, and forwards the entry to the backing journal. The index is
// updated synchronously with the append: cursors never observe the backing
// log ahead of the index.
func (tx *CompactingTx) Write(e Entry) (WriteResult, error) {
	st := tx.st
	st.mu.Lock()
	defer st.mu.Unlock()

	index := st.eventIndex
	st.eventIndex++

	if st.delta != nil {
		st.delta.Add(index)
	}

	switch v := e.(type) {
	case UpdateMemoryRegion:
		st.memoryMap[v.Region] = index
	case SetThread:
		st.threadMap[v.ID] = index
	case CloseThread:
		delete(st.threadMap, v.ID)
	case Snapshot:
		st.snapshots = append(st.snapshots, index)
	case ProcessExit:
		// Everything the exit makes unreachable is dropped wholesale; the
		// exit itself always survives.
		st.threadMap = make(map[uint32]uint64)
		st.memoryMap = make(map[ByteRange]uint64)
		st.suspectDescriptors = make(map[Fd]*descriptorState)
		st.createTruncFile = make(map[string]Fd)
		st.snapshots = nil
		st.whitelist.Add(index)
	case OpenFileDescriptor:
		// Descriptors start suspect: if closed without mutating anything,
		// their whole event branch is discarded.
		d := newDescriptorState()
		d.events = append(d.events, index)
		st.suspectDescriptors[v.Fd] = d

		// A create may materialize a file that does not exist yet, so it is
		// a mutation from the first event.
		if v.OpenFlags&OpenFlagCreate != 0 {
			delete(st.suspectDescriptors, v.Fd)
			st.keepDescriptors[v.Fd] = d
		}

		// Create+truncate supersedes any earlier create branch of the path.
		if v.OpenFlags&OpenFlagCreate != 0 && v.OpenFlags&OpenFlagTruncate != 0 {
			if prev, ok := st.createTruncFile[v.Path]; ok {
				delete(st.suspectDescriptors, prev)
				delete(st.keepDescriptors, prev)
			}
			st.createTruncFile[v.Path] = v.Fd
		}
	case CloseFileDescriptor:
		if _, ok := st.suspectDescriptors[v.Fd]; ok {
			// Open+close of an unmodified descriptor vanishes entirely.
			delete(st.suspectDescriptors, v.Fd)
		} else if d, ok := st.keepDescriptors[v.Fd]; ok {
			d.events = append(d.events, index)
		} else {
			st.whitelist.Add(index)
		}
	case FileDescriptorSeek:
		if d, ok := st.suspectDescriptors[v.Fd]; ok {
			d.events = append(d.events, index)
		} else if d, ok := st.keepDescriptors[v.Fd]; ok {
			d.events = append(d.events, index)
		} else {
			st.whitelist.Add(index)
		}
	case FileDescriptorWrite:
		d := st.promote(v.Fd)
		if d != nil {
			d.writeMap[ByteRange{Start: v.Offset, End: v.Offset + uint64(len(v.Data))}] = index
		} else {
			st.whitelist.Add(index)
		}
	case FileDescriptorAdvise:
		st.keepEvent(v.Fd, index)
	case FileDescriptorAllocate:
		st.keepEvent(v.Fd, index)
	case FileDescriptorSetFlags:
		st.keepEvent(v.Fd, index)
	case FileDescriptorSetTimes:
		st.keepEvent(v.Fd, index)
	case DuplicateFileDescriptor:
		st.keepEvent(v.OriginalFd, index)
		// The copy gets its own kept record so later operations on it
		// dedup instead of being whitelisted forever.
		if d := st.promote(v.CopiedFd); d != nil {
			d.events = append(d.events, index)
		} else {
			d := newDescriptorState()
			d.events = append(d.events, index)
			st.keepDescriptors[v.CopiedFd] = d
		}
	case RenumberFileDescriptor:
		if d, ok := st.suspectDescriptors[v.OldFd]; ok {
			delete(st.suspectDescriptors, v.OldFd)
			d.events = append(d.events, index)
			st.suspectDescriptors[v.NewFd] = d
		} else if d, ok := st.keepDescriptors[v.OldFd]; ok {
			delete(st.keepDescriptors, v.OldFd)
			d.events = append(d.events, index)
			st.keepDescriptors[v.NewFd] = d
		} else {
			st.whitelist.Add(index)
		}
	case CreateDirectory:
		delete(st.removeDirectory, v.Path)
		if _, ok := st.createDirectory[v.Path]; !ok {
			st.createDirectory[v.Path] = index
		}
	case RemoveDirectory:
		delete(st.createDirectory, v.Path)
		if _, ok := st.removeDirectory[v.Path]; !ok {
			st.removeDirectory[v.Path] = index
		}
	default:
		// Fail safe: unknown entries are never dropped.
		st.whitelist.Add(index)
	}

	return st.innerTx.Write(e)
}

// promote moves fd out of the suspect set, returning its kept record or nil
// when the descriptor is untracked.
func (s *compactState) promote(fd Fd) *descriptorState {
	if d, ok := s.suspectDescriptors[fd]; ok {
		delete(s.suspectDescriptors, fd)
		s.keepDescriptors[fd] = d
	}
	return s.keepDescriptors[fd]
}

// keepEvent records a mutating descriptor operation, promoting fd if needed
// and whitelisting the event when fd is untracked.
func (s *compactState) keepEvent(fd Fd, index uint64) {
	if d := s.promote(fd); d != nil {
		d.events = append(d.events, index)
	} else {
		s.whitelist.Add(index)
	}
}

// Flush flushes the live backing journal.
func (tx *CompactingTx) Flush() error {
	tx.st.mu.Lock()
	defer tx.st.mu.Unlock()
	return tx.st.innerTx.Flush()
}

// Compact rewrites the backing journal into target, dropping entries the
// liveness index has proven redundant, then atomically makes target the new
// backing journal. Writers keep appending throughout the bulk replay; only
// the short delta/swap phase blocks them. On error the original journal is
// left untouched and still serving reads and writes; retry with a fresh
// target.
func (tx *CompactingTx) Compact(target Journal) (CompactResult, error) {
	st := tx.st

	// One compaction at a time; writers are not blocked by this lock.
	st.compactMu.Lock()
	defer st.compactMu.Unlock()

	// Phase one setup: from here on every concurrent Write also lands in
	// the delta set.
	st.mu.Lock()
	st.delta = roaring64.New()
	keep := st.keepSet()
	filtered := NewFiltered(target, keep)
	replay, err := st.innerRx.Restarted()
	st.mu.Unlock()
	if err != nil {
		tx.abortCompaction()
		return CompactResult{}, fmt.Errorf("journal: restart for compaction: %w", err)
	}

	// Bulk replay, deliberately unlocked: this scans the whole historical
	// log and must not stall writers.
	var result CompactResult
	for {
		e, err := replay.Read()
		if err != nil {
			tx.abortCompaction()
			return CompactResult{}, fmt.Errorf("journal: compaction replay: %w", err)
		}
		if e == nil {
			break
		}
		res, err := filtered.Write(e)
		if err != nil {
			tx.abortCompaction()
			return CompactResult{}, fmt.Errorf("journal: compaction rewrite: %w", err)
		}
		if res.Bytes > 0 {
			result.Entries++
			result.Bytes += int64(res.Bytes)
		}
	}
	target = filtered.IntoInner()

	// Finalize under the state lock: catch the tail written during the
	// bulk pass, then swap the backing journal in place.
	st.mu.Lock()
	defer st.mu.Unlock()

	delta := st.delta
	deltaFiltered := NewFiltered(target, delta)
	st.delta = nil

	replay, err = st.innerRx.Restarted()
	if err != nil {
		return CompactResult{}, fmt.Errorf("journal: restart for delta pass: %w", err)
	}
	for {
		e, err := replay.Read()
		if err != nil {
			return CompactResult{}, fmt.Errorf("journal: delta replay: %w", err)
		}
		if e == nil {
			break
		}
		if _, err := deltaFiltered.Write(e); err != nil {
			return CompactResult{}, fmt.Errorf("journal: delta rewrite: %w", err)
		}
	}
	target = deltaFiltered.IntoInner()

	st.innerTx, st.innerRx = target.Split()
	st.rebase(keep, delta)
	return result, nil
}

// rebase rewrites every stored event index into the swapped-in journal's
// position space. Both replay passes forward kept entries in strictly
// increasing original order, first the keep-set then the delta, so an
// index's new position is its rank across the two sets. eventIndex
// continues from the new journal's entry count.
func (s *compactState) rebase(keep, delta *roaring64.Bitmap) {
	remap := make(map[uint64]uint64, keep.GetCardinality()+delta.GetCardinality())
	var next uint64
	for it := keep.Iterator(); it.HasNext(); {
		remap[it.Next()] = next
		next++
	}
	for it := delta.Iterator(); it.HasNext(); {
		remap[it.Next()] = next
		next++
	}

	for r, idx := range s.memoryMap {
		s.memoryMap[r] = remap[idx]
	}
	for id, idx := range s.threadMap {
		s.threadMap[id] = remap[idx]
	}
	for i, idx := range s.snapshots {
		s.snapshots[i] = remap[idx]
	}
	for p, idx := range s.createDirectory {
		s.createDirectory[p] = remap[idx]
	}
	for p, idx := range s.removeDirectory {
		s.removeDirectory[p] = remap[idx]
	}
	for _, d := range s.suspectDescriptors {
		d.rebase(remap)
	}
	for _, d := range s.keepDescriptors {
		d.rebase(remap)
	}
	wl := roaring64.New()
	for it := s.whitelist.Iterator(); it.HasNext(); {
		wl.Add(remap[it.Next()])
	}
	s.whitelist = wl
	s.eventIndex = next
}

func (d *descriptorState) rebase(remap map[uint64]uint64) {
	for i, idx := range d.events {
		d.events[i] = remap[idx]
	}
	for r, idx := range d.writeMap {
		d.writeMap[r] = remap[idx]
	}
}

// abortCompaction stops delta tracking after a failed bulk pass.
func (tx *CompactingTx) abortCompaction() {
	tx.st.mu.Lock()
	tx.st.delta = nil
	tx.st.mu.Unlock()
}

func (rx *CompactingRx) Read() (Entry, error) { return rx.inner.Read() }

func (rx *CompactingRx) Restarted() (ReadableJournal, error) { return rx.inner.Restarted() }

// Write forwards to the journal's write handle.
func (j *CompactingJournal) Write(e Entry) (WriteResult, error) { return j.tx.Write(e) }

// Flush forwards to the journal's write handle.
func (j *CompactingJournal) Flush() error { return j.tx.Flush() }

// Read drains the read handle captured at construction.
func (j *CompactingJournal) Read() (Entry, error) { return j.rx.Read() }

// Restarted returns a fresh cursor over the current backing journal; after a
// successful Compact this observes the compacted log.
func (j *CompactingJournal) Restarted() (ReadableJournal, error) {
	j.tx.st.mu.Lock()
	defer j.tx.st.mu.Unlock()
	return j.tx.st.innerRx.Restarted()
}

// Split returns the journal's write and read handles. Both may be used
// concurrently; they share one lock-guarded liveness index.
func (j *CompactingJournal) Split() (WritableJournal, ReadableJournal) {
	return j.tx, j.rx
}

// Compact forwards to the write handle; see CompactingTx.Compact.
func (j *CompactingJournal) Compact(target Journal) (CompactResult, error) {
	return j.tx.Compact(target)
}

package journal

import "sync"

// bufferShared is the entry store jointly owned by every handle split or
// restarted off one BufferedJournal.
type bufferShared struct {
	mu      sync.RWMutex
	entries []Entry
}

func (s *bufferShared) append(e Entry) {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
}

func (s *bufferShared) at(i int) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i >= len(s.entries) {
		return nil, false
	}
	return s.entries[i], true
}

// BufferedJournal is an in-memory journal. It is the default compaction
// target in tests and a building block for composing journal adapters.
type BufferedJournal struct {
	shared *bufferShared
	cursor *bufferCursor
}

// NewBuffered creates an empty in-memory journal.
func NewBuffered() *BufferedJournal {
	shared := &bufferShared{}
	return &BufferedJournal{shared: shared, cursor: &bufferCursor{shared: shared}}
}

// Write appends the entry. The reported size is that of the entry's binary
// encoding, matching what a persistent backend would store.
func (j *BufferedJournal) Write(e Entry) (WriteResult, error) {
	n := len(AppendEntry(nil, e))
	j.shared.append(e)
	return WriteResult{Bytes: n}, nil
}

// Flush is a no-op; entries are visible as soon as Write returns.
func (j *BufferedJournal) Flush() error { return nil }

// Read advances the journal's own cursor.
func (j *BufferedJournal) Read() (Entry, error) { return j.cursor.Read() }

// Restarted returns a fresh cursor at the start of the buffer.
func (j *BufferedJournal) Restarted() (ReadableJournal, error) {
	return &bufferCursor{shared: j.shared}, nil
}

// Split returns a writer and an independent reader over the same buffer.
func (j *BufferedJournal) Split() (WritableJournal, ReadableJournal) {
	return &bufferWriter{shared: j.shared}, &bufferCursor{shared: j.shared}
}

type bufferWriter struct {
	shared *bufferShared
}

func (w *bufferWriter) Write(e Entry) (WriteResult, error) {
	n := len(AppendEntry(nil, e))
	w.shared.append(e)
	return WriteResult{Bytes: n}, nil
}

func (w *bufferWriter) Flush() error { return nil }

type bufferCursor struct {
	shared *bufferShared
	mu     sync.Mutex
	pos    int
}

func (c *bufferCursor) Read() (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.shared.at(c.pos)
	if !ok {
		return nil, nil
	}
	c.pos++
	return e, nil
}

func (c *bufferCursor) Restarted() (ReadableJournal, error) {
	return &bufferCursor{shared: c.shared}, nil
}

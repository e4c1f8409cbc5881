package journal

import "errors"

// Sentinel errors shared by the journal backends.
var (
	// ErrClosed is returned by operations on a journal after Close.
	ErrClosed = errors.New("journal: closed")
	// ErrCorruptRecord is returned when a stored record fails its checksum
	// or cannot be decoded.
	ErrCorruptRecord = errors.New("journal: corrupt record")
)

// WriteResult reports what a Write persisted. Bytes is the size of the
// stored record, or 0 when a filtering adapter dropped the entry.
type WriteResult struct {
	Bytes int
}

// WritableJournal is the append half of a journal. Once Write returns, the
// entry is visible to any cursor that reads up to or past its position.
type WritableJournal interface {
	Write(e Entry) (WriteResult, error)
	// Flush pushes buffered records to the backing store. A no-op for
	// backends that persist on every Write.
	Flush() error
}

// ReadableJournal is a position-tracking cursor over a journal. Read returns
// the next entry, or (nil, nil) once the cursor has drained everything
// visible in the log; appends made after that may be observed by further
// Read calls. Restarted produces a brand-new independent cursor positioned
// at the start of the log.
type ReadableJournal interface {
	Read() (Entry, error)
	Restarted() (ReadableJournal, error)
}

// Journal is the minimal capability a storage backend must provide: append,
// sequential read, restart, and split into independent halves. Journals
// compose; adapters such as the filtered and compacting journals wrap any
// other Journal.
type Journal interface {
	WritableJournal
	ReadableJournal
	// Split divides the journal into a write-capable and a read-capable
	// handle. Both may be used concurrently with each other.
	Split() (WritableJournal, ReadableJournal)
}

// recombined glues an independent write half and read half back into a
// full Journal.
type recombined struct {
	tx WritableJournal
	rx ReadableJournal
}

// Recombine assembles a Journal from a writer/reader pair, typically the
// halves produced by an earlier Split.
func Recombine(tx WritableJournal, rx ReadableJournal) Journal {
	return &recombined{tx: tx, rx: rx}
}

func (r *recombined) Write(e Entry) (WriteResult, error) { return r.tx.Write(e) }
func (r *recombined) Flush() error                       { return r.tx.Flush() }
func (r *recombined) Read() (Entry, error)               { return r.rx.Read() }

func (r *recombined) Restarted() (ReadableJournal, error) { return r.rx.Restarted() }

func (r *recombined) Split() (WritableJournal, ReadableJournal) { return r.tx, r.rx }

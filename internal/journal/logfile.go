package journal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Log file layout:
//
//	header (32 bytes): magic "WRNJRNL1" | version | flags | reserved[6] | uuid[16]
//	records:           uvarint len | record
//
// A record is the framed entry encoding (EncodeRecord), optionally
// zstd-compressed per record when the compression flag bit is set. Torn
// tails left by a crash are truncated on open.

const (
	logFileHeaderSize = 32
	logFileVersion    = 1

	logFileFlagCompressed = 1 << 0

	// maxRecordSize bounds a single record so a corrupt length prefix
	// cannot trigger a huge allocation.
	maxRecordSize = 64 << 20
)

var logFileMagic = [8]byte{'W', 'R', 'N', 'J', 'R', 'N', 'L', '1'}

// LogFileOptions configures OpenLogFile.
type LogFileOptions struct {
	// Path of the journal file; created when absent.
	Path string
	// Compression enables per-record zstd for newly created files. For an
	// existing file the header flag wins.
	Compression bool
	// Fsync forces a file sync on every Write. When false, durability is
	// deferred to Flush.
	Fsync bool
}

type logFileShared struct {
	mu       sync.Mutex
	f        *os.File
	size     int64 // end of committed data
	compress bool
	fsync    bool
	closed   bool
	id       uuid.UUID

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// LogFileJournal is a single-file, append-only journal.
type LogFileJournal struct {
	shared *logFileShared
	cursor *logFileCursor
}

// OpenLogFile opens or creates a file-backed journal. Opening an existing
// file validates the header, adopts its compression flag, and truncates any
// torn record at the tail.
func OpenLogFile(opts LogFileOptions) (*LogFileJournal, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o750); err != nil {
		return nil, fmt.Errorf("journal: create log dir: %w", err)
	}
	f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("journal: open log file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("journal: stat log file: %w", err)
	}

	s := &logFileShared{f: f, fsync: opts.Fsync}
	if st.Size() == 0 {
		s.compress = opts.Compression
		s.id = uuid.New()
		if err := s.writeHeader(); err != nil {
			_ = f.Close()
			return nil, err
		}
		s.size = logFileHeaderSize
	} else {
		if err := s.readHeader(); err != nil {
			_ = f.Close()
			return nil, err
		}
		end, err := s.scanTail(st.Size())
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if end < st.Size() {
			if err := f.Truncate(end); err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("journal: truncate torn tail: %w", err)
			}
		}
		s.size = end
	}

	if s.compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("journal: init zstd encoder: %w", err)
		}
		s.enc = enc
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("journal: init zstd decoder: %w", err)
	}
	s.dec = dec

	return &LogFileJournal{shared: s, cursor: &logFileCursor{shared: s, off: logFileHeaderSize}}, nil
}

func (s *logFileShared) writeHeader() error {
	var h [logFileHeaderSize]byte
	copy(h[:8], logFileMagic[:])
	h[8] = logFileVersion
	if s.compress {
		h[9] |= logFileFlagCompressed
	}
	copy(h[16:], s.id[:])
	if _, err := s.f.WriteAt(h[:], 0); err != nil {
		return fmt.Errorf("journal: write log header: %w", err)
	}
	return nil
}

func (s *logFileShared) readHeader() error {
	var h [logFileHeaderSize]byte
	if _, err := io.ReadFull(io.NewSectionReader(s.f, 0, logFileHeaderSize), h[:]); err != nil {
		return fmt.Errorf("%w: short log header", ErrCorruptRecord)
	}
	if [8]byte(h[:8]) != logFileMagic {
		return fmt.Errorf("%w: bad log magic", ErrCorruptRecord)
	}
	if h[8] != logFileVersion {
		return fmt.Errorf("journal: unsupported log version %d", h[8])
	}
	s.compress = h[9]&logFileFlagCompressed != 0
	copy(s.id[:], h[16:])
	return nil
}

// scanTail walks the record stream validating frames and checksums, and
// returns the offset of the last fully committed record.
func (s *logFileShared) scanTail(fileSize int64) (int64, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return 0, fmt.Errorf("journal: init zstd decoder: %w", err)
	}
	defer dec.Close()

	off := int64(logFileHeaderSize)
	for off < fileSize {
		raw, next, err := readFrame(s.f, off, fileSize)
		if err != nil {
			return off, nil // torn or corrupt tail, cut here
		}
		if s.compress {
			raw, err = dec.DecodeAll(raw, nil)
			if err != nil {
				return off, nil
			}
		}
		if _, err := DecodeRecord(raw); err != nil {
			return off, nil
		}
		off = next
	}
	return off, nil
}

// readFrame reads one length-prefixed frame at off, returning the payload
// and the offset just past the frame.
func readFrame(f *os.File, off, limit int64) ([]byte, int64, error) {
	var lenBuf [binary.MaxVarintLen64]byte
	n := int64(len(lenBuf))
	if limit-off < n {
		n = limit - off
	}
	if n <= 0 {
		return nil, 0, io.EOF
	}
	if _, err := f.ReadAt(lenBuf[:n], off); err != nil && err != io.EOF {
		return nil, 0, err
	}
	recLen, used := binary.Uvarint(lenBuf[:n])
	if used <= 0 || recLen == 0 || recLen > maxRecordSize {
		return nil, 0, fmt.Errorf("%w: bad frame length", ErrCorruptRecord)
	}
	start := off + int64(used)
	if start+int64(recLen) > limit {
		return nil, 0, io.ErrUnexpectedEOF
	}
	raw := make([]byte, recLen)
	if _, err := f.ReadAt(raw, start); err != nil {
		return nil, 0, err
	}
	return raw, start + int64(recLen), nil
}

// ID returns the journal's identity recorded in the file header.
func (j *LogFileJournal) ID() uuid.UUID { return j.shared.id }

// Write frames and appends one entry, syncing when the journal was opened
// with Fsync.
func (j *LogFileJournal) Write(e Entry) (WriteResult, error) { return j.shared.write(e) }

func (s *logFileShared) write(e Entry) (WriteResult, error) {
	rec := EncodeRecord(e)
	stored := len(rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return WriteResult{}, ErrClosed
	}
	if s.compress {
		rec = s.enc.EncodeAll(rec, nil)
	}
	frame := binary.AppendUvarint(nil, uint64(len(rec)))
	frame = append(frame, rec...)
	if _, err := s.f.WriteAt(frame, s.size); err != nil {
		return WriteResult{}, fmt.Errorf("journal: append record: %w", err)
	}
	if s.fsync {
		if err := s.f.Sync(); err != nil {
			return WriteResult{}, fmt.Errorf("journal: sync log: %w", err)
		}
	}
	s.size += int64(len(frame))
	return WriteResult{Bytes: stored}, nil
}

// Flush syncs the file.
func (j *LogFileJournal) Flush() error { return j.shared.flush() }

func (s *logFileShared) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.f.Sync()
}

// Read advances the journal's own cursor.
func (j *LogFileJournal) Read() (Entry, error) { return j.cursor.Read() }

// Restarted returns a fresh cursor at the first record.
func (j *LogFileJournal) Restarted() (ReadableJournal, error) {
	return &logFileCursor{shared: j.shared, off: logFileHeaderSize}, nil
}

// Split returns a writer handle and an independent cursor.
func (j *LogFileJournal) Split() (WritableJournal, ReadableJournal) {
	return &logFileWriter{shared: j.shared}, &logFileCursor{shared: j.shared, off: logFileHeaderSize}
}

// Close releases the file. Outstanding handles fail with ErrClosed.
func (j *LogFileJournal) Close() error {
	s := j.shared
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.enc != nil {
		_ = s.enc.Close()
	}
	s.dec.Close()
	return s.f.Close()
}

type logFileWriter struct {
	shared *logFileShared
}

func (w *logFileWriter) Write(e Entry) (WriteResult, error) { return w.shared.write(e) }
func (w *logFileWriter) Flush() error                       { return w.shared.flush() }

// logFileCursor reads frames by absolute offset (pread), so cursors never
// disturb each other or the appender.
type logFileCursor struct {
	shared *logFileShared
	mu     sync.Mutex
	off    int64
}

func (c *logFileCursor) Read() (Entry, error) {
	s := c.shared

	c.mu.Lock()
	defer c.mu.Unlock()

	s.mu.Lock()
	limit, closed := s.size, s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if c.off >= limit {
		return nil, nil
	}

	raw, next, err := readFrame(s.f, c.off, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: read record at %d: %w", c.off, err)
	}
	if s.compress {
		raw, err = s.dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd at %d: %v", ErrCorruptRecord, c.off, err)
		}
	}
	e, err := DecodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("journal: record at %d: %w", c.off, err)
	}
	c.off = next
	return e, nil
}

func (c *logFileCursor) Restarted() (ReadableJournal, error) {
	return &logFileCursor{shared: c.shared, off: logFileHeaderSize}, nil
}

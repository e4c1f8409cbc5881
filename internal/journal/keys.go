package journal

import "encoding/binary"

// Keyspace helpers for Pebble-backed journals.
//
// Layout (byte-wise, lexicographically sortable):
// - j/{name}/m            (journal metadata: lastSeq)
// - j/{name}/e/{seq_be8}  (framed entry records)

var (
	journalPrefix = []byte("j/")
	metaSuffix    = []byte("/m")
	entrySeg      = []byte("/e/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// keyJournalMeta builds the journal metadata key.
func keyJournalMeta(name string) []byte {
	k := make([]byte, 0, len(name)+8)
	k = append(k, journalPrefix...)
	k = append(k, name...)
	k = append(k, metaSuffix...)
	return k
}

// keyJournalEntry builds the entry key with a big-endian sequence so keys
// sort in append order.
func keyJournalEntry(name string, seq uint64) []byte {
	k := make([]byte, 0, len(name)+16)
	k = append(k, journalPrefix...)
	k = append(k, name...)
	k = append(k, entrySeg...)
	k = appendBE8(k, seq)
	return k
}

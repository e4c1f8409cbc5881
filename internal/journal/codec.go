package journal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Binary entry encoding: kind byte, then kind-specific fields using uvarints
// and length-prefixed byte strings. Persistent backends frame the encoding
// as: encoding | crc32c(encoding), mirroring the record layout used by the
// rest of the runtime's stores.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// AppendEntry appends the binary encoding of e to dst and returns the
// extended slice.
func AppendEntry(dst []byte, e Entry) []byte {
	switch v := e.(type) {
	case UpdateMemoryRegion:
		dst = append(dst, byte(KindUpdateMemoryRegion))
		dst = appendUvarint(dst, v.Region.Start)
		dst = appendUvarint(dst, v.Region.End)
		dst = appendBytes(dst, v.Data)
	case SetThread:
		dst = append(dst, byte(KindSetThread))
		dst = appendUvarint(dst, uint64(v.ID))
		dst = appendBytes(dst, v.CallStack)
		dst = appendBytes(dst, v.MemoryStack)
		dst = appendBytes(dst, v.StoreData)
		dst = appendBool(dst, v.Is64bit)
	case CloseThread:
		dst = append(dst, byte(KindCloseThread))
		dst = appendUvarint(dst, uint64(v.ID))
		dst = appendExitCode(dst, v.ExitCode)
	case ProcessExit:
		dst = append(dst, byte(KindProcessExit))
		dst = appendExitCode(dst, v.ExitCode)
	case Snapshot:
		dst = append(dst, byte(KindSnapshot))
		dst = appendUvarint(dst, uint64(v.WhenMs))
		dst = appendBytes(dst, []byte(v.Trigger))
	case OpenFileDescriptor:
		dst = append(dst, byte(KindOpenFileDescriptor))
		dst = appendUvarint(dst, uint64(v.Fd))
		dst = appendUvarint(dst, uint64(v.DirFd))
		dst = appendUvarint(dst, uint64(v.DirFlags))
		dst = appendBytes(dst, []byte(v.Path))
		dst = appendUvarint(dst, uint64(v.OpenFlags))
		dst = appendUvarint(dst, v.RightsBase)
		dst = appendUvarint(dst, v.RightsInheriting)
		dst = appendUvarint(dst, uint64(v.FdFlags))
	case CloseFileDescriptor:
		dst = append(dst, byte(KindCloseFileDescriptor))
		dst = appendUvarint(dst, uint64(v.Fd))
	case FileDescriptorSeek:
		dst = append(dst, byte(KindFileDescriptorSeek))
		dst = appendUvarint(dst, uint64(v.Fd))
		dst = appendVarint(dst, v.Offset)
		dst = append(dst, byte(v.Whence))
	case FileDescriptorWrite:
		dst = append(dst, byte(KindFileDescriptorWrite))
		dst = appendUvarint(dst, uint64(v.Fd))
		dst = appendUvarint(dst, v.Offset)
		dst = appendBytes(dst, v.Data)
	case FileDescriptorAdvise:
		dst = append(dst, byte(KindFileDescriptorAdvise))
		dst = appendUvarint(dst, uint64(v.Fd))
		dst = appendUvarint(dst, v.Offset)
		dst = appendUvarint(dst, v.Len)
		dst = append(dst, v.Advice)
	case FileDescriptorAllocate:
		dst = append(dst, byte(KindFileDescriptorAllocate))
		dst = appendUvarint(dst, uint64(v.Fd))
		dst = appendUvarint(dst, v.Offset)
		dst = appendUvarint(dst, v.Len)
	case FileDescriptorSetFlags:
		dst = append(dst, byte(KindFileDescriptorSetFlags))
		dst = appendUvarint(dst, uint64(v.Fd))
		dst = appendUvarint(dst, uint64(v.Flags))
	case FileDescriptorSetTimes:
		dst = append(dst, byte(KindFileDescriptorSetTimes))
		dst = appendUvarint(dst, uint64(v.Fd))
		dst = appendUvarint(dst, v.Atime)
		dst = appendUvarint(dst, v.Mtime)
		dst = appendUvarint(dst, uint64(v.Flags))
	case DuplicateFileDescriptor:
		dst = append(dst, byte(KindDuplicateFileDescriptor))
		dst = appendUvarint(dst, uint64(v.OriginalFd))
		dst = appendUvarint(dst, uint64(v.CopiedFd))
	case RenumberFileDescriptor:
		dst = append(dst, byte(KindRenumberFileDescriptor))
		dst = appendUvarint(dst, uint64(v.OldFd))
		dst = appendUvarint(dst, uint64(v.NewFd))
	case CreateDirectory:
		dst = append(dst, byte(KindCreateDirectory))
		dst = appendUvarint(dst, uint64(v.Fd))
		dst = appendBytes(dst, []byte(v.Path))
	case RemoveDirectory:
		dst = append(dst, byte(KindRemoveDirectory))
		dst = appendUvarint(dst, uint64(v.Fd))
		dst = appendBytes(dst, []byte(v.Path))
	case Opaque:
		// Opaque re-emits the original kind byte so unrecognized records
		// survive a rewrite byte-identical.
		dst = append(dst, v.Tag)
		dst = append(dst, v.Data...)
	default:
		panic(fmt.Sprintf("journal: unencodable entry type %T", e))
	}
	return dst
}

// DecodeEntry decodes a single entry from its binary encoding. Kinds not
// known to this build decode as Opaque.
func DecodeEntry(b []byte) (Entry, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrCorruptRecord)
	}
	kind := Kind(b[0])
	r := &byteReader{b: b[1:]}
	var e Entry
	switch kind {
	case KindUpdateMemoryRegion:
		e = UpdateMemoryRegion{
			Region: ByteRange{Start: r.uvarint(), End: r.uvarint()},
			Data:   r.bytes(),
		}
	case KindSetThread:
		e = SetThread{
			ID:          uint32(r.uvarint()),
			CallStack:   r.bytes(),
			MemoryStack: r.bytes(),
			StoreData:   r.bytes(),
			Is64bit:     r.bool(),
		}
	case KindCloseThread:
		e = CloseThread{ID: uint32(r.uvarint()), ExitCode: r.exitCode()}
	case KindProcessExit:
		e = ProcessExit{ExitCode: r.exitCode()}
	case KindSnapshot:
		e = Snapshot{WhenMs: int64(r.uvarint()), Trigger: string(r.bytes())}
	case KindOpenFileDescriptor:
		e = OpenFileDescriptor{
			Fd:               Fd(r.uvarint()),
			DirFd:            Fd(r.uvarint()),
			DirFlags:         uint32(r.uvarint()),
			Path:             string(r.bytes()),
			OpenFlags:        uint32(r.uvarint()),
			RightsBase:       r.uvarint(),
			RightsInheriting: r.uvarint(),
			FdFlags:          uint16(r.uvarint()),
		}
	case KindCloseFileDescriptor:
		e = CloseFileDescriptor{Fd: Fd(r.uvarint())}
	case KindFileDescriptorSeek:
		e = FileDescriptorSeek{Fd: Fd(r.uvarint()), Offset: r.varint(), Whence: Whence(r.byte())}
	case KindFileDescriptorWrite:
		e = FileDescriptorWrite{Fd: Fd(r.uvarint()), Offset: r.uvarint(), Data: r.bytes()}
	case KindFileDescriptorAdvise:
		e = FileDescriptorAdvise{Fd: Fd(r.uvarint()), Offset: r.uvarint(), Len: r.uvarint(), Advice: r.byte()}
	case KindFileDescriptorAllocate:
		e = FileDescriptorAllocate{Fd: Fd(r.uvarint()), Offset: r.uvarint(), Len: r.uvarint()}
	case KindFileDescriptorSetFlags:
		e = FileDescriptorSetFlags{Fd: Fd(r.uvarint()), Flags: uint16(r.uvarint())}
	case KindFileDescriptorSetTimes:
		e = FileDescriptorSetTimes{Fd: Fd(r.uvarint()), Atime: r.uvarint(), Mtime: r.uvarint(), Flags: uint16(r.uvarint())}
	case KindDuplicateFileDescriptor:
		e = DuplicateFileDescriptor{OriginalFd: Fd(r.uvarint()), CopiedFd: Fd(r.uvarint())}
	case KindRenumberFileDescriptor:
		e = RenumberFileDescriptor{OldFd: Fd(r.uvarint()), NewFd: Fd(r.uvarint())}
	case KindCreateDirectory:
		e = CreateDirectory{Fd: Fd(r.uvarint()), Path: string(r.bytes())}
	case KindRemoveDirectory:
		e = RemoveDirectory{Fd: Fd(r.uvarint()), Path: string(r.bytes())}
	default:
		return Opaque{Tag: b[0], Data: append([]byte(nil), b[1:]...)}, nil
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: %s record: %v", ErrCorruptRecord, kind, r.err)
	}
	return e, nil
}

// EncodeRecord produces the framed form stored by persistent backends:
// entry encoding followed by crc32c of the encoding.
func EncodeRecord(e Entry) []byte {
	enc := AppendEntry(nil, e)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc32.Checksum(enc, castagnoli))
	return append(enc, crcb[:]...)
}

// DecodeRecord verifies the trailing crc32c and decodes the entry.
func DecodeRecord(b []byte) (Entry, error) {
	if len(b) < 5 {
		return nil, fmt.Errorf("%w: record too short", ErrCorruptRecord)
	}
	enc, crcb := b[:len(b)-4], b[len(b)-4:]
	if crc32.Checksum(enc, castagnoli) != binary.BigEndian.Uint32(crcb) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptRecord)
	}
	return DecodeEntry(enc)
}

func appendUvarint(dst []byte, v uint64) []byte {
	return binary.AppendUvarint(dst, v)
}

func appendVarint(dst []byte, v int64) []byte {
	return binary.AppendVarint(dst, v)
}

func appendBytes(dst, b []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}

func appendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}

func appendExitCode(dst []byte, code *int32) []byte {
	if code == nil {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	return binary.AppendVarint(dst, int64(*code))
}

// byteReader is a tiny sticky-error decoder over an entry payload.
type byteReader struct {
	b   []byte
	pos int
	err error
}

func (r *byteReader) fail() {
	if r.err == nil {
		r.err = fmt.Errorf("truncated at offset %d", r.pos)
	}
}

func (r *byteReader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.b[r.pos:])
	if n <= 0 {
		r.fail()
		return 0
	}
	r.pos += n
	return v
}

func (r *byteReader) varint() int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.b[r.pos:])
	if n <= 0 {
		r.fail()
		return 0
	}
	r.pos += n
	return v
}

func (r *byteReader) byte() uint8 {
	if r.err != nil {
		return 0
	}
	if r.pos >= len(r.b) {
		r.fail()
		return 0
	}
	v := r.b[r.pos]
	r.pos++
	return v
}

func (r *byteReader) bool() bool { return r.byte() != 0 }

func (r *byteReader) bytes() []byte {
	n := r.uvarint()
	if r.err != nil {
		return nil
	}
	if uint64(len(r.b)-r.pos) < n {
		r.fail()
		return nil
	}
	out := append([]byte(nil), r.b[r.pos:r.pos+int(n)]...)
	r.pos += int(n)
	return out
}

func (r *byteReader) exitCode() *int32 {
	if r.byte() == 0 {
		return nil
	}
	v := int32(r.varint())
	if r.err != nil {
		return nil
	}
	return &v
}

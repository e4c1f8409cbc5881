package journal

// Fd identifies a guest file descriptor.
type Fd = uint32

// ByteRange addresses a half-open [Start, End) span of guest memory or of a
// file. It is used as an exact-match map key: two ranges are the same dedup
// slot only when both bounds are equal. Overlap and containment do not merge.
type ByteRange struct {
	Start uint64
	End   uint64
}

// Kind tags an Entry variant.
type Kind uint8

const (
	KindUpdateMemoryRegion Kind = iota + 1
	KindSetThread
	KindCloseThread
	KindProcessExit
	KindSnapshot
	KindOpenFileDescriptor
	KindCloseFileDescriptor
	KindFileDescriptorSeek
	KindFileDescriptorWrite
	KindFileDescriptorAdvise
	KindFileDescriptorAllocate
	KindFileDescriptorSetFlags
	KindFileDescriptorSetTimes
	KindDuplicateFileDescriptor
	KindRenumberFileDescriptor
	KindCreateDirectory
	KindRemoveDirectory
	KindOpaque
)

// String returns the wire-stable name of the kind, used by the CLI and the
// CEL inspection filter.
func (k Kind) String() string {
	switch k {
	case KindUpdateMemoryRegion:
		return "update-memory-region"
	case KindSetThread:
		return "set-thread"
	case KindCloseThread:
		return "close-thread"
	case KindProcessExit:
		return "process-exit"
	case KindSnapshot:
		return "snapshot"
	case KindOpenFileDescriptor:
		return "open-fd"
	case KindCloseFileDescriptor:
		return "close-fd"
	case KindFileDescriptorSeek:
		return "fd-seek"
	case KindFileDescriptorWrite:
		return "fd-write"
	case KindFileDescriptorAdvise:
		return "fd-advise"
	case KindFileDescriptorAllocate:
		return "fd-allocate"
	case KindFileDescriptorSetFlags:
		return "fd-set-flags"
	case KindFileDescriptorSetTimes:
		return "fd-set-times"
	case KindDuplicateFileDescriptor:
		return "fd-duplicate"
	case KindRenumberFileDescriptor:
		return "fd-renumber"
	case KindCreateDirectory:
		return "create-directory"
	case KindRemoveDirectory:
		return "remove-directory"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Open flags carried by OpenFileDescriptor entries.
const (
	OpenFlagCreate    uint32 = 1 << 0
	OpenFlagDirectory uint32 = 1 << 1
	OpenFlagExclusive uint32 = 1 << 2
	OpenFlagTruncate  uint32 = 1 << 3
)

// Whence selects the origin of a seek.
type Whence uint8

const (
	WhenceSet Whence = iota
	WhenceCur
	WhenceEnd
)

// Entry is one immutable guest effect recorded in a journal. The set of
// variants is closed within a build but extendable across builds: kinds this
// build does not recognize round-trip as Opaque and are always significant.
type Entry interface {
	Kind() Kind
}

// UpdateMemoryRegion records a mutation of guest memory.
type UpdateMemoryRegion struct {
	Region ByteRange
	Data   []byte
}

// SetThread records the full state of one guest thread.
type SetThread struct {
	ID          uint32
	CallStack   []byte
	MemoryStack []byte
	StoreData   []byte
	Is64bit     bool
}

// CloseThread records a guest thread exiting.
type CloseThread struct {
	ID       uint32
	ExitCode *int32
}

// ProcessExit records the guest process terminating.
type ProcessExit struct {
	ExitCode *int32
}

// Snapshot marks a point the guest can be resumed from.
type Snapshot struct {
	WhenMs  int64
	Trigger string
}

// OpenFileDescriptor records a descriptor coming into existence.
type OpenFileDescriptor struct {
	Fd               Fd
	DirFd            Fd
	DirFlags         uint32
	Path             string
	OpenFlags        uint32
	RightsBase       uint64
	RightsInheriting uint64
	FdFlags          uint16
}

// CloseFileDescriptor records a descriptor being closed.
type CloseFileDescriptor struct {
	Fd Fd
}

// FileDescriptorSeek records a cursor move on a descriptor.
type FileDescriptorSeek struct {
	Fd     Fd
	Offset int64
	Whence Whence
}

// FileDescriptorWrite records bytes written through a descriptor.
type FileDescriptorWrite struct {
	Fd     Fd
	Offset uint64
	Data   []byte
}

// FileDescriptorAdvise records an access-pattern hint.
type FileDescriptorAdvise struct {
	Fd     Fd
	Offset uint64
	Len    uint64
	Advice uint8
}

// FileDescriptorAllocate records space reservation on a descriptor.
type FileDescriptorAllocate struct {
	Fd     Fd
	Offset uint64
	Len    uint64
}

// FileDescriptorSetFlags records a descriptor flags change.
type FileDescriptorSetFlags struct {
	Fd    Fd
	Flags uint16
}

// FileDescriptorSetTimes records a timestamps change on a descriptor.
type FileDescriptorSetTimes struct {
	Fd    Fd
	Atime uint64
	Mtime uint64
	Flags uint16
}

// DuplicateFileDescriptor records a dup of OriginalFd as CopiedFd.
type DuplicateFileDescriptor struct {
	OriginalFd Fd
	CopiedFd   Fd
}

// RenumberFileDescriptor records OldFd being renumbered to NewFd.
type RenumberFileDescriptor struct {
	OldFd Fd
	NewFd Fd
}

// CreateDirectory records a directory being created.
type CreateDirectory struct {
	Fd   Fd
	Path string
}

// RemoveDirectory records a directory being removed.
type RemoveDirectory struct {
	Fd   Fd
	Path string
}

// Opaque carries an entry kind this build does not recognize. Tag preserves
// the original kind byte so the record survives re-encoding intact.
type Opaque struct {
	Tag  uint8
	Data []byte
}

func (UpdateMemoryRegion) Kind() Kind      { return KindUpdateMemoryRegion }
func (SetThread) Kind() Kind               { return KindSetThread }
func (CloseThread) Kind() Kind             { return KindCloseThread }
func (ProcessExit) Kind() Kind             { return KindProcessExit }
func (Snapshot) Kind() Kind                { return KindSnapshot }
func (OpenFileDescriptor) Kind() Kind      { return KindOpenFileDescriptor }
func (CloseFileDescriptor) Kind() Kind     { return KindCloseFileDescriptor }
func (FileDescriptorSeek) Kind() Kind      { return KindFileDescriptorSeek }
func (FileDescriptorWrite) Kind() Kind     { return KindFileDescriptorWrite }
func (FileDescriptorAdvise) Kind() Kind    { return KindFileDescriptorAdvise }
func (FileDescriptorAllocate) Kind() Kind  { return KindFileDescriptorAllocate }
func (FileDescriptorSetFlags) Kind() Kind  { return KindFileDescriptorSetFlags }
func (FileDescriptorSetTimes) Kind() Kind  { return KindFileDescriptorSetTimes }
func (DuplicateFileDescriptor) Kind() Kind { return KindDuplicateFileDescriptor }
func (RenumberFileDescriptor) Kind() Kind  { return KindRenumberFileDescriptor }
func (CreateDirectory) Kind() Kind         { return KindCreateDirectory }
func (RemoveDirectory) Kind() Kind         { return KindRemoveDirectory }
func (Opaque) Kind() Kind                  { return KindOpaque }

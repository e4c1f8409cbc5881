package journal

import (
	"strings"

	"github.com/google/cel-go/cel"
)

// CELFilter wraps a compiled CEL program used by offline tooling to select
// entries while inspecting or exporting a journal. When disabled (empty
// expression), Eval always returns true.
type CELFilter struct {
	prog    cel.Program
	enabled bool
}

// NewCELFilter compiles expr against the entry inspection environment.
func NewCELFilter(expr string) (CELFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return CELFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("index", cel.IntType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("fd", cel.IntType),
		cel.Variable("thread_id", cel.IntType),
		cel.Variable("path", cel.StringType),
		cel.Variable("size", cel.IntType),
	)
	if err != nil {
		return CELFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return CELFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return CELFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return CELFilter{}, err
	}
	return CELFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the expression against one entry. When disabled, returns
// true. Evaluation errors drop the entry.
func (f CELFilter) Eval(index uint64, e Entry) bool {
	if !f.enabled {
		return true
	}
	var fd Fd
	var threadID uint32
	var path string
	var size int
	switch v := e.(type) {
	case UpdateMemoryRegion:
		size = len(v.Data)
	case SetThread:
		threadID = v.ID
		size = len(v.CallStack) + len(v.MemoryStack) + len(v.StoreData)
	case CloseThread:
		threadID = v.ID
	case OpenFileDescriptor:
		fd, path = v.Fd, v.Path
	case CloseFileDescriptor:
		fd = v.Fd
	case FileDescriptorSeek:
		fd = v.Fd
	case FileDescriptorWrite:
		fd, size = v.Fd, len(v.Data)
	case FileDescriptorAdvise:
		fd = v.Fd
	case FileDescriptorAllocate:
		fd = v.Fd
	case FileDescriptorSetFlags:
		fd = v.Fd
	case FileDescriptorSetTimes:
		fd = v.Fd
	case DuplicateFileDescriptor:
		fd = v.OriginalFd
	case RenumberFileDescriptor:
		fd = v.OldFd
	case CreateDirectory:
		fd, path = v.Fd, v.Path
	case RemoveDirectory:
		fd, path = v.Fd, v.Path
	case Opaque:
		size = len(v.Data)
	}
	out, _, err := f.prog.Eval(map[string]any{
		"index":     int64(index),
		"kind":      e.Kind().String(),
		"fd":        int64(fd),
		"thread_id": int64(threadID),
		"path":      path,
		"size":      int64(size),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

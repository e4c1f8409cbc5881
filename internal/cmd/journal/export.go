package journalcmd

import (
	"encoding/base64"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/rzbill/warren/internal/journal"
)

// newExportCommand constructs the `journal export` subcommand, emitting one
// JSON object per entry (NDJSON) on stdout.
func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export a journal file as NDJSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, _ := cmd.Flags().GetString("filter")
			filter, err := journal.NewCELFilter(expr)
			if err != nil {
				return err
			}

			j, err := journal.OpenLogFile(journal.LogFileOptions{Path: args[0]})
			if err != nil {
				return err
			}
			defer j.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			var index uint64
			for {
				e, err := j.Read()
				if err != nil {
					return err
				}
				if e == nil {
					return nil
				}
				if filter.Eval(index, e) {
					if err := enc.Encode(entryObject(index, e)); err != nil {
						return err
					}
				}
				index++
			}
		},
	}
	cmd.Flags().String("filter", "", "CEL expression over index, kind, fd, thread_id, path, size")
	return cmd
}

// entryObject flattens an entry into a JSON-friendly map. Byte payloads are
// base64 to keep lines valid UTF-8.
func entryObject(index uint64, e journal.Entry) map[string]any {
	obj := map[string]any{"index": index, "kind": e.Kind().String()}
	b64 := base64.StdEncoding.EncodeToString
	switch v := e.(type) {
	case journal.UpdateMemoryRegion:
		obj["start"], obj["end"], obj["data"] = v.Region.Start, v.Region.End, b64(v.Data)
	case journal.SetThread:
		obj["id"], obj["is_64bit"] = v.ID, v.Is64bit
		obj["call_stack"], obj["memory_stack"], obj["store_data"] = b64(v.CallStack), b64(v.MemoryStack), b64(v.StoreData)
	case journal.CloseThread:
		obj["id"] = v.ID
		if v.ExitCode != nil {
			obj["exit_code"] = *v.ExitCode
		}
	case journal.ProcessExit:
		if v.ExitCode != nil {
			obj["exit_code"] = *v.ExitCode
		}
	case journal.Snapshot:
		obj["when_ms"], obj["trigger"] = v.WhenMs, v.Trigger
	case journal.OpenFileDescriptor:
		obj["fd"], obj["dir_fd"], obj["path"] = v.Fd, v.DirFd, v.Path
		obj["open_flags"], obj["fd_flags"] = v.OpenFlags, v.FdFlags
		obj["rights_base"], obj["rights_inheriting"] = v.RightsBase, v.RightsInheriting
	case journal.CloseFileDescriptor:
		obj["fd"] = v.Fd
	case journal.FileDescriptorSeek:
		obj["fd"], obj["offset"], obj["whence"] = v.Fd, v.Offset, v.Whence
	case journal.FileDescriptorWrite:
		obj["fd"], obj["offset"], obj["data"] = v.Fd, v.Offset, b64(v.Data)
	case journal.FileDescriptorAdvise:
		obj["fd"], obj["offset"], obj["len"], obj["advice"] = v.Fd, v.Offset, v.Len, v.Advice
	case journal.FileDescriptorAllocate:
		obj["fd"], obj["offset"], obj["len"] = v.Fd, v.Offset, v.Len
	case journal.FileDescriptorSetFlags:
		obj["fd"], obj["flags"] = v.Fd, v.Flags
	case journal.FileDescriptorSetTimes:
		obj["fd"], obj["atime"], obj["mtime"], obj["flags"] = v.Fd, v.Atime, v.Mtime, v.Flags
	case journal.DuplicateFileDescriptor:
		obj["original_fd"], obj["copied_fd"] = v.OriginalFd, v.CopiedFd
	case journal.RenumberFileDescriptor:
		obj["old_fd"], obj["new_fd"] = v.OldFd, v.NewFd
	case journal.CreateDirectory:
		obj["fd"], obj["path"] = v.Fd, v.Path
	case journal.RemoveDirectory:
		obj["fd"], obj["path"] = v.Fd, v.Path
	case journal.Opaque:
		obj["tag"], obj["data"] = v.Tag, b64(v.Data)
	}
	return obj
}

package journalcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzbill/warren/internal/journal"
)

// newInspectCommand constructs the `journal inspect` subcommand.
func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the entries of a journal file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")

			filter, err := journal.NewCELFilter(expr)
			if err != nil {
				return fmt.Errorf("compile filter: %w", err)
			}

			j, err := journal.OpenLogFile(journal.LogFileOptions{Path: args[0]})
			if err != nil {
				return err
			}
			defer j.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "journal %s\n", j.ID())
			printed := 0
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
					fmt.Fprintf(out, "%8d  %-20s %s\n", index, e.Kind(), describe(e))
					printed++
					if limit > 0 && printed >= limit {
						return nil
					}
				}
				index++
			}
		},
	}
	cmd.Flags().String("filter", "", "CEL expression over index, kind, fd, thread_id, path, size")
	cmd.Flags().Int("limit", 0, "stop after printing this many entries (0 = all)")
	return cmd
}

// describe renders the distinguishing fields of an entry on one line.
func describe(e journal.Entry) string {
	switch v := e.(type) {
	case journal.UpdateMemoryRegion:
		return fmt.Sprintf("region=%d..%d len=%d", v.Region.Start, v.Region.End, len(v.Data))
	case journal.SetThread:
		return fmt.Sprintf("id=%d stacks=%d/%d store=%d", v.ID, len(v.CallStack), len(v.MemoryStack), len(v.StoreData))
	case journal.CloseThread:
		return fmt.Sprintf("id=%d exit=%s", v.ID, exitCode(v.ExitCode))
	case journal.ProcessExit:
		return "exit=" + exitCode(v.ExitCode)
	case journal.Snapshot:
		return fmt.Sprintf("when_ms=%d trigger=%s", v.WhenMs, v.Trigger)
	case journal.OpenFileDescriptor:
		return fmt.Sprintf("fd=%d path=%s flags=%#x", v.Fd, v.Path, v.OpenFlags)
	case journal.CloseFileDescriptor:
		return fmt.Sprintf("fd=%d", v.Fd)
	case journal.FileDescriptorSeek:
		return fmt.Sprintf("fd=%d offset=%d whence=%d", v.Fd, v.Offset, v.Whence)
	case journal.FileDescriptorWrite:
		return fmt.Sprintf("fd=%d offset=%d len=%d", v.Fd, v.Offset, len(v.Data))
	case journal.FileDescriptorAdvise:
		return fmt.Sprintf("fd=%d offset=%d len=%d advice=%d", v.Fd, v.Offset, v.Len, v.Advice)
	case journal.FileDescriptorAllocate:
		return fmt.Sprintf("fd=%d offset=%d len=%d", v.Fd, v.Offset, v.Len)
	case journal.FileDescriptorSetFlags:
		return fmt.Sprintf("fd=%d flags=%#x", v.Fd, v.Flags)
	case journal.FileDescriptorSetTimes:
		return fmt.Sprintf("fd=%d atime=%d mtime=%d", v.Fd, v.Atime, v.Mtime)
	case journal.DuplicateFileDescriptor:
		return fmt.Sprintf("fd=%d copied=%d", v.OriginalFd, v.CopiedFd)
	case journal.RenumberFileDescriptor:
		return fmt.Sprintf("old=%d new=%d", v.OldFd, v.NewFd)
	case journal.CreateDirectory:
		return fmt.Sprintf("fd=%d path=%s", v.Fd, v.Path)
	case journal.RemoveDirectory:
		return fmt.Sprintf("fd=%d path=%s", v.Fd, v.Path)
	case journal.Opaque:
		return fmt.Sprintf("tag=%d len=%d", v.Tag, len(v.Data))
	default:
		return ""
	}
}

func exitCode(code *int32) string {
	if code == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *code)
}

package journalcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rzbill/warren/internal/config"
	"github.com/rzbill/warren/internal/journal"
	logpkg "github.com/rzbill/warren/pkg/log"
)

// newCompactCommand constructs the `journal compact` subcommand. It replays
// the source file through a compacting journal to rebuild the liveness
// index, then compacts into the destination file. The replay stages into a
// temporary file next to the destination, so memory stays flat no matter
// how large the source journal is.
func newCompactCommand(cfg config.Config, logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compact <src> <dst>",
		Short: "Rewrite a journal file into a smaller, replay-equivalent one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			compress, _ := cmd.Flags().GetBool("compress")

			src, err := journal.OpenLogFile(journal.LogFileOptions{Path: args[0]})
			if err != nil {
				return err
			}
			defer src.Close()

			stagingPath := args[1] + ".staging"
			// A leftover staging file from a crashed run must not seed
			// the index.
			_ = os.Remove(stagingPath)
			stagingFile, err := journal.OpenLogFile(journal.LogFileOptions{Path: stagingPath})
			if err != nil {
				return err
			}
			defer os.Remove(stagingPath)
			defer stagingFile.Close()

			staging, err := journal.NewCompacting(stagingFile)
			if err != nil {
				return err
			}
			replayed := 0
			for {
				e, err := src.Read()
				if err != nil {
					return err
				}
				if e == nil {
					break
				}
				if _, err := staging.Write(e); err != nil {
					return err
				}
				replayed++
			}

			dst, err := journal.OpenLogFile(journal.LogFileOptions{
				Path:        args[1],
				Compression: compress,
				Fsync:       cfg.Fsync == "always",
			})
			if err != nil {
				return err
			}
			defer dst.Close()

			res, err := staging.Compact(dst)
			if err != nil {
				return fmt.Errorf("compact: %w", err)
			}
			if err := dst.Flush(); err != nil {
				return err
			}
			logger.Info("journal compacted",
				logpkg.F("src", args[0]),
				logpkg.F("dst", args[1]),
				logpkg.F("replayed", replayed),
				logpkg.F("kept", res.Entries),
				logpkg.F("bytes", res.Bytes),
			)
			return nil
		},
	}
	cmd.Flags().Bool("compress", cfg.Compression, "zstd-compress records in the destination file")
	return cmd
}

// Package journalcmd contains Cobra CLI commands for offline journal
// tooling: inspecting, compacting, and exporting journal files.
package journalcmd

import (
	"github.com/spf13/cobra"

	"github.com/rzbill/warren/internal/config"
	logpkg "github.com/rzbill/warren/pkg/log"
)

// NewCommand constructs the `journal` command group.
func NewCommand(cfg config.Config, logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{Use: "journal", Short: "Journal operations"}
	cmd.AddCommand(
		newInspectCommand(),
		newCompactCommand(cfg, logger),
		newExportCommand(),
	)
	return cmd
}

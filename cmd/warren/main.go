package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	journalcmd "github.com/rzbill/warren/internal/cmd/journal"
	cfgpkg "github.com/rzbill/warren/internal/config"
	logpkg "github.com/rzbill/warren/pkg/log"
)

var version = "dev"

func main() {
	cfg := cfgpkg.Default()
	if path := os.Getenv("WARREN_CONFIG"); path != "" {
		loaded, err := cfgpkg.Load(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfgpkg.FromEnv(&cfg)

	level, err := logpkg.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(logpkg.WithLevel(level))

	// Redirect standard library logs (used by Pebble) to our logger.
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "warren",
		Short: "Warren runtime CLI",
		Long:  "Warren is a sandboxed guest-process runtime. This CLI manages journals and basic operations.",
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the warren version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("warren", version)
		},
	}
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(journalcmd.NewCommand(cfg, logger))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

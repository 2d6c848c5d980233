// Package cmd provides the CLI commands for Codesem.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/llamaha/codesem/internal/logging"
	"github.com/llamaha/codesem/pkg/version"
)

// Debug logging flag, applied via the root command's persistent hooks so
// every subcommand gets it for free.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for codesem CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codesem",
		Short: "Local-first semantic code search over a project tree",
		Long: `Codesem indexes a codebase into a vector collection and searches it by
meaning rather than keyword. It is a CLI wrapper around the same chunk,
embed and search pipeline an MCP tool would drive.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("codesem version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.codesem/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging enables debug logging when --debug is set.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

// stopLogging flushes and closes the debug log file, if one was opened.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

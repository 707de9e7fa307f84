// Package cli provides the command-line interface for docrelay.
package cli

import (
	"errors"
	"log/slog"

	"github.com/raphaelgruber/docrelay/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, loaded before every command
	cfg config.Config

	closeLog = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docrelay",
	Short: "Cross-post articles to Dev.to and answer questions about product docs",
	Long: `Docrelay turns a published article into a Dev.to cross-post: it fetches the
page, generates a banner, asks an LLM to rewrite it and publishes the result.

It also indexes a documentation tree into a local vector index and answers
questions about it with a local Ollama model.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, closer := config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		closeLog = closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = closeLog()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(bannerCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(askCmd)
}

// exitCoder is implemented by errors that carry a process exit code.
type exitCoder interface {
	ExitCode() int
}

// ExitCode returns the process exit code for err: 0 for nil, the code an
// error carries, or 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	applog "github.com/nao1215/sitecrawl/internal/log"
)

// NewRootCmd creates the root command for sitecrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitecrawl",
		Short: "Breadth-first crawler for a single website",
		Long: `sitecrawl crawls a website breadth-first from a root URL.

It follows links up to a depth limit, never leaves the root's domain,
never fetches a URL twice, and reports the pages it visited in the order
it visited them together with every request that failed.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-file", "", "Write logs to a rotated file instead of stderr")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getLogFileFlag retrieves the log-file flag from the command or its parent.
func getLogFileFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("log-file")
	if err != nil {
		path, err = cmd.Root().PersistentFlags().GetString("log-file")
		if err != nil {
			return ""
		}
	}
	return path
}

// getLogJSONFlag retrieves the log-json flag from the command or its parent.
func getLogJSONFlag(cmd *cobra.Command) bool {
	asJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		asJSON, err = cmd.Root().PersistentFlags().GetBool("log-json")
		if err != nil {
			return false
		}
	}
	return asJSON
}

// setupLogger creates the secure structured logger for a command.
// Logs go to the command's stderr unless --log-file is set. Values logged
// under any of sensitiveKeys are masked in addition to the built-in ones.
// The returned closer must be called when the command finishes.
func setupLogger(cmd *cobra.Command, sensitiveKeys ...string) (*slog.Logger, io.Closer, error) {
	verbose := getVerboseFlag(cmd)
	newLogger := applog.NewSecureLogger
	if getLogJSONFlag(cmd) {
		newLogger = applog.NewSecureJSONLogger
	}
	opt := applog.WithSensitiveKeys(sensitiveKeys...)

	path := getLogFileFlag(cmd)
	if path == "" {
		return newLogger(cmd.ErrOrStderr(), verbose, opt), io.NopCloser(nil), nil
	}

	w, err := applog.NewFileWriter(path, applog.DefaultFileOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return newLogger(w, verbose, opt), w, nil
}

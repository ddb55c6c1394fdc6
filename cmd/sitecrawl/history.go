package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/report"
)

// NewHistoryCmd creates the history command.
// This command shows crawl results saved with 'sitecrawl crawl --save'.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show archived crawl results",
		Long: `History lists crawl runs saved with 'sitecrawl crawl --save'.

Without flags it lists the archived runs, newest first. Give a URL to list
only the runs for that root. Use --id or --latest to print a full result
in any report format.

Examples:
  # List every archived run
  sitecrawl history

  # List the runs for one site
  sitecrawl history https://example.com

  # Show the newest result for a site as Markdown
  sitecrawl history --latest -f markdown https://example.com

  # Show a specific run as JSON
  sitecrawl history --id 0b6f9a52-... -f json

  # Remove a run from the archive
  sitecrawl history --delete 0b6f9a52-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	// Selection flags
	cmd.Flags().String("id", "",
		"Show the full result of the run with this id")
	cmd.Flags().Bool("latest", false,
		"Show the full result of the newest run for the given URL")
	cmd.Flags().String("delete", "",
		"Delete the run with this id from the archive")
	cmd.Flags().IntP("limit", "n", 0,
		"Maximum number of runs to list (0 means no limit)")

	// Output flags
	cmd.Flags().StringP("format", "f", config.DefaultFormat,
		"Report format: text, json, markdown")
	cmd.Flags().Bool("errors", false,
		"List failed requests in the text report")

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory holding the archive database")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	root     string
	id       string
	latest   bool
	deleteID string
	limit    int
	format   string
	errors   bool
	dbDir    string
}

func parseHistoryOptions(cmd *cobra.Command, args []string) (historyOptions, error) {
	var opts historyOptions
	var err error

	if opts.id, err = cmd.Flags().GetString("id"); err != nil {
		return opts, err
	}
	if opts.latest, err = cmd.Flags().GetBool("latest"); err != nil {
		return opts, err
	}
	if opts.deleteID, err = cmd.Flags().GetString("delete"); err != nil {
		return opts, err
	}
	if opts.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return opts, err
	}
	if opts.format, err = cmd.Flags().GetString("format"); err != nil {
		return opts, err
	}
	if opts.errors, err = cmd.Flags().GetBool("errors"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return opts, err
	}

	if len(args) > 0 {
		// Roots are archived in normalized form.
		opts.root, err = crawler.NormalizeString(withDefaultScheme(args[0]), nil)
		if err != nil {
			return opts, fmt.Errorf("invalid URL %q: %w", args[0], err)
		}
	}

	switch {
	case opts.id != "" && opts.latest:
		return opts, errors.New("--id and --latest cannot be used together")
	case opts.latest && opts.root == "":
		return opts, errors.New("--latest requires a URL")
	case opts.limit < 0:
		return opts, errors.New("--limit must not be negative")
	}

	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	// Validate arguments before opening the database.
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	logger, closer, err := setupLogger(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	db, err := database.Open(opts.dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Debug("database opened", "path", db.Path())

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if opts.deleteID != "" {
		if err := db.DeleteRun(ctx, opts.deleteID); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted run %s\n", opts.deleteID)
		return nil
	}

	writer, err := report.New(opts.format, out, report.Options{
		ShowErrors: opts.errors,
		Pretty:     true,
	})
	if err != nil {
		return err
	}

	var result *model.CrawlResult
	switch {
	case opts.id != "":
		result, err = db.GetResult(ctx, opts.id)
	case opts.latest:
		_, result, err = db.LatestResult(ctx, opts.root)
	default:
		return listRuns(cmd, db, writer, opts)
	}
	if err != nil {
		return err
	}

	if _, err := writer.Write(result); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// listRuns writes the archived runs matching opts.
func listRuns(cmd *cobra.Command, db *database.ResultDB, writer report.RunsWriter, opts historyOptions) error {
	runs, err := db.ListRuns(cmd.Context(), opts.root, opts.limit)
	if err != nil {
		return err
	}

	if _, err := writer.WriteRuns(runs); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	if len(runs) == 0 {
		printNoRuns(cmd.ErrOrStderr(), opts.root)
	}
	return nil
}

func printNoRuns(w io.Writer, root string) {
	if root == "" {
		fmt.Fprintln(w, "no archived runs (run 'sitecrawl crawl --save' first)")
		return
	}
	fmt.Fprintf(w, "no archived runs for %s\n", root)
}

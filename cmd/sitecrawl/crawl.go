package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/pipeline"
	"github.com/nao1215/sitecrawl/internal/report"
	"github.com/nao1215/sitecrawl/internal/transport"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>...",
		Short: "Crawl websites breadth-first and report visited pages",
		Long: `Crawl fetches the root URL, then every page it links to on the same
domain, level by level, until the depth limit is reached.

Every URL is fetched at most once. Links to other domains, non-HTTP(S)
links and pages beyond the depth limit are never fetched. A failed request
is recorded and the crawl continues with the rest of the site.

A URL without a scheme is crawled over https.

Examples:
  # Fetch only the root page
  sitecrawl crawl example.com

  # Follow links two hops away from the root
  sitecrawl crawl -d 2 https://example.com

  # Include subdomains and list failed requests
  sitecrawl crawl -d 3 --scope subdomains --errors https://example.com

  # Crawl several sites, two at a time, and save a Markdown report
  sitecrawl crawl -d 1 -b 2 -f markdown -o report.md example.com example.org

  # Keep the results for 'sitecrawl history'
  sitecrawl crawl -d 2 --save https://example.com

Configuration file (.sitecrawl) example:
  defaults:
    ignorePatterns: ["/logout*"]
  sites:
    example.com:
      depth: 3
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Maximum number of hops from the root (0 fetches only the root)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request, redirects included")
	cmd.Flags().String("scope", config.DefaultScope,
		"Which hosts belong to the site: "+strings.Join(config.ValidScopes(), ", "))
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of fetch attempts per root (0 means no limit)")
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (host:port)")
	cmd.Flags().StringP("user-agent", "A", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of response body bytes read per page")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of roots crawled concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitecrawl in current or home directory)")

	// Report flags
	cmd.Flags().StringP("format", "f", config.DefaultFormat,
		"Report format: "+strings.Join(config.ValidFormats(), ", "))
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("errors", false,
		"List failed requests after the visited URLs in the text report")
	cmd.Flags().Bool("progress", false,
		"Show a progress spinner on stderr while crawling")
	cmd.Flags().Bool("save", false,
		"Save the results to the local archive for 'sitecrawl history'")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory holding the archive database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Custom headers may hold credentials, so their names are masked too.
	logger, closer, err := setupLogger(cmd, headerNames(cfg.SiteConfigs)...)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Ctrl-C stops the crawl; the partial results are still reported.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, newExplicitFlags(cmd), logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// explicitFlags reports which flags the user set on the command line.
// Explicit flags win over the configuration file.
type explicitFlags func(name string) bool

func newExplicitFlags(cmd *cobra.Command) explicitFlags {
	return func(name string) bool {
		return cmd.Flags().Changed(name)
	}
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	if cfg.Depth, err = cmd.Flags().GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Scope, err = cmd.Flags().GetString("scope"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = cmd.Flags().GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = cmd.Flags().GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = cmd.Flags().GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Format, err = cmd.Flags().GetString("format"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ShowErrors, err = cmd.Flags().GetBool("errors"); err != nil {
		return nil, err
	}
	if cfg.Progress, err = cmd.Flags().GetBool("progress"); err != nil {
		return nil, err
	}
	if cfg.SaveToDB, err = cmd.Flags().GetBool("save"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogFile = getLogFileFlag(cmd)

	// Load site-specific configurations from config file
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.Targets = make([]string, 0, len(args))
	for _, arg := range args {
		if arg = strings.TrimSpace(arg); arg != "" {
			cfg.Targets = append(cfg.Targets, withDefaultScheme(arg))
		}
	}

	return cfg, nil
}

// headerNames returns the names of every custom header in the file.
func headerNames(cf *config.File) []string {
	if cf == nil {
		return nil
	}
	var names []string
	for name := range cf.Defaults.Headers {
		names = append(names, name)
	}
	for _, site := range cf.Sites {
		for name := range site.Headers {
			names = append(names, name)
		}
	}
	return names
}

// withDefaultScheme prefixes target with https:// when it has no scheme.
func withDefaultScheme(target string) string {
	if strings.Contains(target, "://") {
		return target
	}
	return "https://" + target
}

// siteSettings are the effective settings for one root after merging the
// command line, the configuration file defaults and the site entry.
type siteSettings struct {
	host           string
	depth          int
	scope          crawler.Scope
	maxPages       int
	userAgent      string
	cookie         string
	headers        map[string]string
	ignorePatterns []string
	followPatterns []string
}

// resolveSiteSettings merges cfg with the site configuration for target.
// Values from the configuration file apply unless the matching flag was
// given explicitly.
func resolveSiteSettings(cfg *config.Config, target string, explicit explicitFlags) (siteSettings, error) {
	// An invalid root gets no site entry; the spider reports it as failed.
	var host string
	if root, err := crawler.Normalize(target, nil); err == nil {
		host = root.Host
	}
	site := cfg.SiteConfigs.GetSiteConfig(host)

	s := siteSettings{
		host:           host,
		depth:          cfg.Depth,
		maxPages:       cfg.MaxPages,
		userAgent:      cfg.UserAgent,
		cookie:         site.Cookie,
		headers:        site.Headers,
		ignorePatterns: site.IgnorePatterns,
		followPatterns: site.FollowPatterns,
	}

	if site.Depth != nil && !explicit("depth") {
		s.depth = *site.Depth
	}
	if site.MaxPages != 0 && !explicit("max-pages") {
		s.maxPages = site.MaxPages
	}
	if site.UserAgent != "" && !explicit("user-agent") {
		s.userAgent = site.UserAgent
	}

	scopeName := cfg.Scope
	if site.Scope != "" && !explicit("scope") {
		scopeName = site.Scope
	}
	scope, err := crawler.ParseScope(scopeName)
	if err != nil {
		return siteSettings{}, err
	}
	s.scope = scope

	return s, nil
}

// newSpider builds the spider for one root with its own HTTP client, so that
// cookies and headers of one site are never sent to another.
func newSpider(cfg *config.Config, s siteSettings, logger *slog.Logger, onEvent func(crawler.Event)) (*crawler.Spider, error) {
	client, err := transport.NewHTTPClient(transport.Options{
		Timeout:      cfg.Timeout,
		ProxyAddress: cfg.ProxyAddress,
		Host:         s.host,
		Cookie:       s.cookie,
		Headers:      s.headers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	fetcher := crawler.NewHTTPFetcher(client,
		crawler.WithUserAgent(s.userAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
	)

	opts := []crawler.SpiderOption{
		crawler.WithScope(s.scope),
		crawler.WithMaxPages(s.maxPages),
		crawler.WithIgnorePatterns(s.ignorePatterns),
		crawler.WithFollowPatterns(s.followPatterns),
		crawler.WithLogger(logger),
	}
	if onEvent != nil {
		opts = append(opts, crawler.WithEventHandler(onEvent))
	}

	return crawler.NewSpider(fetcher, crawler.NewHTMLExtractor(), opts...), nil
}

// newProgressBar creates the spinner shown with --progress.
// The number of pages is unknown up front, so it counts fetch attempts.
func newProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("crawling"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// runCrawl crawls every target and writes the reports.
func runCrawl(ctx context.Context, cfg *config.Config, explicit explicitFlags, logger *slog.Logger, stdout, stderr io.Writer) error {
	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"depth", cfg.Depth,
		"scope", cfg.Scope,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	if cfg.ProxyAddress != "" {
		if status := transport.CheckProxy(ctx, cfg.ProxyAddress); status != transport.ProxyStatusOK {
			return fmt.Errorf("proxy check failed for %s: %w", cfg.ProxyAddress, status.Error())
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	var db *database.ResultDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	var bar *progressbar.ProgressBar
	var onEvent func(crawler.Event)
	if cfg.Progress {
		bar = newProgressBar(stderr)
		onEvent = func(ev crawler.Event) {
			bar.Describe(fmt.Sprintf("depth %d, %d queued", ev.Depth, ev.Pending))
			_ = bar.Add(1) //nolint:errcheck // display only
		}
	}

	jobs := make([]pipeline.Job, len(cfg.Targets))
	for i, target := range cfg.Targets {
		settings, err := resolveSiteSettings(cfg, target, explicit)
		if err != nil {
			return fmt.Errorf("%s: %w", target, err)
		}
		spider, err := newSpider(cfg, settings, logger, onEvent)
		if err != nil {
			return err
		}
		jobs[i] = pipeline.Job{Root: target, Depth: settings.depth, Spider: spider}
	}

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			steps := []pipeline.Step{pipeline.NewCrawlStep(pipeline.WithCrawlLogger(logger))}
			if db != nil {
				steps = append(steps, pipeline.NewArchiveStep(db, pipeline.WithArchiveLogger(logger)))
			}
			p := pipeline.New(pipeline.WithLogger(logger))
			p.AddStep(steps...)
			return p
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	runs, err := bp.ProcessBatch(ctx, jobs)
	if bar != nil {
		_ = bar.Finish() //nolint:errcheck // display only
	}
	if err != nil {
		return err
	}

	return outputRuns(cfg, runs, stdout, stderr)
}

// outputRuns writes the report of every run in target order and returns an
// error naming the roots whose run failed. Failed fetches are part of a
// report, not a failure of the run.
func outputRuns(cfg *config.Config, runs []*pipeline.Run, stdout, stderr io.Writer) (err error) {
	output, closeOutput, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOutput(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	// Several JSON reports are written as JSON Lines.
	pretty := len(runs) == 1
	writer, err := report.New(cfg.Format, output, report.Options{
		ShowErrors: cfg.ShowErrors,
		Pretty:     pretty,
	})
	if err != nil {
		return err
	}

	var failed []string
	for _, run := range runs {
		if run.Result == nil {
			fmt.Fprintf(stderr, "crawl %s: %v\n", run.Job.Root, run.Err)
			failed = append(failed, run.Job.Root)
			continue
		}
		if run.Err != nil {
			// The crawl finished but a later step, such as archiving, did not.
			fmt.Fprintf(stderr, "%s: %v\n", run.Job.Root, run.Err)
			failed = append(failed, run.Job.Root)
		}
		if _, err := writer.Write(run.Result); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		if run.Result.Cancelled || run.Result.Truncated {
			fmt.Fprintf(stderr, "%s: %s\n", run.Result.Root, run.Result.Status())
		}
		if run.RunID != "" {
			fmt.Fprintf(stderr, "saved run %s for %s\n", run.RunID, run.Result.Root)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d roots failed: %s",
			len(failed), len(runs), strings.Join(failed, ", "))
	}
	return nil
}

// openOutput returns the report destination: the file at path, or stdout
// when path is empty. Directories are created as needed.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may list URLs with tokens in them, so only the owner may read.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-chosen path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

package config

import (
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Report formats accepted by Config.Format.
const (
	// FormatText prints one visited URL per line.
	FormatText = "text"

	// FormatJSON prints the full result as JSON.
	FormatJSON = "json"

	// FormatMarkdown prints a GitHub Flavored Markdown report.
	FormatMarkdown = "markdown"
)

// Domain scopes accepted by Config.Scope.
const (
	// ScopeHost restricts the crawl to the root's exact host.
	ScopeHost = "host"

	// ScopeSubdomains also allows subdomains of the root's host.
	ScopeSubdomains = "subdomains"

	// ScopeSite allows every host under the root's registrable domain.
	ScopeSite = "site"
)

// Default configuration values.
const (
	// DefaultTimeout is the per-request timeout. 30 seconds covers slow
	// servers without letting one dead host stall a crawl for minutes.
	DefaultTimeout = 30 * time.Second

	// DefaultDepth of 0 fetches only the root page.
	DefaultDepth = 0

	// DefaultBatchSize of 1 crawls multiple roots one after another.
	DefaultBatchSize = 1

	// DefaultMaxPages of 0 means no limit on fetch attempts.
	DefaultMaxPages = 0

	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawl"

	// DefaultUserAgent identifies sitecrawl in HTTP requests.
	// Using a descriptive User-Agent is good practice and allows operators
	// to identify crawler traffic in their logs.
	DefaultUserAgent = "sitecrawl/1.0 (+https://github.com/nao1215/sitecrawl)"

	// DefaultMaxBodySize limits the maximum response body size to read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultFormat is the report format used when none is given.
	DefaultFormat = FormatText

	// DefaultScope is the domain scope used when none is given.
	DefaultScope = ScopeHost
)

// Config holds all configuration options for sitecrawl.
// This struct is populated from CLI flags and passed through the application
// rather than kept in global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// Targets is the list of root URLs to crawl.
	Targets []string

	// Depth is the maximum number of hops from the root.
	// Depth 0 means only fetch the root page.
	Depth int

	// Timeout is the timeout for each HTTP request, redirects included.
	Timeout time.Duration

	// Scope decides which hosts belong to the root's domain.
	// One of ScopeHost, ScopeSubdomains or ScopeSite.
	Scope string

	// MaxPages caps the number of fetch attempts per root. 0 means no limit.
	MaxPages int

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated to prevent memory exhaustion.
	// Set to 0 to use the default (10MB).
	MaxBodySize int64

	// Format is the report format. One of FormatText, FormatJSON or FormatMarkdown.
	Format string

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// ShowErrors adds the failed requests to the text report.
	ShowErrors bool

	// BatchSize is the number of roots crawled concurrently.
	// Each root is always crawled by a single sequential traversal.
	BatchSize int

	// Progress shows a progress indicator on stderr while crawling.
	Progress bool

	// SaveToDB stores every result in the SQLite archive.
	SaveToDB bool

	// DBDir is the directory holding the SQLite archive.
	// Defaults to XDG data directory (~/.local/share/sitecrawl on Linux).
	DBDir string

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// LogFile sends log output to a rotated file instead of stderr.
	LogFile string
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, batch size).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Depth:       DefaultDepth,
		Timeout:     DefaultTimeout,
		Scope:       DefaultScope,
		MaxPages:    DefaultMaxPages,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		Format:      DefaultFormat,
		BatchSize:   DefaultBatchSize,
		DBDir:       XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for sitecrawl.
// On Linux: ~/.local/share/sitecrawl
// On macOS: ~/Library/Application Support/sitecrawl
// On Windows: %LOCALAPPDATA%\sitecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecrawl.
// On Linux: ~/.config/sitecrawl
// On macOS: ~/Library/Application Support/sitecrawl
// On Windows: %APPDATA%\sitecrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ValidFormats returns the accepted report format names.
func ValidFormats() []string {
	return []string{FormatText, FormatJSON, FormatMarkdown}
}

// ValidScopes returns the accepted scope names.
func ValidScopes() []string {
	return []string{ScopeHost, ScopeSubdomains, ScopeSite}
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any crawling begins.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Depth < 0 {
		return ErrNegativeDepth
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if !slices.Contains(ValidFormats(), strings.ToLower(c.Format)) {
		return ErrInvalidFormat
	}

	if !validScope(c.Scope) {
		return ErrInvalidScope
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}

// validScope accepts the scope names case-insensitively. Empty means the default.
func validScope(scope string) bool {
	return scope == "" || slices.Contains(ValidScopes(), strings.ToLower(scope))
}

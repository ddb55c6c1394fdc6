package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// This test ensures that defaults are documented through tests and that changes
// to defaults are intentional (tests will fail if defaults change unexpectedly).
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Depth is 0", func(t *testing.T) {
		t.Parallel()
		if cfg.Depth != 0 {
			t.Errorf("expected Depth to be 0, got %d", cfg.Depth)
		}
	})

	t.Run("default Timeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected Timeout to be 30s, got %v", cfg.Timeout)
		}
	})

	t.Run("default Scope is host", func(t *testing.T) {
		t.Parallel()
		if cfg.Scope != "host" {
			t.Errorf("expected Scope to be 'host', got '%s'", cfg.Scope)
		}
	})

	t.Run("default Format is text", func(t *testing.T) {
		t.Parallel()
		if cfg.Format != "text" {
			t.Errorf("expected Format to be 'text', got '%s'", cfg.Format)
		}
	})

	t.Run("default BatchSize is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 1 {
			t.Errorf("expected BatchSize to be 1, got %d", cfg.BatchSize)
		}
	})

	t.Run("default MaxPages is unlimited", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 0 {
			t.Errorf("expected MaxPages to be 0, got %d", cfg.MaxPages)
		}
	})

	t.Run("default MaxBodySize is 10MB", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxBodySize != 10*1024*1024 {
			t.Errorf("expected MaxBodySize to be 10MB, got %d", cfg.MaxBodySize)
		}
	})

	t.Run("archive is opt-in", func(t *testing.T) {
		t.Parallel()
		if cfg.SaveToDB {
			t.Error("expected SaveToDB to be false")
		}
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir to be the XDG data dir, got %q", cfg.DBDir)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"valid config returns nil", func(*Config) {}, nil},
		{"multiple targets is valid", func(c *Config) {
			c.Targets = []string{"https://a.example", "https://b.example"}
		}, nil},
		{"empty targets", func(c *Config) { c.Targets = nil }, ErrNoTarget},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, ErrInvalidTimeout},
		{"zero depth is valid", func(c *Config) { c.Depth = 0 }, nil},
		{"negative depth", func(c *Config) { c.Depth = -1 }, ErrNegativeDepth},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"unknown format", func(c *Config) { c.Format = "xml" }, ErrInvalidFormat},
		{"format is case-insensitive", func(c *Config) { c.Format = "JSON" }, nil},
		{"markdown format", func(c *Config) { c.Format = "markdown" }, nil},
		{"unknown scope", func(c *Config) { c.Scope = "planet" }, ErrInvalidScope},
		{"empty scope uses default", func(c *Config) { c.Scope = "" }, nil},
		{"site scope", func(c *Config) { c.Scope = "site" }, nil},
		{"negative max pages", func(c *Config) { c.MaxPages = -1 }, ErrInvalidMaxPages},
		{"negative max body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"zero max body size uses default", func(c *Config) { c.MaxBodySize = 0 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			cfg.Targets = []string{"https://example.com"}
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestFileGetSiteConfig tests the GetSiteConfig method.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{
				Depth:  intPtr(2),
				Cookie: "default_cookie=abc",
			},
			Sites: map[string]SiteConfig{},
		}

		cfg := file.GetSiteConfig("unknown.example")
		if cfg.Depth == nil || *cfg.Depth != 2 {
			t.Errorf("expected depth 2, got %v", cfg.Depth)
		}
		if cfg.Cookie != "default_cookie=abc" {
			t.Errorf("expected default cookie, got %q", cfg.Cookie)
		}
	})

	t.Run("returns site-specific config", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{
				Depth:  intPtr(2),
				Cookie: "default_cookie=abc",
				Scope:  "host",
			},
			Sites: map[string]SiteConfig{
				"example.com": {
					Depth:     intPtr(5),
					Cookie:    "session=xyz",
					Scope:     "subdomains",
					MaxPages:  50,
					UserAgent: "custom/1.0",
				},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.Depth == nil || *cfg.Depth != 5 {
			t.Errorf("expected depth 5, got %v", cfg.Depth)
		}
		if cfg.Cookie != "session=xyz" {
			t.Errorf("expected site cookie, got %q", cfg.Cookie)
		}
		if cfg.Scope != "subdomains" || cfg.MaxPages != 50 || cfg.UserAgent != "custom/1.0" {
			t.Errorf("unexpected site overrides: %+v", cfg)
		}
	})

	t.Run("explicit zero depth overrides default", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{Depth: intPtr(3)},
			Sites: map[string]SiteConfig{
				"example.com": {Depth: intPtr(0)},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.Depth == nil || *cfg.Depth != 0 {
			t.Errorf("expected depth 0, got %v", cfg.Depth)
		}
	})

	t.Run("unset depth uses default", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{Depth: intPtr(3)},
			Sites: map[string]SiteConfig{
				"example.com": {Cookie: "session=abc"},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.Depth == nil || *cfg.Depth != 3 {
			t.Errorf("expected default depth 3, got %v", cfg.Depth)
		}
	})

	t.Run("merges headers from defaults and site", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{
				Headers: map[string]string{"X-Default": "value1", "Authorization": "default-token"},
			},
			Sites: map[string]SiteConfig{
				"example.com": {
					Headers: map[string]string{"X-Custom": "value2", "Authorization": "site-token"},
				},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.Headers["X-Default"] != "value1" || cfg.Headers["X-Custom"] != "value2" {
			t.Errorf("expected merged headers, got %v", cfg.Headers)
		}
		if cfg.Headers["Authorization"] != "site-token" {
			t.Errorf("expected site token to override, got %q", cfg.Headers["Authorization"])
		}

		// Merging must not leak site headers into the defaults.
		if _, ok := file.Defaults.Headers["X-Custom"]; ok {
			t.Error("defaults were modified by the merge")
		}
	})

	t.Run("site patterns override defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{
				IgnorePatterns: []string{"/default/*"},
				FollowPatterns: []string{"/default-follow/*"},
			},
			Sites: map[string]SiteConfig{
				"example.com": {
					IgnorePatterns: []string{"/admin/*"},
					FollowPatterns: []string{"/api/*"},
				},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if len(cfg.IgnorePatterns) != 1 || cfg.IgnorePatterns[0] != "/admin/*" {
			t.Errorf("expected site ignore patterns, got %v", cfg.IgnorePatterns)
		}
		if len(cfg.FollowPatterns) != 1 || cfg.FollowPatterns[0] != "/api/*" {
			t.Errorf("expected site follow patterns, got %v", cfg.FollowPatterns)
		}
	})

	t.Run("host lookup is case-insensitive", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Sites: map[string]SiteConfig{"Example.COM:8080": {Cookie: "a=b"}},
		}
		if cfg := file.GetSiteConfig("example.com:8080"); cfg.Cookie != "a=b" {
			t.Errorf("expected site cookie, got %q", cfg.Cookie)
		}
	})

	t.Run("nil file", func(t *testing.T) {
		t.Parallel()

		var file *File
		cfg := file.GetSiteConfig("example.com")
		if cfg.Depth != nil || cfg.Cookie != "" {
			t.Errorf("expected empty config, got %+v", cfg)
		}
	})
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), ".sitecrawl")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		return path
	}

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.sitecrawl")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		path := write(t, `defaults:
  depth: 1
  cookie: "default=abc"
sites:
  example.com:
    depth: 0
    scope: subdomains
    maxPages: 200
    cookie: "session=xyz"
    headers:
      Authorization: "Bearer token"
    ignorePatterns:
      - "/admin/*"
    followPatterns:
      - "/docs/*"
`)

		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Defaults.Depth == nil || *cfg.Defaults.Depth != 1 {
			t.Errorf("expected default depth 1, got %v", cfg.Defaults.Depth)
		}

		site, ok := cfg.Sites["example.com"]
		if !ok {
			t.Fatal("expected example.com in sites")
		}
		if site.Depth == nil || *site.Depth != 0 {
			t.Errorf("expected explicit site depth 0, got %v", site.Depth)
		}
		if site.Scope != "subdomains" || site.MaxPages != 200 {
			t.Errorf("unexpected site config %+v", site)
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Errorf("expected Authorization header")
		}
		if len(site.IgnorePatterns) != 1 || len(site.FollowPatterns) != 1 {
			t.Errorf("expected patterns, got %+v", site)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadConfigFile(write(t, `invalid: yaml: content: [}`)); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(write(t, "defaults:\n  dpeth: 3\n"))
		if err == nil || !strings.Contains(err.Error(), "dpeth") {
			t.Errorf("expected unknown field error, got %v", err)
		}
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(write(t, "sites:\n  example.com:\n    scope: galaxy\n"))
		if !errors.Is(err, ErrInvalidScope) {
			t.Errorf("expected ErrInvalidScope, got %v", err)
		}

		_, err = LoadConfigFile(write(t, "defaults:\n  depth: -2\n"))
		if !errors.Is(err, ErrNegativeDepth) {
			t.Errorf("expected ErrNegativeDepth, got %v", err)
		}
	})

	t.Run("empty file is valid", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile(write(t, ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{"data": XDGDataDir(), "config": XDGConfigDir()} {
		if dir == "" {
			t.Errorf("expected non-empty XDG %s dir", name)
		}
		if filepath.Base(dir) != AppName {
			t.Errorf("expected XDG %s dir to end in %s, got %s", name, AppName, dir)
		}
	}
}

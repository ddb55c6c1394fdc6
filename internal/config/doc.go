// Package config provides configuration structures and utilities for sitecrawl.
// It defines the options for crawling, report generation and the results
// archive, plus the optional YAML file with per-site settings.
package config

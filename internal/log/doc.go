// Package log builds the slog loggers used by sitecrawl.
//
// Every logger returned here wraps its handler in a SecureHandler, which
// masks secrets before they are written. A crawl logs URLs, fetch errors and
// per-site settings, and each of those can carry credentials:
//   - attributes whose key names a secret (cookie, authorization, token, ...)
//   - values that look like secrets (JWTs, bearer tokens, private keys)
//   - passwords and sensitive query parameters of URLs, including URLs
//     quoted inside error messages
//   - custom header names registered with WithSensitiveKeys
//
// Levels follow the CLI's verbose flag: Warn by default, Debug with -v.
// NewFileWriter sends output to a size-rotated file instead of stderr.
//
//	logger := log.NewSecureLogger(os.Stderr, true, log.WithSensitiveKeys("X-Site-Key"))
//	logger.Debug("visited", "url", "https://example.com/account?session=abc123")
//	// url="https://example.com/account?session=***REDACTED***"
package log

package log

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// defaultSensitiveKeys are attribute keys, header names and query parameter
// names whose values are always masked. Keys are compared lowercase.
var defaultSensitiveKeys = []string{
	// HTTP headers a site configuration may carry
	"authorization", "proxy-authorization", "cookie", "set-cookie",
	"x-api-key", "x-auth-token", "x-csrf-token", "x-xsrf-token",

	// Query parameters and form fields
	"password", "passwd", "secret", "token", "api_key", "apikey", "api-key",
	"access_token", "refresh_token", "id_token", "client_secret", "code",
	"signature", "sig", "x-amz-signature", "x-amz-credential",

	// Session identifiers
	"session", "session_id", "sessionid", "sid", "jsessionid", "phpsessid",
}

// sensitiveKeywords mask any key that contains them.
// The bare word "key" is left out: it would hide "primary_key" or "monkey".
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential",
	"private", "session", "cookie",
}

// sensitivePatterns match values that are secrets whatever their key is.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// urlPattern finds http(s) URLs inside free text. Fetch errors from net/http
// quote the requested URL, so the quote ends the match.
var urlPattern = regexp.MustCompile(`(?i)https?://[^\s"'<>]+`)

// SecureHandler wraps an slog.Handler and masks secrets before records
// reach it. Crawling logs URLs, fetch errors and per-site headers, and all
// three may carry credentials:
//   - attributes with a sensitive key are replaced by MaskValue
//   - string values that look like tokens or keys are replaced by MaskValue
//   - URLs, also inside strings and errors, lose their password and the
//     values of sensitive query parameters
//   - map[string]string attributes are treated as headers and masked per name
//
// Design decision: We use a handler wrapper rather than a custom logger so
// that every component only ever sees a plain *slog.Logger.
type SecureHandler struct {
	handler slog.Handler

	// keys holds the lowercase keys masked in addition to the keywords.
	keys map[string]struct{}
}

// HandlerOption configures a SecureHandler.
type HandlerOption func(*SecureHandler)

// WithSensitiveKeys masks additional keys, for example the names of custom
// headers sent to a site. Keys are matched case-insensitively.
func WithSensitiveKeys(keys ...string) HandlerOption {
	return func(h *SecureHandler) {
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				h.keys[strings.ToLower(k)] = struct{}{}
			}
		}
	}
}

// NewSecureHandler creates a SecureHandler wrapping handler.
// If handler is nil, slog.Default().Handler() is used.
func NewSecureHandler(handler slog.Handler, opts ...HandlerOption) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}

	h := &SecureHandler{
		handler: handler,
		keys:    make(map[string]struct{}, len(defaultSensitiveKeys)),
	}
	for _, k := range defaultSensitiveKeys {
		h.keys[k] = struct{}{}
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Enabled delegates to the underlying handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's message and attributes and passes the record on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, h.sanitizeText(r.Message), r.PC)

	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})

	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a handler whose preset attributes are already masked.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitized), keys: h.keys}
}

// WithGroup returns a handler that nests attributes under name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), keys: h.keys}
}

func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitized := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			sanitized[i] = h.sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	}

	if h.isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.sanitizeString(a.Value.String()))
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case error:
			return slog.String(a.Key, h.sanitizeText(v.Error()))
		case *url.URL:
			if v == nil {
				return a
			}
			return slog.String(a.Key, h.sanitizeText(v.String()))
		case map[string]string:
			return slog.Any(a.Key, h.sanitizeHeaders(v))
		}
	}

	return a
}

// isSensitiveKey reports whether values stored under key must be masked.
func (h *SecureHandler) isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if _, ok := h.keys[key]; ok {
		return true
	}
	return containsSensitiveKeyword(key)
}

// sanitizeString masks a whole secret-looking value, or the secrets of the
// URLs inside it.
func (h *SecureHandler) sanitizeString(s string) string {
	if isSensitiveValue(s) {
		return MaskValue
	}
	return h.sanitizeText(s)
}

// sanitizeText masks the secrets of every URL found in s.
func (h *SecureHandler) sanitizeText(s string) string {
	if !strings.Contains(strings.ToLower(s), "http") {
		return s
	}
	return urlPattern.ReplaceAllStringFunc(s, func(raw string) string {
		if redacted, ok := h.sanitizeURL(raw); ok {
			return redacted
		}
		return raw
	})
}

// sanitizeHeaders returns a copy of headers with sensitive values masked.
func (h *SecureHandler) sanitizeHeaders(headers map[string]string) map[string]string {
	out := maps.Clone(headers)
	for name, value := range out {
		if h.isSensitiveKey(name) || isSensitiveValue(value) {
			out[name] = MaskValue
		}
	}
	return out
}

// sanitizeURL masks the userinfo password and the values of sensitive query
// parameters of an http(s) URL. ok is false when raw is not such a URL or
// holds nothing to mask.
func (h *SecureHandler) sanitizeURL(raw string) (string, bool) {
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	_, changed := u.User.Password()

	if u.RawQuery != "" {
		pairs := strings.Split(u.RawQuery, "&")
		for i, pair := range pairs {
			key, _, _ := strings.Cut(pair, "=")
			name := key
			if unescaped, err := url.QueryUnescape(key); err == nil {
				name = unescaped
			}
			if h.isSensitiveKey(name) {
				pairs[i] = key + "=" + MaskValue
				changed = true
			}
		}
		u.RawQuery = strings.Join(pairs, "&")
	}

	if !changed {
		return "", false
	}
	// Redacted replaces the password with "xxxxx".
	return u.Redacted(), true
}

func containsSensitiveKeyword(key string) bool {
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// Level returns the minimum level logged: Debug when verbose, Warn otherwise.
func Level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// NewSecureLogger creates a text logger writing to w that masks secrets.
// It logs at Warn, or at Debug when verbose is set.
func NewSecureLogger(w io.Writer, verbose bool, opts ...HandlerOption) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level(verbose)})
	return slog.New(NewSecureHandler(handler, opts...))
}

// NewSecureJSONLogger is NewSecureLogger with one JSON object per line, for
// log files that are shipped to an aggregator.
func NewSecureJSONLogger(w io.Writer, verbose bool, opts ...HandlerOption) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: Level(verbose)})
	return slog.New(NewSecureHandler(handler, opts...))
}

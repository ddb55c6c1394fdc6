package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/sitecrawl/internal/model"
)

// JSONWriter outputs one JSON document per result, terminated by a newline.
// Compact output therefore forms JSON Lines when several results are
// written to the same stream. URLs are written verbatim: '&', '<' and '>'
// are not escaped.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed output.
	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the result as a single JSON object followed by a newline.
func (w *JSONWriter) Write(result *model.CrawlResult) (int, error) {
	return w.writeJSON(normalized(result))
}

// WriteRuns outputs a list of archived runs as a JSON array.
func (w *JSONWriter) WriteRuns(runs []model.RunSummary) (int, error) {
	if runs == nil {
		runs = []model.RunSummary{}
	}
	return w.writeJSON(runs)
}

// writeJSON encodes v and writes it in a single call to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.indent {
		enc.SetIndent(w.indentPrefix, w.indentString)
	}

	// Encode appends the trailing newline.
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

// normalized returns result with nil slices replaced by empty ones so that
// consumers always see arrays.
func normalized(result *model.CrawlResult) *model.CrawlResult {
	if result.Visited != nil && result.Errors != nil {
		return result
	}
	cp := *result
	if cp.Visited == nil {
		cp.Visited = []string{}
	}
	if cp.Errors == nil {
		cp.Errors = []model.CrawlError{}
	}
	return &cp
}

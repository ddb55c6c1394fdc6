package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// failedHeader introduces the error section of a text report.
const failedHeader = "# failed requests"

// TextWriter prints one visited URL per line, in visit order.
// The output is meant to be piped into other tools, so nothing else is
// printed unless the error section is enabled.
type TextWriter struct {
	baseWriter

	// showErrors appends the failed requests after the visited URLs.
	showErrors bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithErrors appends a "# failed requests" section listing every failed
// fetch as url, kind and message separated by tabs.
func WithErrors(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.showErrors = show
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the visited URLs and, if enabled, the failed requests.
func (w *TextWriter) Write(result *model.CrawlResult) (int, error) {
	var sb strings.Builder

	for _, u := range result.Visited {
		sb.WriteString(u)
		sb.WriteByte('\n')
	}

	if w.showErrors && len(result.Errors) > 0 {
		sb.WriteString(failedHeader)
		sb.WriteByte('\n')
		for _, e := range result.Errors {
			sb.WriteString(e.URL)
			sb.WriteByte('\t')
			sb.WriteString(e.Kind.String())
			sb.WriteByte('\t')
			sb.WriteString(errorMessage(e))
			sb.WriteByte('\n')
		}
	}

	return io.WriteString(w.output, sb.String())
}

// errorMessage returns the message of e on a single line, prefixed with the
// status code for HTTP status errors.
func errorMessage(e model.CrawlError) string {
	msg := strings.Join(strings.Fields(e.Message), " ")
	if e.Kind == model.ErrorKindHTTPStatus && e.StatusCode != 0 {
		code := strconv.Itoa(e.StatusCode)
		if !strings.HasPrefix(msg, code) {
			msg = strings.TrimSpace(code + " " + msg)
		}
	}
	return msg
}

// WriteRuns outputs one tab-separated line per archived run:
// id, start time, status, visited count, failed count and root.
func (w *TextWriter) WriteRuns(runs []model.RunSummary) (int, error) {
	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(r.ID)
		sb.WriteByte('\t')
		sb.WriteString(r.StartedAt.Format(time.RFC3339))
		sb.WriteByte('\t')
		sb.WriteString(r.Status())
		sb.WriteByte('\t')
		sb.WriteString(strconv.Itoa(r.Visited))
		sb.WriteByte('\t')
		sb.WriteString(strconv.Itoa(r.Failed))
		sb.WriteByte('\t')
		sb.WriteString(r.Root)
		sb.WriteByte('\n')
	}
	return io.WriteString(w.output, sb.String())
}

package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitecrawl/internal/model"
)

// timeLayout is used for every timestamp in Markdown output.
const timeLayout = "2006-01-02 15:04:05 MST"

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeOutcome(md, result)
	w.writeVisited(md, result)
	w.writeFailures(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.CrawlResult) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Root", code(result.Root)},
		{"Max Depth", strconv.Itoa(result.MaxDepth)},
		{"Started", formatTime(result.StartedAt)},
	}
	if d := result.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(time.Millisecond).String()})
	}
	rows = append(rows,
		[]string{"Pages Visited", strconv.Itoa(len(result.Visited))},
		[]string{"Failed Requests", strconv.Itoa(len(result.Errors))},
		[]string{"Status", statusText(result)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// statusText returns the status text based on how the crawl ended.
func statusText(result *model.CrawlResult) string {
	switch {
	case result.Cancelled:
		return "⚠️ Cancelled (partial results)"
	case result.Truncated:
		return "⚠️ Page limit reached (partial results)"
	default:
		return "✅ Complete"
	}
}

// writeOutcome writes the outcome chart and an alert summarizing the run.
func (w *MarkdownWriter) writeOutcome(md *markdown.Markdown, result *model.CrawlResult) {
	if result.Attempts() > 0 {
		md.H2("Outcome")
		md.PlainText("")
		w.writePieChart(md, result)
	}
	w.writeAlert(md, result)
}

// writePieChart writes a mermaid pie chart of visited pages and failures by kind.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, result *model.CrawlResult) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Fetch Outcomes"),
		piechart.WithShowData(true),
	)

	if n := len(result.Visited); n > 0 {
		chart.LabelAndIntValue("Visited", uint64(n))
	}
	counts := result.ErrorCounts()
	for _, kind := range model.AllErrorKinds() {
		if n := counts[kind]; n > 0 {
			chart.LabelAndIntValue(kind.String(), uint64(n))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert describing how the crawl ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, result *model.CrawlResult) {
	switch {
	case result.Cancelled:
		md.Warningf(
			"The crawl was cancelled after %d fetch attempt(s). Pages still queued were not visited.",
			result.Attempts(),
		)
	case result.Truncated:
		md.Importantf(
			"The page limit was reached after %d fetch attempt(s). Pages still queued were not visited.",
			result.Attempts(),
		)
	case len(result.Visited) == 0 && len(result.Errors) > 0:
		md.Cautionf("No page could be fetched. %d request(s) failed.", len(result.Errors))
	case len(result.Errors) > 0:
		md.Note(fmt.Sprintf("%d request(s) failed. See the failed requests below.", len(result.Errors)))
	default:
		md.Tip("Every reachable page was fetched successfully.")
	}
	md.PlainText("")
}

// writeVisited writes the visited pages in visit order.
func (w *MarkdownWriter) writeVisited(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Visited Pages")
	md.PlainText("")

	if len(result.Visited) == 0 {
		md.PlainText("No pages were visited.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(result.Visited))
	for i, u := range result.Visited {
		rows[i] = []string{strconv.Itoa(i + 1), code(u)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "URL"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures writes a table of failed requests.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, result *model.CrawlResult) {
	if len(result.Errors) == 0 {
		return
	}

	md.H2("Failed Requests")
	md.PlainText("")

	rows := make([][]string, len(result.Errors))
	for i, e := range result.Errors {
		status := "-"
		if e.StatusCode != 0 {
			status = strconv.Itoa(e.StatusCode)
		}
		rows[i] = []string{
			code(e.URL),
			e.Kind.String(),
			status,
			strconv.Itoa(e.Depth),
			escapeCell(truncateString(errorMessage(e), 80)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Kind", "Status", "Depth", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteRuns outputs a table of archived runs.
func (w *MarkdownWriter) WriteRuns(runs []model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Crawl History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs have been archived.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			code(r.ID),
			code(r.Root),
			formatTime(r.StartedAt),
			r.Status(),
			strconv.Itoa(r.Visited),
			strconv.Itoa(r.Failed),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Root", "Started", "Status", "Visited", "Failed"},
		Rows:   rows,
	})

	return len(md.String()), md.Build()
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitecrawl](https://github.com/nao1215/sitecrawl)*")
}

// code formats s as inline code for a table cell.
func code(s string) string {
	return "`" + escapeCell(s) + "`"
}

// escapeCell keeps s from breaking the table row it is placed in.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// formatTime formats t, or "-" when it is unset.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

package report

import (
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/lexcrawl/internal/model"
)

// Writer defines the interface for report output.
// Implementations write run reports in various formats.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.RunReport) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.RunReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ForFile returns the writer matching the extension of path:
// pretty-printed JSON for .json, Markdown otherwise.
// jsonOpts are applied after pretty printing when JSON is chosen.
func ForFile(path string, output io.Writer, jsonOpts ...JSONWriterOption) Writer {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return NewJSONWriter(output, append([]JSONWriterOption{WithPrettyPrint()}, jsonOpts...)...)
	}
	return NewMarkdownWriter(output)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// status returns a short status text of the run.
func status(report *model.RunReport) string {
	switch {
	case report.ErrorMessage != "":
		return "failed: " + report.ErrorMessage
	case report.Stopped:
		return "stopped (partial results)"
	default:
		return "complete"
	}
}

// failureKinds returns the failure kinds of a crawl in sorted order.
func failureKinds(s *model.CrawlSummary) []string {
	return slices.Sorted(maps.Keys(s.Failures))
}

// bytesText formats a byte count for humans.
func bytesText(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// count formats an integer with thousands separators.
func count(n int) string {
	return humanize.Comma(int64(n))
}

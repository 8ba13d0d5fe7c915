package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/lexcrawl/internal/model"
)

// SimpleWriter outputs a human-readable text summary of a run.
// It is what lexcrawl prints to stdout when no report file is requested.
type SimpleWriter struct {
	baseWriter

	// verbose adds output paths and per-kind failure counts.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	if report.Crawl != nil {
		w.writeCrawl(&sb, report.Crawl)
	}
	if report.Index != nil {
		w.writeIndex(&sb, report.Index)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          LEXCRAWL RUN\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:      %s\n", report.RunID)
	fmt.Fprintf(sb, "Started:     %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Output:      %s\n", report.OutDir)
	fmt.Fprintf(sb, "Status:      %s\n", status(report))
	if len(report.PerformedSteps) > 0 {
		fmt.Fprintf(sb, "Steps:       %s\n", strings.Join(report.PerformedSteps, ", "))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCrawl(sb *strings.Builder, s *model.CrawlSummary) {
	writeSection(sb, "CRAWL")

	fmt.Fprintf(sb, "  Seed:               %s\n", s.Seed)
	fmt.Fprintf(sb, "  Scope:              %s\n", s.ScopeDomain)
	fmt.Fprintf(sb, "  Pages saved:        %s / %s\n", count(s.PagesFetched), count(s.PageCap))
	fmt.Fprintf(sb, "  Downloaded:         %s\n", bytesText(s.BytesFetched))
	fmt.Fprintf(sb, "  Failures:           %s\n", count(s.TotalFailures()))
	if w.verbose {
		for _, kind := range failureKinds(s) {
			fmt.Fprintf(sb, "    %-18s%s\n", kind+":", count(s.Failures[kind]))
		}
	}
	fmt.Fprintf(sb, "  Skipped (no text):  %s\n", count(s.Skipped))
	if s.Redirected > 0 {
		fmt.Fprintf(sb, "  Redirect repeats:   %s\n", count(s.Redirected))
	}
	if s.Truncated > 0 {
		fmt.Fprintf(sb, "  Truncated bodies:   %s\n", count(s.Truncated))
	}
	fmt.Fprintf(sb, "  Parse errors:       %s\n", count(s.ParseErrors))
	fmt.Fprintf(sb, "  URLs seen:          %s\n", count(s.URLsSeen))
	fmt.Fprintf(sb, "  Frontier remaining: %s\n", count(s.FrontierRemaining))
	fmt.Fprintf(sb, "  Stop reason:        %s\n", s.Reason)
	fmt.Fprintf(sb, "  Elapsed:            %s\n", s.Elapsed.Round(10*time.Millisecond))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeIndex(sb *strings.Builder, s *model.IndexSummary) {
	writeSection(sb, "LEXICON")

	fmt.Fprintf(sb, "  Pages indexed:      %s\n", count(s.Pages))
	fmt.Fprintf(sb, "  Tokens:             %s\n", count(s.Tokens))
	fmt.Fprintf(sb, "  Lemmas:             %s\n", count(s.Lemmas))
	fmt.Fprintf(sb, "  Unanalyzed tokens:  %s\n", count(s.SelfLemmas))
	if w.verbose {
		fmt.Fprintf(sb, "  Tokens file:        %s\n", s.TokensFile)
		fmt.Fprintf(sb, "  Lemmas file:        %s\n", s.LemmasFile)
	}
	fmt.Fprintf(sb, "  Elapsed:            %s\n", s.Elapsed.Round(10*time.Millisecond))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/lexcrawl/internal/model"
)

// MarkdownWriter outputs run reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	if report.Crawl != nil {
		w.writeCrawl(md, report.Crawl)
	}
	if report.Index != nil {
		w.writeIndex(md, report.Index)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information and an alert for its outcome.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("lexcrawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + report.RunID + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Output directory", "`" + report.OutDir + "`"},
			{"Status", status(report)},
		},
	})
	md.PlainText("")

	switch {
	case report.ErrorMessage != "":
		md.Cautionf("The run failed: %s", report.ErrorMessage)
	case report.Stopped:
		md.Warningf("The run was stopped before it finished. Results are partial.")
	default:
		md.Tip("The run completed.")
	}
	md.PlainText("")
}

// writeCrawl writes the crawl statistics.
func (w *MarkdownWriter) writeCrawl(md *markdown.Markdown, s *model.CrawlSummary) {
	md.H2("Crawl")
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + s.Seed + "`"},
		{"Scope", "`" + s.ScopeDomain + "`"},
		{"Pages saved", count(s.PagesFetched) + " / " + count(s.PageCap)},
		{"Downloaded", bytesText(s.BytesFetched)},
		{"Failed fetches", count(s.TotalFailures())},
		{"Skipped (not enough text)", count(s.Skipped)},
	}
	if s.Redirected > 0 {
		rows = append(rows, []string{"Dropped redirects to visited URLs", count(s.Redirected)})
	}
	if s.Truncated > 0 {
		rows = append(rows, []string{"Bodies cut at the size limit", count(s.Truncated)})
	}
	rows = append(rows,
		[]string{"Parse errors", count(s.ParseErrors)},
		[]string{"URLs seen", count(s.URLsSeen)},
		[]string{"Frontier remaining", count(s.FrontierRemaining)},
		[]string{"Stop reason", string(s.Reason)},
		[]string{"Elapsed", s.Elapsed.Round(10 * time.Millisecond).String()},
	)
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.TotalFailures() == 0 {
		return
	}

	md.H3("Failures")
	md.PlainText("")

	kinds := failureKinds(s)
	kindRows := make([][]string, len(kinds))
	for i, kind := range kinds {
		kindRows[i] = []string{kind, strconv.Itoa(s.Failures[kind])}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Count"},
		Rows:   kindRows,
	})
	md.PlainText("")

	w.writeFailureChart(md, s, kinds)
}

// writeFailureChart writes a mermaid pie chart of failures by kind.
func (w *MarkdownWriter) writeFailureChart(md *markdown.Markdown, s *model.CrawlSummary, kinds []string) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Failed fetches by kind"),
		piechart.WithShowData(true),
	)
	for _, kind := range kinds {
		chart.LabelAndIntValue(kind, uint64(s.Failures[kind]))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeIndex writes the lexicon statistics.
func (w *MarkdownWriter) writeIndex(md *markdown.Markdown, s *model.IndexSummary) {
	md.H2("Lexicon")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Pages indexed", count(s.Pages)},
			{"Tokens", count(s.Tokens)},
			{"Lemmas", count(s.Lemmas)},
			{"Unanalyzed tokens", count(s.SelfLemmas)},
			{"Tokens file", "`" + s.TokensFile + "`"},
			{"Lemmas file", "`" + s.LemmasFile + "`"},
			{"Elapsed", s.Elapsed.Round(10 * time.Millisecond).String()},
		},
	})
	md.PlainText("")

	if s.Tokens > 0 && s.SelfLemmas*2 > s.Tokens {
		md.Note(fmt.Sprintf("%d of %d tokens were not recognized by the analyzer and form their own lemma.", s.SelfLemmas, s.Tokens))
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [lexcrawl](https://github.com/nao1215/lexcrawl)*")
}

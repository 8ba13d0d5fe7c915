// Package report renders the summary of a lexcrawl run.
//
// Writers for different output formats:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: Markdown for --report files, with a mermaid chart of
//     failed fetches
//   - JSONWriter: JSON for --report files ending in .json
//
// Writers implement the Writer interface and can be combined with MultiWriter.
package report

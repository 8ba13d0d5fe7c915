// Package model defines the data structures shared by the crawl and index phases.
//
// This package contains the following main types:
//   - Page: A successfully fetched page with its sequence number and content
//   - IndexEntry: One line of the Page Index (sequence number to source URL)
//   - RunReport: The accumulated result of a crawl and/or index run
//   - CrawlSummary, IndexSummary: Per-phase statistics carried by RunReport
//
// Models live in their own package so that crawler, store, lexicon, pipeline
// and report can share them without import cycles.
package model

// Package database provides SQLite-based storage for lexcrawl runs.
//
// The CrawlDB stores, per run id:
//   - the run itself with its seed, scope, stop reason and counters
//   - metadata of every stored page (sequence number, URL, hash, size)
//   - every failed fetch with its failure kind
//   - the lemma groups written by the indexer
//
// The database uses modernc.org/sqlite, so it needs no cgo and lives in a
// single file. It mirrors the on-disk pages and index files and is never
// read back by the crawler or the indexer.
//
// Recorder adapts a CrawlDB to crawler.Observer so pages and failures are
// recorded while the crawl runs.
package database

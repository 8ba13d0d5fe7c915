// Package main provides the entry point for the lexcrawl CLI.
//
// lexcrawl crawls a website breadth-first up to a page cap, stores the pages
// on disk, and builds a token list and a lemma list from their text.
//
// Usage:
//
//	lexcrawl run <seed-url>
//	lexcrawl crawl <seed-url>
//	lexcrawl index
//
// See --help for all available options.
package main

// main is the entry point for lexcrawl.
func main() {
	Execute()
}

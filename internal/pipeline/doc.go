// Package pipeline runs the phases of a lexcrawl run in sequence.
//
// A run is a list of Steps sharing one model.RunReport: CrawlStep fetches
// the site into the page store, IndexStep turns the stored pages into the
// token and lemma lists. The crawl and index commands each run a single
// step; the run command runs both.
//
// The constructors in components.go translate a config.Config into the
// crawler and lexicon components, so every command builds them the same way.
package pipeline

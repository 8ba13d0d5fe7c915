// Package crawler implements a breadth-first, single-site web crawler.
//
// # Components
//
//   - NormalizeURL and Scope: canonical URLs and the registrable-domain
//     boundary of a crawl, with optional ignore/follow path globs
//   - Frontier: FIFO queue of URLs plus the visited set, marked at enqueue
//   - Fetcher: HTTP GET with a request timeout, a shared politeness delay
//     and classified failures (FetchError)
//   - HTMLParser: extracts visible text and absolute links
//   - Controller: dispatches fetches to a bounded worker pool and persists
//     pages through a PageSink with dense sequence numbers
//
// # Page cap
//
// The controller never has more fetches in flight than pages it may still
// save, so the number of persisted pages never exceeds the cap even with
// several workers.
//
// # Usage
//
//	scope, _ := crawler.NewScope(seed, "")
//	frontier := crawler.NewFrontier(scope)
//	ctrl := crawler.NewController(frontier, crawler.NewFetcher(), crawler.NewHTMLParser(), pageStore,
//		crawler.WithPageCap(100))
//	summary, err := ctrl.Run(ctx, seed)
package crawler

// Package scrape turns URLs into plain page text for research.
//
// Client caches pages by normalized URL, bounds concurrent fetches with the
// scrape limiter, retries each URL independently, and tolerates partial batch
// failure. Fetched pages are handed to an optional Indexer on a detached
// goroutine. Two fetchers are provided: Firecrawl (hosted rendering API, also
// offering a fused search-and-scrape call) and Direct (plain HTTP with local
// HTML extraction).
package scrape

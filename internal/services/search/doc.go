// Package search fetches search engine result pages for a keyword and
// location.
//
// Client layers a TTL cache and the retry policy over a provider Backend.
// Serper is the production backend; tests supply their own.
package search

// Package cache provides the TTL cache shared by the search and scrape
// clients.
//
// Entries are JSON encoded and stored through a Backend: MemoryBackend for a
// single process, or the sqlite backend in the store package for reuse across
// runs. Expiry is evaluated on read; Prune reclaims space.
package cache

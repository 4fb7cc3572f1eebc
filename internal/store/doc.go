// Package store persists seoforge state in a single SQLite database.
//
// One Store backs several repositories: workflow snapshots, research results,
// content-plan projects and pages, the TTL cache, and the scraped page index.
// Writes retry briefly on SQLITE_BUSY; schema changes ship as embedded
// migrations applied on Open.
package store

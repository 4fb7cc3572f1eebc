// Package research turns a keyword into a research artifact: the ranked SERP,
// the scraped text of the result pages, and the related questions.
//
// Orchestrator.Conduct runs synchronously; Start runs the same work in the
// background and Get reports it once stored. Results live in a Repository,
// in memory by default or in the sqlite store.
package research

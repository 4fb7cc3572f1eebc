// Package article holds the article domain types and the LLM-backed Writer
// that turns research into an outline, section drafts, and an edited article.
package article

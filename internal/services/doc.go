// Package services defines shared utilities consumed by the workflow stages
// and the external integrations (search, scrape, LLM providers).
//
// Key responsibilities:
//   - Context helpers that stamp workflow, project, and page identifiers plus
//     stage names and correlation identifiers for logging and tracing.
//   - The error taxonomy: sentinel markers, the typed ServiceError that carries
//     a provider name and rate-limit hint, and the Wrap helper.
//
// Classification for retry purposes happens in the retry package; this package
// only tags errors.
package services

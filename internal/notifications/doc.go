// Package notifications delivers article and batch events via ntfy.
//
// NewService publishes to the ntfy topic configured in config.toml and
// degrades to a no-op when no topic is set. Notifier adapts a Service to the
// workflow.Publisher and batch.Notifier hooks, applying the per-event toggles
// and logging delivery failures instead of failing the caller.
package notifications

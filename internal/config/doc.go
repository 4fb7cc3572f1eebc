// Package config loads, normalizes, and validates seoforge configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, overlays SEOFORGE_* environment variables, and
// honours provider-conventional key variables such as SERPER_API_KEY and
// OPENAI_API_KEY when the file leaves a key empty.
//
// Always obtain settings through this package so downstream code receives
// sanitized values and clear validation errors.
package config

// Package textutil provides the small text helpers shared by the scrape,
// research, and article packages: word counting, truncation, slugs, and a
// term-frequency similarity score used to spot near-duplicate pages.
package textutil

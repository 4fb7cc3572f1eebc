// Command seoforge researches keywords and generates SEO articles from the
// command line.
//
// Every command loads config.toml (see "seoforge config init"), opens the
// local SQLite store and runs in-process: "research" gathers SERP and page
// content, "workflow run" drives the research, outline, write and edit
// pipeline, and "batch run" generates every pending page of a content plan
// imported with "batch import". Pass --json for machine-readable output.
package main

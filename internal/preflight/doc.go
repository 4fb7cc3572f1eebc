// Package preflight provides readiness checks for the directories, keys and
// external services that article generation depends on.
//
// The CLI "doctor" command runs RunAll plus CheckDatabase and CheckEndpoint
// and renders the results; individual checks are safe to call on their own.
package preflight

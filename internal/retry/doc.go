// Package retry re-runs failing external calls with exponential backoff.
//
// A Policy bounds the number of attempts and the delay between them. Errors are
// classified by IsTransient unless the policy supplies its own predicate; the
// final error is handed back untouched so callers can still match it with
// errors.Is.
package retry

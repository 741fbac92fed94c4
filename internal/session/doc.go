// Package session holds one submission in progress: its pages, the grading
// result and the annotation editor, and drives the flow from upload to
// saved history.
//
// All methods are safe for concurrent use. While a grading call is in
// flight page edits are rejected with ErrPagesLocked.
package session

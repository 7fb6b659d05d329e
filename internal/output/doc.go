// Package output formats run results for display or machine consumption.
//
// Three formats are supported:
//   - json: the result object exactly as it is returned to callers
//   - text: a terminal summary with per-severity counts
//   - markdown: the reviewed summary as it would be posted, or the error
//
// Use [GetWriter] to obtain a [Writer] for a format string, or
// [WriteResult] to write straight to a file or stdout.
package output

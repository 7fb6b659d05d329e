// Package review contains the finding types and the model-facing logic for
// reviewing one cluster of a pull request.
//
// Engine builds the cluster prompt (diff, optional repository context and
// rules), parses the JSON response and, when parsing fails, gives the model
// exactly one chance to repair its output. Parsing is tolerant of code
// fences, prose around the JSON, bare finding arrays and string line numbers.
//
// Rules packs (rules.go) are YAML or JSON files that set focus areas,
// override severities per category and declare required checks.
//
// RenderMarkdown is the lossless formatter used when filtering is disabled:
// every finding of every cluster appears in the output, grouped by severity.
package review

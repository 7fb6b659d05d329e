// Package cli wires together the Cobra command tree for the sieve binary.
//
// It defines the root command and all subcommands (review, fetch, config,
// models, cache, version), binds flags, reads configuration, assembles the
// review pipeline, and returns deterministic exit codes for CI gating.
package cli

// Package cache provides a file-based cache for model responses.
//
// Entries are keyed by a SHA-256 hash of the provider name, model, and the
// full prompt pair. Each entry stores the raw response with a creation
// timestamp and a TTL (in seconds); expired entries are skipped on read and
// can be removed with Prune. Prompts reach the cache only after secret
// redaction, so nothing stored here contains credentials found in a diff.
//
// The default directory is $XDG_CACHE_HOME/sieve (or the OS-appropriate
// equivalent).
package cache

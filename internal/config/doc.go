// Package config loads and merges sieve configuration with koanf.
//
// Precedence (highest to lowest):
//  1. CLI flags, passed to [Load] as overrides keyed by dotted path
//  2. Environment variables (SIEVE_PROVIDER, SIEVE_REVIEW__PARALLELISM, etc.)
//  3. Config file ($XDG_CONFIG_HOME/sieve/config.toml or --config)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Init] to write a default config
// file, and [Set] to update a single key in the config file.
package config

// Package ghcli drives the GitHub CLI as an alternative fetch and publish
// backend to the REST client.
//
// Only an allow-list of gh subcommands may run. Text output is cut at a
// configurable length and marked with "<truncated>".
package ghcli

// Sieve is a CLI that reviews GitHub pull requests with LLM providers.
//
// It fetches a pull request, groups the changed files into clusters, reviews
// each cluster, filters the findings into one markdown comment and posts it
// on the pull request. The run result is printed as JSON with deterministic
// exit codes suitable for CI.
//
// Usage:
//
//	sieve review https://github.com/owner/repo/pull/42
//	sieve review --pr-url https://github.com/owner/repo/pull/42 --dry-run
//	sieve fetch https://github.com/owner/repo/pull/42
//	sieve config init
//	sieve models doctor
package main

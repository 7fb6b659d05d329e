// Package redact removes secrets from diff content before it is sent to any
// model provider or written to the response cache.
//
// Two detectors are layered. Regex heuristics cover common secret shapes:
// API keys, JWTs, private keys, AWS keys, bearer tokens, database connection
// strings, and provider-specific tokens (Anthropic, OpenAI, GitHub, Slack).
// The gitleaks default rule set then catches the long tail of vendor formats.
//
// Path-based redaction is also supported: files whose paths match configured
// glob patterns have their entire content replaced with [REDACTED] rather than
// being scanned line by line.
package redact

// Package github is a small GitHub REST API client used as the fetch and
// publish capability of the review pipeline.
//
// Fetch reads pull request metadata, the unified diff and the changed file
// list; Publish posts one conversation comment through the issues API.
// Requests carry GITHUB_TOKEN as a bearer token, honour GITHUB_API_URL for
// GitHub Enterprise and are paced by a token-bucket limiter.
package github

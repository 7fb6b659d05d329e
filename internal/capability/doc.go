// Package capability defines the external operations a stage may invoke and
// the registry that decides which stage gets which.
//
// There are three capabilities: [Fetcher] reads a pull request, [Searcher]
// looks up code in the local checkout, and [Publisher] posts a comment. A
// [Registry] hands each stage a [Set] containing only what that stage needs;
// members a stage was not granted are nil, so least privilege is enforced by
// construction rather than by convention.
package capability

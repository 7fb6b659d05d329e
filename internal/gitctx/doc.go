// Package gitctx inspects the local git checkout that sieve runs from.
//
// The review stage may search the repository for context, but only when the
// checkout's origin remote is the repository the pull request belongs to.
// [GetRepoMeta] reads the checkout root, HEAD and the parsed origin remote;
// [RepoMeta.Matches] compares it against a pull request reference.
// [MatchesAny] is the glob matcher shared by the path filters.
package gitctx

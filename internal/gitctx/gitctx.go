package gitctx

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dshills/sieve/internal/changeset"
)

var (
	httpsRemoteRe = regexp.MustCompile(`^(?:https?|ssh|git)://(?:[^@/]+@)?([^/:]+)(?::\d+)?/([^/]+)/([^/]+?)/?$`)
	scpRemoteRe   = regexp.MustCompile(`^(?:[^@]+@)?([^:/]+):([^/]+)/([^/]+?)/?$`)
)

// RepoMeta contains metadata about a local checkout.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
	Host   string
	Owner  string
	Repo   string
}

// Matches reports whether the checkout's origin remote points at the
// repository of ref. Owner and repo compare case-insensitively.
func (m RepoMeta) Matches(ref changeset.Ref) bool {
	if m.Owner == "" || m.Repo == "" {
		return false
	}
	if ref.Host != "" && m.Host != "" && !strings.EqualFold(ref.Host, m.Host) {
		return false
	}
	return strings.EqualFold(m.Owner, ref.Owner) && strings.EqualFold(m.Repo, ref.Repo)
}

// GetRepoMeta collects metadata for the checkout containing dir. A
// missing origin remote leaves Host, Owner and Repo empty.
func GetRepoMeta(ctx context.Context, dir string) (RepoMeta, error) {
	root, err := gitOutput(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, fmt.Errorf("not a git repository: %w", err)
	}
	head, err := gitOutput(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := gitOutput(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	meta := RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}
	if url, err := gitOutput(ctx, dir, "remote", "get-url", "origin"); err == nil {
		meta.Host, meta.Owner, meta.Repo, _ = ParseRemoteURL(strings.TrimSpace(url))
	}
	return meta, nil
}

// ParseRemoteURL extracts host, owner and repo from a git remote URL in
// HTTPS, ssh:// or scp-like form.
func ParseRemoteURL(url string) (host, owner, repo string, err error) {
	url = strings.TrimSuffix(strings.TrimSpace(url), ".git")

	if m := httpsRemoteRe.FindStringSubmatch(url); len(m) == 4 {
		return m[1], m[2], m[3], nil
	}
	if m := scpRemoteRe.FindStringSubmatch(url); len(m) == 4 {
		return m[1], m[2], m[3], nil
	}
	return "", "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", url)
}

// MatchesAny returns true if the path matches any of the given glob patterns.
// A leading "**/" matches at any depth and a trailing "/**" matches
// everything under a directory.
func MatchesAny(path string, patterns []string) bool {
	path = filepath.ToSlash(path)
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
			trimmed := strings.TrimPrefix(dir, "**/")
			if strings.HasPrefix(path, trimmed+"/") || strings.Contains(path, "/"+trimmed+"/") {
				return true
			}
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), fmt.Errorf("%s: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}

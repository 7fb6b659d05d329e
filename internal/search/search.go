package search

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/sieve/internal/capability"
)

const (
	// LineCharLimit is the longest matched line returned verbatim.
	LineCharLimit = 1000
	// TooLongLine replaces matched lines over LineCharLimit.
	TooLongLine = "<Too many characters>"
	// ReadCharLimit caps ReadFile output.
	ReadCharLimit = 5000
	// TruncatedMarker ends ReadFile output cut at ReadCharLimit.
	TruncatedMarker = "<TRUNCATED>"
	// DefaultMaxMatches bounds FindText results.
	DefaultMaxMatches = 200
)

var (
	// ErrOutsideRoot is returned for paths that resolve outside the root.
	ErrOutsideRoot = errors.New("path is outside the search root")
	// ErrTooBroad is returned for a text pattern of "*".
	ErrTooBroad = errors.New("pattern * is too broad, provide a more specific pattern")
	// ErrNotDir is returned when FindFiles is given a file.
	ErrNotDir = errors.New("not a directory")
	// ErrNotFile is returned when ReadFile is given a directory.
	ErrNotFile = errors.New("not a file")
)

// Tool implements capability.Searcher rooted at one directory.
type Tool struct {
	root       string
	maxMatches int
	log        zerolog.Logger
}

var _ capability.Searcher = (*Tool)(nil)

// New creates a Tool rooted at root.
func New(root string, log zerolog.Logger) (*Tool, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving search root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("search root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("search root %s: %w", abs, ErrNotDir)
	}
	return &Tool{root: abs, maxMatches: DefaultMaxMatches, log: log}, nil
}

// Root returns the absolute search root.
func (t *Tool) Root() string { return t.root }

// resolve maps p, absolute or relative to the root, to an absolute path
// and its slash-separated path relative to the root.
func (t *Tool) resolve(p string) (abs, rel string, err error) {
	if p == "" {
		p = "."
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(t.root, p)
	}
	abs = filepath.Clean(p)
	r, err := filepath.Rel(t.root, abs)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%s: %w", p, ErrOutsideRoot)
	}
	return abs, filepath.ToSlash(r), nil
}

// FindFiles lists files under dir whose root-relative path matches pattern.
// depth bounds how many directory levels below dir are entered.
func (t *Tool) FindFiles(ctx context.Context, dir, pattern string, depth int) ([]string, error) {
	start, _, err := t.resolve(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(start)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotDir)
	}
	if depth < 0 {
		depth = 0
	}
	re := compileGlob(substring(pattern), false)

	var out []string
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fromStart, _ := filepath.Rel(start, p)
		fromStart = filepath.ToSlash(fromStart)
		if Skipped(fromStart) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if fromStart != "." && strings.Count(fromStart, "/")+1 > depth {
				return filepath.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(t.root, p)
		rel = filepath.ToSlash(rel)
		if re.MatchString(rel) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	t.log.Debug().Str("dir", dir).Str("pattern", pattern).Int("results", len(out)).Msg("find files")
	return out, nil
}

// FindText returns lines matching pattern in the file or directory tree at
// path. Each line must match the whole pattern.
func (t *Tool) FindText(ctx context.Context, pattern, path string) ([]capability.Match, error) {
	if strings.TrimSpace(pattern) == "*" {
		return nil, ErrTooBroad
	}
	start, _, err := t.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(start)
	if err != nil {
		return nil, err
	}
	re := compileGlob(substring(pattern), false)

	var files []string
	if info.IsDir() {
		err = filepath.WalkDir(start, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil
			}
			fromStart, _ := filepath.Rel(start, p)
			if Skipped(filepath.ToSlash(fromStart)) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		files = []string{start}
	}

	var matches []capability.Match
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := t.grepFile(f, re, t.maxMatches-len(matches))
		if err != nil {
			t.log.Warn().Err(err).Str("file", f).Msg("skipping unreadable file")
			continue
		}
		matches = append(matches, found...)
		if len(matches) >= t.maxMatches {
			break
		}
	}
	t.log.Debug().Str("path", path).Str("pattern", pattern).Int("results", len(matches)).Msg("find text")
	return matches, nil
}

func (t *Tool) grepFile(abs string, re *regexp.Regexp, limit int) ([]capability.Match, error) {
	fh, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	rel, _ := filepath.Rel(t.root, abs)
	rel = filepath.ToSlash(rel)

	var out []capability.Match
	r := bufio.NewReader(fh)
	for n := 1; len(out) < limit; n++ {
		line, err := r.ReadString('\n')
		if line == "" && err != nil {
			break
		}
		line = strings.TrimRight(line, "\r\n")
		if re.MatchString(line) {
			text := strings.TrimSpace(line)
			if len(line) > LineCharLimit {
				text = TooLongLine
			}
			out = append(out, capability.Match{Path: rel, Line: n, Text: text})
		}
		if err != nil {
			break
		}
	}
	return out, nil
}

// ReadFile returns the file at path, optionally limited to the 1-indexed
// inclusive line range [start, end]. Zero leaves a bound open.
func (t *Tool) ReadFile(ctx context.Context, path string, start, end int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	abs, _, err := t.resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s: %w", path, ErrNotFile)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	content := string(data)
	if start > 0 || end > 0 {
		lines := strings.SplitAfter(content, "\n")
		lo, hi := 0, len(lines)
		if start > 0 {
			lo = min(start-1, len(lines))
		}
		if end > 0 {
			hi = min(end, len(lines))
		}
		if lo > hi {
			lo = hi
		}
		content = strings.Join(lines[lo:hi], "")
	}
	if len(content) > ReadCharLimit {
		content = content[:ReadCharLimit] + "\n" + TruncatedMarker
	}
	return content, nil
}

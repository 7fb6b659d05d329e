package stage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/sieve/internal/capability"
	"github.com/dshills/sieve/internal/cluster"
)

const (
	hunkPadding = 10
	// maxUsageSymbols bounds how many declared names are looked up per cluster.
	maxUsageSymbols = 5
	// maxUsageMatches bounds the usage sites listed per name.
	maxUsageMatches = 5
)

var (
	hunkRe = regexp.MustCompile(`(?m)^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)
	declRe = regexp.MustCompile(`\b(?:func(?:\s*\([^)]*\))?|def|class|type|interface|struct|fn)\s+([A-Za-z_][A-Za-z0-9_]{2,})`)
)

type lineRange struct{ start, end int }

// hunkRanges returns the new-file line ranges touched by a file diff.
func hunkRanges(diff string) []lineRange {
	var out []lineRange
	for _, m := range hunkRe.FindAllStringSubmatch(diff, -1) {
		start, _ := strconv.Atoi(m[1])
		count := 1
		if m[2] != "" {
			count, _ = strconv.Atoi(m[2])
		}
		if count == 0 {
			continue
		}
		out = append(out, lineRange{start: start, end: start + count - 1})
	}
	return out
}

// addedSymbols returns the names declared on added lines of a diff, in
// order of appearance and without duplicates.
func addedSymbols(diff string) []string {
	var out []string
	seen := map[string]bool{}
	for _, line := range strings.Split(diff, "\n") {
		if !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
			continue
		}
		for _, m := range declRe.FindAllStringSubmatch(line[1:], -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
		}
	}
	return out
}

// isTestFor reports whether found is a test file named by pattern. Search
// patterns match anywhere in a path, so the base name is checked here.
func isTestFor(found, pattern string) bool {
	return strings.HasPrefix(path.Base(found), pattern)
}

// testPatterns lists name patterns that identify a test for the file.
func testPatterns(filename string) []string {
	base := path.Base(filename)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" || strings.Contains(stem, "test") || strings.Contains(stem, "spec") {
		return nil
	}
	return []string{stem + "_test.", stem + ".test.", stem + ".spec.", "test_" + stem + "."}
}

// gatherContext reads the surroundings of every changed hunk, the first
// related test file of each changed file and the usage sites of names
// declared on added lines, up to budget bytes. Files that do not exist in
// the local checkout are skipped.
func gatherContext(ctx context.Context, s capability.Searcher, c cluster.Cluster, budget int, log zerolog.Logger) string {
	var b strings.Builder
	inCluster := make(map[string]bool, len(c.Files))
	for _, f := range c.Files {
		inCluster[f.Filename] = true
	}

	add := func(title, body string) bool {
		section := fmt.Sprintf("### %s\n```\n%s\n```\n\n", title, strings.TrimRight(body, "\n"))
		if b.Len()+len(section) > budget {
			return false
		}
		b.WriteString(section)
		return true
	}

	for _, f := range c.Files {
		if ctx.Err() != nil {
			break
		}
		for _, r := range hunkRanges(f.Diff) {
			lo := max(1, r.start-hunkPadding)
			hi := r.end + hunkPadding
			text, err := s.ReadFile(ctx, f.Filename, lo, hi)
			if err != nil {
				log.Debug().Err(err).Str("file", f.Filename).Msg("no local context")
				break
			}
			if !add(fmt.Sprintf("%s (lines %d-%d)", f.Filename, lo, hi), text) {
				return b.String()
			}
		}

		dir := path.Dir(f.Filename)
		for _, p := range testPatterns(f.Filename) {
			found, err := s.FindFiles(ctx, dir, p, 0)
			if err != nil {
				continue
			}
			test := ""
			for _, cand := range found {
				if isTestFor(cand, p) {
					test = cand
					break
				}
			}
			if test == "" {
				continue
			}
			if inCluster[test] {
				break
			}
			text, err := s.ReadFile(ctx, test, 0, 0)
			if err != nil {
				break
			}
			if !add(test+" (related test)", text) {
				return b.String()
			}
			break
		}
	}

	var symbols []string
	for _, f := range c.Files {
		symbols = append(symbols, addedSymbols(f.Diff)...)
	}
	if len(symbols) > maxUsageSymbols {
		symbols = symbols[:maxUsageSymbols]
	}
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		body := usageSites(ctx, s, sym, inCluster, log)
		if body == "" {
			continue
		}
		if !add("usages of "+sym, body) {
			break
		}
	}
	return b.String()
}

// usageSites lists lines outside the cluster that mention sym as a whole
// word, one "path:line: text" entry per line.
func usageSites(ctx context.Context, s capability.Searcher, sym string, skip map[string]bool, log zerolog.Logger) string {
	matches, err := s.FindText(ctx, "*"+sym+"*", ".")
	if err != nil {
		log.Debug().Err(err).Str("symbol", sym).Msg("usage search failed")
		return ""
	}
	word := regexp.MustCompile(`\b` + regexp.QuoteMeta(sym) + `\b`)
	var b strings.Builder
	n := 0
	for _, m := range matches {
		if skip[m.Path] || !word.MatchString(m.Text) {
			continue
		}
		fmt.Fprintf(&b, "%s:%d: %s\n", m.Path, m.Line, m.Text)
		if n++; n == maxUsageMatches {
			break
		}
	}
	return b.String()
}

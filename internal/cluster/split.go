package cluster

import "strings"

var escapeReplacer = strings.NewReplacer(
	`\\'`, `'`,
	`\\"`, `"`,
	`\'`, `'`,
)

// NormalizeEscapes collapses escape sequences that shell quoting leaves
// around quote characters in fetched diff text.
func NormalizeEscapes(s string) string {
	return escapeReplacer.Replace(s)
}

// SplitFiles cuts a unified diff into one FileDiff per "diff --git" section.
// Sections whose path cannot be determined are skipped.
func SplitFiles(diff string) []FileDiff {
	var out []FileDiff
	for _, sec := range splitSections(diff) {
		path := pathFromSection(sec)
		if path == "" {
			continue
		}
		out = append(out, FileDiff{Filename: path, Diff: sec})
	}
	return out
}

// JoinFiles reassembles per-file diffs into a single diff.
func JoinFiles(files []FileDiff) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(f.Diff)
		if !strings.HasSuffix(f.Diff, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func splitSections(diff string) []string {
	if strings.TrimSpace(diff) == "" {
		return nil
	}
	var sections []string
	var current strings.Builder
	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		if strings.HasPrefix(line, "diff --git") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if s := current.String(); strings.TrimSpace(s) != "" {
		sections = append(sections, s)
	}
	return sections
}

// pathFromSection prefers the post-image path, falls back to the pre-image
// path for deletions, and finally to the "diff --git" header for binary or
// mode-only changes.
func pathFromSection(section string) string {
	var oldPath string
	for _, line := range strings.Split(section, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ b/"):
			return strings.TrimPrefix(line, "+++ b/")
		case strings.HasPrefix(line, "--- a/"):
			oldPath = strings.TrimPrefix(line, "--- a/")
		case strings.HasPrefix(line, "@@"):
			if oldPath != "" {
				return oldPath
			}
		}
	}
	if oldPath != "" {
		return oldPath
	}
	first, _, _ := strings.Cut(section, "\n")
	if rest, ok := strings.CutPrefix(first, "diff --git a/"); ok {
		if i := strings.LastIndex(rest, " b/"); i >= 0 {
			return rest[i+len(" b/"):]
		}
	}
	return ""
}

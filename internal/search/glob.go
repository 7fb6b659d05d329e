package search

import (
	"path"
	"regexp"
	"strings"
)

// blacklist holds globs for paths search never visits. Patterns ending in
// "/*" name directories.
var blacklist = []string{
	".git/*", "node_modules/*", ".next/*", ".turbo/*", "__pycache__/*", "vendor/*",
	"*.wasm", "*.woff2", "*.pack", "*.pack.gz", "*.tar.zst", "*.pyc",
	"*.so", "*.dll", "*.dylib", "*.exe", "*.bin", "*.dat",
	"*.db", "*.sqlite", "*.sqlite3", "*.log", "*.cache", "*.tmp", "*.temp",
	"*.swp", "*.swo", "*.bak", "*.backup", "*.orig", "*.rej", "*.patch", "*.diff",
	"*.tar", "*.gz", "*.zip", "*.rar", "*.7z", "*.bz2", "*.xz", "*.lzma", "*.lz4",
	"*.zst", "*.tgz", "*.tbz2", "*.txz", "*.tlz", "*.tlz4", "*.tzst",
	"*.pdf", "*.docx", "*.doc", "*.xls", "*.xlsx", "*.ppt", "*.pptx",
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.bmp", "*.tiff", "*.ico",
}

var (
	blacklistDirs  = map[string]bool{}
	blacklistFiles []*regexp.Regexp
)

func init() {
	for _, p := range blacklist {
		if dir, ok := strings.CutSuffix(p, "/*"); ok {
			blacklistDirs[dir] = true
			continue
		}
		blacklistFiles = append(blacklistFiles, compileGlob(p, false))
	}
}

// compileGlob translates a shell glob into an anchored regexp. "*" matches
// any run of characters including "/", "?" one character, and [seq] or
// [!seq] a character class.
func compileGlob(pattern string, caseSensitive bool) *regexp.Regexp {
	var b strings.Builder
	if !caseSensitive {
		b.WriteString("(?i)")
	}
	b.WriteString("(?s)^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			j := strings.IndexByte(pattern[i+1:], ']')
			if j < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := pattern[i+1 : i+1+j]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + strings.ReplaceAll(class, `\`, `\\`) + "]")
			i += j + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return regexp.MustCompile("^" + regexp.QuoteMeta(pattern) + "$")
	}
	return re
}

// substring wraps a pattern without "*" so that it matches anywhere.
func substring(pattern string) string {
	if !strings.Contains(pattern, "*") {
		return "*" + pattern + "*"
	}
	return pattern
}

// Skipped reports whether a slash-separated relative path is hidden from
// search: any dot-prefixed component, a blacklisted directory component or
// a blacklisted file name.
func Skipped(rel string) bool {
	if rel == "." || rel == "" {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") || blacklistDirs[part] {
			return true
		}
	}
	base := path.Base(rel)
	for _, re := range blacklistFiles {
		if re.MatchString(base) {
			return true
		}
	}
	return false
}

package redact

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/dshills/sieve/internal/gitctx"
)

const placeholder = "[REDACTED]"

// Placeholder is the text substituted for every detected secret.
const Placeholder = placeholder

// secretPatterns are regex heuristics for common secret types. They run
// before the gitleaks rule set and catch short assignments that gitleaks
// deliberately ignores as low-entropy.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{22,}`),
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`(?i)(postgres|mysql|mongodb(\+srv)?|redis)://[^:\s]+:[^@\s]+@`),
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
}

// Secrets replaces regex-detected secrets in text with [REDACTED].
func Secrets(text string) string {
	result := text
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllString(result, placeholder)
	}
	return result
}

// ShouldRedactPath checks if a file path matches any of the redaction path patterns.
func ShouldRedactPath(path string, patterns []string) bool {
	return gitctx.MatchesAny(path, patterns)
}

// Redactor combines the regex heuristics with the gitleaks default rule set.
type Redactor struct {
	paths    []string
	gitleaks bool
	log      zerolog.Logger

	once     sync.Once
	detector *detect.Detector
}

// New returns a Redactor. When useGitleaks is false only the regex
// heuristics run.
func New(redactPaths []string, useGitleaks bool, log zerolog.Logger) *Redactor {
	return &Redactor{paths: redactPaths, gitleaks: useGitleaks, log: log}
}

func (r *Redactor) loadDetector() *detect.Detector {
	r.once.Do(func() {
		if !r.gitleaks {
			return
		}
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			r.log.Warn().Err(err).Msg("gitleaks detector unavailable, using regex redaction only")
			return
		}
		r.detector = d
	})
	return r.detector
}

// Text redacts secrets anywhere in text.
func (r *Redactor) Text(text string) string {
	text = Secrets(text)
	d := r.loadDetector()
	if d == nil {
		return text
	}
	findings := d.DetectString(text)
	if len(findings) == 0 {
		return text
	}
	secrets := make([]string, 0, len(findings))
	for _, f := range findings {
		if f.Secret != "" && f.Secret != placeholder {
			secrets = append(secrets, f.Secret)
		}
	}
	// Longest first so a secret containing another is replaced whole.
	sort.Slice(secrets, func(i, j int) bool { return len(secrets[i]) > len(secrets[j]) })
	for _, s := range secrets {
		text = strings.ReplaceAll(text, s, placeholder)
	}
	r.log.Debug().Int("findings", len(findings)).Msg("gitleaks redacted secrets")
	return text
}

// File redacts a single file's diff, honouring the path policy.
func (r *Redactor) File(path, content string) string {
	if ShouldRedactPath(path, r.paths) {
		return placeholder + " (file content redacted by path policy)\n"
	}
	return r.Text(content)
}

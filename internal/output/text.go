package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/sieve/internal/pipeline"
	"github.com/dshills/sieve/internal/review"
)

// TextWriter outputs a human-readable terminal summary.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, res pipeline.Result) error {
	ew := &errWriter{w: w}

	if !res.Success {
		reason := "unknown error"
		if res.Error != nil {
			reason = *res.Error
		}
		ew.printf("Review failed: %s\n", reason)
		return ew.err
	}

	ew.printf("Sieve review: %d cluster(s)\n", len(res.Clusters))
	for _, c := range res.Clusters {
		ew.printf("  - %s (%d file(s))\n", c.Name, len(c.Files))
	}

	counts := review.Count(res.Reviews)
	ew.printf("\nFindings: %d total (high: %d, medium: %d, low: %d)\n",
		counts.Total(), counts.High, counts.Medium, counts.Low)

	if counts.Total() == 0 {
		ew.println("\nNo issues found.")
	}

	for _, sev := range []review.Severity{review.SeverityHigh, review.SeverityMedium, review.SeverityLow} {
		var findings []review.Finding
		for _, r := range res.Reviews {
			for _, f := range r.Reviews {
				if f.Severity == sev || (sev == review.SeverityLow && review.SeverityRank(f.Severity) == 0) {
					findings = append(findings, f)
				}
			}
		}
		if len(findings) == 0 {
			continue
		}
		review.SortFindings(findings)

		ew.printf("\n%s %s (%d)\n", severityIcon(sev), strings.ToUpper(string(sev)), len(findings))
		for _, f := range findings {
			ew.printf("\n  %s\n", locationOf(f))
			for _, line := range wrapText(f.Issue, 70) {
				ew.printf("    %s\n", line)
			}
			if f.Suggestion != "" {
				ew.println("  Suggestion:")
				for _, line := range wrapText(f.Suggestion, 70) {
					ew.printf("    %s\n", line)
				}
			}
		}
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func locationOf(f review.Finding) string {
	path := f.File
	if path == "" {
		path = "unknown"
	}
	switch {
	case f.StartLine > 0 && f.EndLine > f.StartLine:
		return fmt.Sprintf("%s:%d-%d", path, f.StartLine, f.EndLine)
	case f.StartLine > 0:
		return fmt.Sprintf("%s:%d", path, f.StartLine)
	default:
		return path
	}
}

func severityIcon(s review.Severity) string {
	switch s {
	case review.SeverityHigh:
		return "[!!]"
	case review.SeverityMedium:
		return "[!]"
	case review.SeverityLow:
		return "[-]"
	default:
		return "[?]"
	}
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

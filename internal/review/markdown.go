package review

import (
	"fmt"
	"strings"
)

type sectionSpec struct {
	severity Severity
	title    string
}

var sections = []sectionSpec{
	{SeverityHigh, "High Priority Issues"},
	{SeverityMedium, "Medium Priority Issues"},
	{SeverityLow, "Low Priority Issues"},
}

// RenderMarkdown formats reviews as a pull request comment without dropping
// anything: every finding's cluster, file, line range, snippet, issue and
// suggestion appear verbatim. Findings are grouped by severity and keep their
// cluster order within a group.
func RenderMarkdown(reviews []ClusterReview) string {
	var b strings.Builder
	b.WriteString("## Code Review Summary\n")

	for _, sec := range sections {
		fmt.Fprintf(&b, "\n### %s\n\n", sec.title)
		n := 0
		for _, r := range reviews {
			for _, f := range r.Reviews {
				if severityBucket(f.Severity) != sec.severity {
					continue
				}
				n++
				writeFinding(&b, n, r.ClusterName, f)
			}
		}
		if n == 0 {
			b.WriteString("None.\n")
		}
	}

	counts := Count(reviews)
	b.WriteString("\n### Overall Assessment\n\n")
	if counts.Total() == 0 {
		fmt.Fprintf(&b, "Reviewed %d cluster(s); no actionable issues found.\n", len(reviews))
	} else {
		fmt.Fprintf(&b, "Reviewed %d cluster(s): %d high, %d medium, %d low priority issue(s).\n",
			len(reviews), counts.High, counts.Medium, counts.Low)
	}
	return b.String()
}

func severityBucket(s Severity) Severity {
	if SeverityRank(s) == 0 {
		return SeverityLow
	}
	return s
}

func writeFinding(b *strings.Builder, n int, clusterName string, f Finding) {
	fmt.Fprintf(b, "%d. **%s**", n, clusterName)
	if loc := location(f); loc != "" {
		fmt.Fprintf(b, " `%s`", loc)
	}
	b.WriteString("\n")
	fmt.Fprintf(b, "   - Issue: %s\n", f.Issue)
	if f.Suggestion != "" {
		fmt.Fprintf(b, "   - Suggestion: %s\n", f.Suggestion)
	}
	if f.CodeSnippet != "" {
		fence := fenceFor(f.CodeSnippet)
		snippet := f.CodeSnippet
		if !strings.HasSuffix(snippet, "\n") {
			snippet += "\n"
		}
		fmt.Fprintf(b, "\n%s\n%s%s\n", fence, snippet, fence)
	}
	b.WriteString("\n")
}

func location(f Finding) string {
	var lines string
	switch {
	case f.StartLine > 0 && f.EndLine > f.StartLine:
		lines = fmt.Sprintf("L%d-L%d", f.StartLine, f.EndLine)
	case f.StartLine > 0:
		lines = fmt.Sprintf("L%d", f.StartLine)
	}
	switch {
	case f.File != "" && lines != "":
		return f.File + ":" + lines
	case f.File != "":
		return f.File
	default:
		return lines
	}
}

// fenceFor returns a backtick fence longer than any backtick run in s.
func fenceFor(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	if longest < 3 {
		return "```"
	}
	return strings.Repeat("`", longest+1)
}

package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/sieve/internal/pipeline"
)

// MarkdownWriter outputs the reviewed summary, which is already markdown,
// or a short error section for failed runs.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, res pipeline.Result) error {
	if !res.Success {
		reason := "unknown error"
		if res.Error != nil {
			reason = *res.Error
		}
		_, err := fmt.Fprintf(w, "## Review failed\n\n> %s\n", strings.ReplaceAll(reason, "\n", "\n> "))
		return err
	}

	summary := ""
	if res.Summary != nil {
		summary = strings.TrimRight(*res.Summary, "\n")
	}
	if strings.TrimSpace(summary) == "" {
		_, err := fmt.Fprintln(w, "No issues found. :white_check_mark:")
		return err
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}

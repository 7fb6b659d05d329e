package cluster

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a code review assistant. You group the files of a pull request into logical clusters so that each cluster can be reviewed on its own.

Cluster files based on:
- Related functionality
- Similar file types
- Dependencies between changes

Every file must appear in exactly one cluster. Use the filenames exactly as given.

You MUST respond with ONLY a JSON object. No markdown, no explanation, no preamble.

The object must have this exact structure:
{
  "clusters": [
    {
      "name": "Short descriptive cluster name",
      "description": "Brief description of what the cluster contains",
      "files": [{"filename": "path/to/file.go"}]
    }
  ]
}`

// SystemPrompt returns the system prompt for the clustering step.
func SystemPrompt() string {
	return systemPrompt
}

// PromptInput is what the clustering prompt is built from.
type PromptInput struct {
	Title    string
	Body     string
	Files    []FileDiff
	MaxBytes int
}

// BuildUserPrompt lists the changed files and includes as much of each diff
// as fits in MaxBytes. Files past the budget are listed by name only.
func BuildUserPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("Cluster the files changed by this pull request.\n\n")
	if in.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", in.Title)
	}
	if body := strings.TrimSpace(in.Body); body != "" {
		fmt.Fprintf(&b, "Description:\n%s\n", body)
	}

	b.WriteString("\nChanged files:\n")
	for _, f := range in.Files {
		fmt.Fprintf(&b, "- %s\n", f.Filename)
	}

	limited := in.MaxBytes > 0
	remaining := in.MaxBytes
	b.WriteString("\n--- BEGIN DIFF ---\n")
	for _, f := range in.Files {
		if limited && len(f.Diff) > remaining {
			fmt.Fprintf(&b, "diff --git a/%s b/%s\n(diff omitted, %d bytes)\n", f.Filename, f.Filename, len(f.Diff))
			continue
		}
		b.WriteString(f.Diff)
		remaining -= len(f.Diff)
	}
	b.WriteString("\n--- END DIFF ---\n")

	return b.String()
}

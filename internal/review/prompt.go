package review

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/sieve/internal/cluster"
)

const systemPrompt = `You are a senior code reviewer. You review one cluster of related changes from a pull request and produce structured findings in JSON format.

Rules:
1. Only review the changes shown in the diff. Do not comment on unchanged code.
2. Focus on security vulnerabilities, performance issues, potential bugs, maintainability and best practices violations. Avoid bikeshedding on style unless it impacts readability significantly.
3. Be concise and actionable. Every finding must include a concrete suggestion.
4. Give the start and end line of the affected snippet from the diff hunks (estimate if not available).
5. Rate severity as "high", "medium", or "low".
6. Categorize each finding as one of: bug, security, performance, correctness, style, maintainability, testing, docs.

You MUST respond with ONLY a JSON object. No markdown, no explanation, no preamble.

The object must have this exact structure:
{
  "cluster_name": "name of the cluster",
  "reviews": [
    {
      "file": "relative/file/path",
      "code_snippet": "relevant code",
      "start_line": 10,
      "end_line": 15,
      "issue": "detailed issue description",
      "suggestion": "suggested improvement",
      "severity": "high|medium|low",
      "category": "bug|security|performance|correctness|style|maintainability|testing|docs"
    }
  ]
}

If there are no issues, respond with an empty reviews array.`

// SystemPrompt returns the system prompt for reviewing a cluster.
func SystemPrompt() string {
	return systemPrompt
}

// PromptInput is what a cluster review prompt is built from.
type PromptInput struct {
	Cluster     cluster.Cluster
	Context     string
	Rules       *Rules
	MaxFindings int
}

// BuildUserPrompt constructs the user prompt for one cluster.
func BuildUserPrompt(in PromptInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Review the following code cluster.\n\nCluster: %s\n", in.Cluster.Name)
	desc := in.Cluster.Description
	if desc == "" {
		desc = "No description"
	}
	fmt.Fprintf(&b, "Description: %s\n", desc)

	if in.MaxFindings > 0 {
		fmt.Fprintf(&b, "Return at most %d findings.\n", in.MaxFindings)
	}

	files := in.Cluster.Filenames()
	if langs := detectLanguages(files); len(langs) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(langs, ", "))
	}

	if rulesSection := BuildRulesPromptSection(in.Rules); rulesSection != "" {
		b.WriteString(rulesSection)
	}

	b.WriteString("\n--- BEGIN DIFF ---\n")
	for _, f := range in.Cluster.Files {
		b.WriteString(f.Diff)
		if !strings.HasSuffix(f.Diff, "\n") {
			b.WriteByte('\n')
		}
	}
	b.WriteString("--- END DIFF ---\n")

	if ctx := strings.TrimSpace(in.Context); ctx != "" {
		b.WriteString("\nSurrounding code from the repository, for reference only:\n")
		b.WriteString("--- BEGIN CONTEXT ---\n")
		b.WriteString(ctx)
		b.WriteString("\n--- END CONTEXT ---\n")
	}

	return b.String()
}

const filterSystemPrompt = `You are a code review curator. You receive the reviews produced for every cluster of a pull request and keep only actionable, valuable feedback.

Remove reviews that are:
- Nitpicky or overly pedantic
- Purely stylistic without clear benefit
- Already handled by automated tools
- Too vague or non-specific
- Duplicate or redundant

Keep reviews that are:
- Security-related
- Performance-impacting
- Bug-causing
- Maintainability-improving
- Best practice violations with clear impact

Output the filtered reviews as markdown that will be posted as a pull request comment. Include code snippets and line numbers for every issue you keep. Use this format:

## Code Review Summary

### High Priority Issues
[List high severity issues with code snippets and line numbers]

### Medium Priority Issues
[List medium severity issues]

### Low Priority Issues
[List low severity issues]

### Overall Assessment
[Brief summary of the changes and overall quality]

Respond with the markdown only.`

// FilterSystemPrompt returns the system prompt for the filtering step.
func FilterSystemPrompt() string {
	return filterSystemPrompt
}

// BuildFilterPrompt serialises reviews for the filtering step.
func BuildFilterPrompt(reviews []ClusterReview) (string, error) {
	data, err := json.MarshalIndent(reviews, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding reviews: %w", err)
	}
	return "Reviews to filter:\n" + string(data) + "\n", nil
}

func detectLanguages(files []string) []string {
	langMap := map[string]string{
		".go":    "Go",
		".py":    "Python",
		".js":    "JavaScript",
		".ts":    "TypeScript",
		".tsx":   "TypeScript/React",
		".jsx":   "JavaScript/React",
		".rs":    "Rust",
		".java":  "Java",
		".rb":    "Ruby",
		".cpp":   "C++",
		".c":     "C",
		".h":     "C/C++",
		".cs":    "C#",
		".php":   "PHP",
		".swift": "Swift",
		".kt":    "Kotlin",
		".sql":   "SQL",
		".sh":    "Shell",
		".yaml":  "YAML",
		".yml":   "YAML",
		".json":  "JSON",
		".tf":    "Terraform",
	}

	seen := make(map[string]bool)
	var langs []string
	for _, f := range files {
		lang, ok := langMap[strings.ToLower(extOf(f))]
		if ok && !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	return langs
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 && !strings.ContainsRune(name[i:], '/') {
		return name[i:]
	}
	return ""
}

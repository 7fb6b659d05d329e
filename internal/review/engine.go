package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/sieve/internal/cluster"
	"github.com/dshills/sieve/internal/llm"
)

const maxTokens = 8192

// ErrMalformed is returned when model output is not a cluster review, even
// after the repair pass.
var ErrMalformed = errors.New("malformed review response")

// rawFinding is the JSON structure returned by the model.
type rawFinding struct {
	File        string     `json:"file"`
	Path        string     `json:"path"`
	CodeSnippet string     `json:"code_snippet"`
	StartLine   lineNumber `json:"start_line"`
	EndLine     lineNumber `json:"end_line"`
	Issue       string     `json:"issue"`
	Suggestion  string     `json:"suggestion"`
	Severity    string     `json:"severity"`
	Category    string     `json:"category"`
}

type rawReview struct {
	ClusterName string        `json:"cluster_name"`
	Reviews     *[]rawFinding `json:"reviews"`
}

// lineNumber accepts 12, "12" or "L12".
type lineNumber int

func (n *lineNumber) UnmarshalJSON(data []byte) error {
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*n = lineNumber(i)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "L")
	if s == "" {
		*n = 0
		return nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("line number %q: %w", s, err)
	}
	*n = lineNumber(i)
	return nil
}

// Engine reviews clusters with a model.
type Engine struct {
	llm         llm.Completer
	rules       *Rules
	maxFindings int
	log         zerolog.Logger
}

// NewEngine returns an Engine. rules may be nil.
func NewEngine(c llm.Completer, rules *Rules, maxFindings int, log zerolog.Logger) *Engine {
	return &Engine{llm: c, rules: rules, maxFindings: maxFindings, log: log}
}

// Review asks the model for findings on c. contextText is optional
// repository context gathered by the caller. A response that does not parse
// gets exactly one repair attempt.
func (e *Engine) Review(ctx context.Context, c cluster.Cluster, contextText string) (ClusterReview, error) {
	userPrompt := BuildUserPrompt(PromptInput{
		Cluster:     c,
		Context:     contextText,
		Rules:       e.rules,
		MaxFindings: e.maxFindings,
	})

	start := time.Now()
	resp, err := e.llm.Complete(ctx, llm.Request{System: SystemPrompt(), Prompt: userPrompt, MaxTokens: maxTokens})
	if err != nil {
		return ClusterReview{}, fmt.Errorf("provider review: %w", err)
	}

	review, err := ParseClusterReview(resp.Content, c.Name)
	if err != nil {
		e.log.Debug().Err(err).Str("cluster", c.Name).Msg("review response invalid, attempting repair")
		repairPrompt := fmt.Sprintf(
			"Your previous response was not valid JSON. The error was: %s\n\nPlease fix it and respond with ONLY the JSON object.\n\nYour previous response was:\n%s",
			err.Error(), resp.Content,
		)
		resp2, err2 := e.llm.Complete(ctx, llm.Request{System: SystemPrompt(), Prompt: repairPrompt, MaxTokens: maxTokens})
		if err2 != nil {
			return ClusterReview{}, fmt.Errorf("repair pass failed: %w (original error: %w)", err2, err)
		}
		review, err = ParseClusterReview(resp2.Content, c.Name)
		if err != nil {
			return ClusterReview{}, fmt.Errorf("response validation failed after repair: %w", err)
		}
	}

	review.Reviews = DeduplicateFindings(ApplySeverityOverrides(review.Reviews, e.rules))
	if e.maxFindings > 0 && len(review.Reviews) > e.maxFindings {
		review.Reviews = review.Reviews[:e.maxFindings]
	}

	e.log.Debug().
		Str("cluster", c.Name).
		Int("findings", len(review.Reviews)).
		Bool("cached", resp.Cached).
		Dur("elapsed", time.Since(start)).
		Msg("cluster reviewed")
	return review, nil
}

// ParseClusterReview decodes a model response. Both the documented object
// and a bare array of findings are accepted. The cluster name is always set
// to clusterName regardless of what the model echoed back.
func ParseClusterReview(content, clusterName string) (ClusterReview, error) {
	var findings []rawFinding

	var obj rawReview
	if err := llm.DecodeJSON(content, &obj); err == nil && obj.Reviews != nil {
		findings = *obj.Reviews
	} else if errArr := llm.DecodeJSON(content, &findings); errArr != nil {
		if err == nil {
			err = errors.New(`missing "reviews" array`)
		}
		return ClusterReview{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	out := ClusterReview{ClusterName: clusterName, Reviews: make([]Finding, 0, len(findings))}
	for _, r := range findings {
		issue := strings.TrimSpace(r.Issue)
		if issue == "" {
			continue
		}
		file := r.File
		if file == "" {
			file = r.Path
		}
		end := int(r.EndLine)
		if end < int(r.StartLine) {
			end = int(r.StartLine)
		}
		out.Reviews = append(out.Reviews, Finding{
			File:        file,
			CodeSnippet: r.CodeSnippet,
			StartLine:   int(r.StartLine),
			EndLine:     end,
			Issue:       issue,
			Suggestion:  strings.TrimSpace(r.Suggestion),
			Severity:    ParseSeverity(r.Severity),
			Category:    Category(strings.ToLower(strings.TrimSpace(r.Category))),
		})
	}
	return out, nil
}

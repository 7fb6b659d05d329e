package review

import (
	"sort"
	"strings"
)

// Severity represents the severity level of a finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// IsSeverity reports whether s names one of the three levels exactly.
func IsSeverity(s string) bool {
	return SeverityRank(Severity(s)) > 0
}

// ParseSeverity maps the labels models commonly use onto the three levels.
// Unrecognised labels become low.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "critical", "blocker", "severe", "error":
		return SeverityHigh
	case "medium", "moderate", "major", "warning":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AtLeast reports whether s is at or above min. An empty min admits everything.
func AtLeast(s Severity, min string) bool {
	if min == "" {
		return true
	}
	return SeverityRank(s) >= SeverityRank(Severity(min))
}

// Category represents the type of finding.
type Category string

const (
	CategoryBug             Category = "bug"
	CategorySecurity        Category = "security"
	CategoryPerformance     Category = "performance"
	CategoryCorrectness     Category = "correctness"
	CategoryStyle           Category = "style"
	CategoryMaintainability Category = "maintainability"
	CategoryTesting         Category = "testing"
	CategoryDocs            Category = "docs"
)

// Finding is a single review comment on a snippet of changed code.
type Finding struct {
	File        string   `json:"file,omitempty"`
	CodeSnippet string   `json:"code_snippet"`
	StartLine   int      `json:"start_line"`
	EndLine     int      `json:"end_line"`
	Issue       string   `json:"issue"`
	Suggestion  string   `json:"suggestion"`
	Severity    Severity `json:"severity"`
	Category    Category `json:"category,omitempty"`
}

// ClusterReview is the review of one cluster.
type ClusterReview struct {
	ClusterName string    `json:"cluster_name"`
	Reviews     []Finding `json:"reviews"`
}

// SeverityCounts holds counts by severity level.
type SeverityCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Total is the number of counted findings.
func (c SeverityCounts) Total() int { return c.Low + c.Medium + c.High }

// Count tallies findings across reviews.
func Count(reviews []ClusterReview) SeverityCounts {
	var c SeverityCounts
	for _, r := range reviews {
		for _, f := range r.Reviews {
			switch f.Severity {
			case SeverityHigh:
				c.High++
			case SeverityMedium:
				c.Medium++
			default:
				c.Low++
			}
		}
	}
	return c
}

// FilterBySeverity returns copies of reviews keeping only findings at or
// above min. Reviews left empty are kept so indices still line up.
func FilterBySeverity(reviews []ClusterReview, min string) []ClusterReview {
	out := make([]ClusterReview, len(reviews))
	for i, r := range reviews {
		out[i] = ClusterReview{ClusterName: r.ClusterName, Reviews: []Finding{}}
		for _, f := range r.Reviews {
			if AtLeast(f.Severity, min) {
				out[i].Reviews = append(out[i].Reviews, f)
			}
		}
	}
	return out
}

// DeduplicateFindings removes findings with the same file, start line and
// issue, keeping the first. The result is never nil.
func DeduplicateFindings(findings []Finding) []Finding {
	type key struct {
		file  string
		line  int
		issue string
	}
	seen := make(map[key]bool)
	result := make([]Finding, 0, len(findings))
	for _, f := range findings {
		k := key{f.File, f.StartLine, strings.TrimSpace(f.Issue)}
		if !seen[k] {
			seen[k] = true
			result = append(result, f)
		}
	}
	return result
}

// SortFindings sorts findings by severity (high first), then file, then line.
// The sort is stable so equal findings keep their review order.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		ri, rj := SeverityRank(findings[i].Severity), SeverityRank(findings[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].StartLine < findings[j].StartLine
	})
}

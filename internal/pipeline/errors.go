package pipeline

import (
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindInputValidation Kind = "input_validation"
	KindClustering      Kind = "clustering"
	KindReview          Kind = "review"
	KindFilter          Kind = "filter"
	KindPost            Kind = "post"
	KindCancelled       Kind = "cancelled"
	KindInternal        Kind = "internal"
)

// User-facing failure reasons.
const (
	ReasonNoPRURL        = "No pr_url provided"
	ReasonInvalidPRURL   = "Invalid pr_url format"
	ReasonNoBaseClusters = "No base_clusters found"
	ReasonNoClusters     = "No clusters found"
	ReasonFilterFailed   = "Review filtering failed"
	ReasonPostFailed     = "Comment posting failed"
	ReasonCancelled      = "cancelled"
)

// ReasonReviewFailed is the reason for a failed review of cluster i.
func ReasonReviewFailed(i int) string {
	return fmt.Sprintf("Review failed for cluster %d", i)
}

// ReasonUnexpected is the reason for a recovered panic.
func ReasonUnexpected(v any) string {
	return fmt.Sprintf("Unexpected error: %v", v)
}

// Error is the single failure a run ends with. Reason is the exact text
// reported to the user; Err keeps the underlying cause for logs and
// errors.Is. Index is the cluster index for review failures and -1
// otherwise.
type Error struct {
	Kind   Kind
	Reason string
	Index  int
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// panicError carries a value recovered from a panicking stage.
type panicError struct {
	value any
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

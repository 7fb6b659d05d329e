package pipeline

import (
	"github.com/dshills/sieve/internal/cluster"
	"github.com/dshills/sieve/internal/review"
)

// Result is the externally visible outcome of a run. A successful result
// carries clusters, reviews and summary with a null error; a failed one
// carries only the error, with every data field null.
type Result struct {
	Success  bool                   `json:"success"`
	Clusters []cluster.Cluster      `json:"clusters"`
	Reviews  []review.ClusterReview `json:"reviews"`
	Summary  *string                `json:"summary"`
	Error    *string                `json:"error"`
}

// Assemble converts a terminal Outcome into a Result. An Outcome that is
// neither done nor failed is reported as an unexpected error.
func Assemble(o Outcome) Result {
	switch o.Phase {
	case PhaseDone:
		clusters := o.Clusters
		if clusters == nil {
			clusters = []cluster.Cluster{}
		}
		reviews := o.Reviews
		if reviews == nil {
			reviews = []review.ClusterReview{}
		}
		summary := o.Summary
		return Result{Success: true, Clusters: clusters, Reviews: reviews, Summary: &summary}
	case PhaseFailed:
		reason := ReasonUnexpected("run failed without a reason")
		if o.Err != nil {
			reason = o.Err.Reason
		}
		return Result{Error: &reason}
	default:
		reason := ReasonUnexpected("run ended in phase " + string(o.Phase))
		return Result{Error: &reason}
	}
}

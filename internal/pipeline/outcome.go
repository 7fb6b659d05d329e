package pipeline

import (
	"github.com/dshills/sieve/internal/capability"
	"github.com/dshills/sieve/internal/changeset"
	"github.com/dshills/sieve/internal/cluster"
	"github.com/dshills/sieve/internal/review"
)

// Phase is a state of the orchestrator.
type Phase string

const (
	PhaseValidating Phase = "validating"
	PhaseClustering Phase = "clustering"
	PhaseReviewing  Phase = "reviewing"
	PhaseFiltering  Phase = "filtering"
	PhasePosting    Phase = "posting"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Outcome is the terminal state of a run. Only data produced by phases
// that completed is set.
type Outcome struct {
	RunID string
	Phase Phase
	// FailedIn is the phase that failed when Phase is PhaseFailed.
	FailedIn Phase
	Err      *Error

	Ref          changeset.Ref
	Raw          cluster.Raw
	Clusters     []cluster.Cluster
	Reviews      []review.ClusterReview
	Summary      string
	Confirmation *capability.Confirmation
}

// Succeeded reports whether the run reached Done.
func (o Outcome) Succeeded() bool { return o.Phase == PhaseDone }

func (o *Outcome) fail(e *Error) {
	o.FailedIn = o.Phase
	o.Phase = PhaseFailed
	o.Err = e
}

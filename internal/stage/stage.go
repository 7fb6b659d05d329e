// Package stage holds the four reasoning stages of a review run.
//
// A stage declares the state keys it reads and the key its result is
// stored under. The orchestrator hands it a capability set bound to its
// grants and a read-only view of exactly its inputs; the stage never
// writes shared state itself.
package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/sieve/internal/capability"
	"github.com/dshills/sieve/internal/state"
)

// ErrCapabilityMissing is returned when a stage needs a capability that is
// absent from its set.
var ErrCapabilityMissing = errors.New("capability not granted")

// Stage is one unit of work in the pipeline. A nil error from Invoke means
// the stage succeeded and its value is stored under Output.
type Stage interface {
	ID() capability.StageID
	Name() string
	Inputs() []state.Key
	Output() state.Key
	Invoke(ctx context.Context, caps capability.Set, in state.View) (any, error)
}

func missing(kind capability.Kind) error {
	return fmt.Errorf("%w: %s", ErrCapabilityMissing, kind)
}

package stage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dshills/sieve/internal/capability"
	"github.com/dshills/sieve/internal/cluster"
	"github.com/dshills/sieve/internal/review"
	"github.com/dshills/sieve/internal/state"
)

// Review reviews single clusters. Use At to obtain the stage for one index.
type Review struct {
	Engine *review.Engine
	// ContextBytes bounds repository context gathered through Search.
	// Zero disables context gathering.
	ContextBytes int
	Log          zerolog.Logger
}

// At returns the stage reviewing the i-th cluster.
func (r *Review) At(i int) Stage { return &reviewAt{r: r, i: i} }

type reviewAt struct {
	r *Review
	i int
}

func (s *reviewAt) ID() capability.StageID { return capability.StageReview }
func (s *reviewAt) Name() string           { return fmt.Sprintf("review[%d]", s.i) }
func (s *reviewAt) Inputs() []state.Key    { return []state.Key{state.ClusterKey(s.i)} }
func (s *reviewAt) Output() state.Key      { return state.ReviewKey(s.i) }

func (s *reviewAt) Invoke(ctx context.Context, caps capability.Set, in state.View) (any, error) {
	c, err := state.Lookup[cluster.Cluster](in, state.ClusterKey(s.i))
	if err != nil {
		return nil, err
	}

	var contextText string
	if caps.Searcher != nil && s.r.ContextBytes > 0 {
		contextText = gatherContext(ctx, caps.Searcher, c, s.r.ContextBytes, s.r.Log)
	}

	cr, err := s.r.Engine.Review(ctx, c, contextText)
	if err != nil {
		return nil, err
	}
	return cr, nil
}

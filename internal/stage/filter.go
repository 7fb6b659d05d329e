package stage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/sieve/internal/capability"
	"github.com/dshills/sieve/internal/llm"
	"github.com/dshills/sieve/internal/review"
	"github.com/dshills/sieve/internal/state"
)

// Filter modes.
const (
	FilterLLM      = "llm"
	FilterIdentity = "identity"
)

const filterMaxTokens = 8192

// ErrEmptyFilter is returned when filtering produced no text.
var ErrEmptyFilter = errors.New("filter produced empty output")

// Filter reduces all cluster reviews to one markdown comment. Use For to
// obtain the stage for a run with n clusters.
type Filter struct {
	LLM         llm.Completer
	Mode        string
	MinSeverity string
	Log         zerolog.Logger
}

// For returns the filter stage reading review_0 through review_{n-1}.
func (f *Filter) For(n int) Stage { return &filterFor{f: f, n: n} }

type filterFor struct {
	f *Filter
	n int
}

func (s *filterFor) ID() capability.StageID { return capability.StageFilter }
func (s *filterFor) Name() string           { return "filter" }
func (s *filterFor) Output() state.Key      { return state.KeyReviewedReview }

func (s *filterFor) Inputs() []state.Key {
	keys := make([]state.Key, s.n)
	for i := range keys {
		keys[i] = state.ReviewKey(i)
	}
	return keys
}

func (s *filterFor) Invoke(ctx context.Context, _ capability.Set, in state.View) (any, error) {
	reviews := make([]review.ClusterReview, s.n)
	for i := range reviews {
		cr, err := state.Lookup[review.ClusterReview](in, state.ReviewKey(i))
		if err != nil {
			return nil, err
		}
		reviews[i] = cr
	}
	reviews = review.FilterBySeverity(reviews, s.f.MinSeverity)

	var out string
	switch s.f.Mode {
	case FilterIdentity:
		out = review.RenderMarkdown(reviews)
	case FilterLLM, "":
		if review.Count(reviews).Total() == 0 {
			out = review.RenderMarkdown(reviews)
			break
		}
		if s.f.LLM == nil {
			return nil, fmt.Errorf("filter mode %q needs a model", FilterLLM)
		}
		prompt, err := review.BuildFilterPrompt(reviews)
		if err != nil {
			return nil, err
		}
		resp, err := s.f.LLM.Complete(ctx, llm.Request{
			System:    review.FilterSystemPrompt(),
			Prompt:    prompt,
			MaxTokens: filterMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("filtering: %w", err)
		}
		out = llm.StripFences(resp.Content)
	default:
		return nil, fmt.Errorf("unknown filter mode %q", s.f.Mode)
	}

	if strings.TrimSpace(out) == "" {
		return nil, ErrEmptyFilter
	}
	s.f.Log.Debug().Int("bytes", len(out)).Str("mode", s.f.Mode).Msg("reviews filtered")
	return out, nil
}

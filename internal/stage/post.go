package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/sieve/internal/capability"
	"github.com/dshills/sieve/internal/changeset"
	"github.com/dshills/sieve/internal/state"
)

// Post publishes the filtered review as one comment.
type Post struct {
	// Footer is appended to the comment body after a blank line.
	Footer string
	Log    zerolog.Logger
}

func (s *Post) ID() capability.StageID { return capability.StagePost }
func (s *Post) Name() string           { return "post" }
func (s *Post) Output() state.Key      { return state.KeyOutput }

func (s *Post) Inputs() []state.Key {
	return []state.Key{state.KeyChangeSet, state.KeyReviewedReview}
}

// Invoke implements Stage. Publish is called exactly once.
func (s *Post) Invoke(ctx context.Context, caps capability.Set, in state.View) (any, error) {
	ref, err := state.Lookup[changeset.Ref](in, state.KeyChangeSet)
	if err != nil {
		return nil, err
	}
	body, err := state.Lookup[string](in, state.KeyReviewedReview)
	if err != nil {
		return nil, err
	}
	if caps.Publisher == nil {
		return nil, missing(capability.Publish)
	}

	action := capability.Action{Ref: ref, Body: Body(body, s.Footer)}
	s.Log.Debug().Str("action", action.Describe()).Msg("publishing")
	conf, err := caps.Publisher.Publish(ctx, action)
	if err != nil {
		return nil, fmt.Errorf("publishing to %s: %w", ref, err)
	}
	return conf, nil
}

// Body joins the review and an optional footer.
func Body(review, footer string) string {
	review = strings.TrimRight(review, "\n")
	if footer = strings.TrimSpace(footer); footer != "" {
		return review + "\n\n" + footer + "\n"
	}
	return review + "\n"
}

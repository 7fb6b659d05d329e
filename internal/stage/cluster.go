package stage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dshills/sieve/internal/capability"
	"github.com/dshills/sieve/internal/changeset"
	"github.com/dshills/sieve/internal/cluster"
	"github.com/dshills/sieve/internal/llm"
	"github.com/dshills/sieve/internal/redact"
	"github.com/dshills/sieve/internal/state"
)

// Grouping strategies for the Cluster stage.
const (
	StrategyLLM       = "llm"
	StrategyDirectory = "directory"
)

const clusterMaxTokens = 4096

// Cluster fetches the pull request and groups its files. The result is a
// cluster.Raw whose Text still has to be parsed by the orchestrator.
type Cluster struct {
	LLM            llm.Completer
	Redactor       *redact.Redactor
	Strategy       string
	MaxPromptBytes int
	Log            zerolog.Logger
}

func (s *Cluster) ID() capability.StageID { return capability.StageCluster }
func (s *Cluster) Name() string           { return "cluster" }
func (s *Cluster) Inputs() []state.Key    { return []state.Key{state.KeyChangeSet} }
func (s *Cluster) Output() state.Key      { return state.KeyBaseClusters }

// Invoke implements Stage.
func (s *Cluster) Invoke(ctx context.Context, caps capability.Set, in state.View) (any, error) {
	ref, err := state.Lookup[changeset.Ref](in, state.KeyChangeSet)
	if err != nil {
		return nil, err
	}
	if caps.Fetcher == nil {
		return nil, missing(capability.Fetch)
	}

	cs, err := caps.Fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ref, err)
	}

	files := cluster.SplitFiles(cluster.NormalizeEscapes(cs.Diff))
	title, body := cs.Title, cs.Body
	if s.Redactor != nil {
		for i := range files {
			files[i].Diff = s.Redactor.File(files[i].Filename, files[i].Diff)
		}
		title = s.Redactor.Text(title)
		body = s.Redactor.Text(body)
	}
	s.Log.Debug().
		Str("pr", ref.String()).
		Int("files", len(files)).
		Int("diff_bytes", len(cs.Diff)).
		Str("strategy", s.Strategy).
		Msg("change set fetched")

	if len(files) == 0 {
		return cluster.Raw{}, nil
	}

	switch s.Strategy {
	case StrategyDirectory:
		text, err := cluster.Encode(cluster.ByDirectory(files))
		if err != nil {
			return nil, err
		}
		return cluster.Raw{Text: text, Files: files}, nil
	case StrategyLLM, "":
		if s.LLM == nil {
			return nil, fmt.Errorf("cluster strategy %q needs a model", StrategyLLM)
		}
		resp, err := s.LLM.Complete(ctx, llm.Request{
			System: cluster.SystemPrompt(),
			Prompt: cluster.BuildUserPrompt(cluster.PromptInput{
				Title:    title,
				Body:     body,
				Files:    files,
				MaxBytes: s.MaxPromptBytes,
			}),
			MaxTokens: clusterMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("clustering: %w", err)
		}
		return cluster.Raw{Text: resp.Content, Files: files}, nil
	default:
		return nil, fmt.Errorf("unknown cluster strategy %q", s.Strategy)
	}
}

package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/sieve/internal/changeset"
)

// Kind names a capability.
type Kind string

const (
	Fetch   Kind = "fetch"
	Search  Kind = "search"
	Publish Kind = "publish"
)

// ChangeSet is the raw material of a pull request as fetched from the remote.
type ChangeSet struct {
	Ref   changeset.Ref
	Title string
	Body  string
	Diff  string
	Files []string
}

// Fetcher retrieves pull request metadata and its unified diff.
type Fetcher interface {
	Fetch(ctx context.Context, ref changeset.Ref) (ChangeSet, error)
}

// Match is one line matched by a text search.
type Match struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Searcher looks up code in a working copy.
type Searcher interface {
	FindFiles(ctx context.Context, dir, pattern string, depth int) ([]string, error)
	FindText(ctx context.Context, pattern, path string) ([]Match, error)
	ReadFile(ctx context.Context, path string, startLine, endLine int) (string, error)
}

// Action describes a single publish operation: one comment on one pull request.
type Action struct {
	Ref  changeset.Ref
	Body string
}

// Describe renders the action as the equivalent gh invocation, for logs.
func (a Action) Describe() string {
	return fmt.Sprintf("gh pr comment %s --body-file - (%d bytes)", a.Ref.URL(), len(a.Body))
}

// Confirmation is returned once a comment has been published.
type Confirmation struct {
	ID     int64  `json:"id,omitempty"`
	URL    string `json:"url,omitempty"`
	DryRun bool   `json:"dryRun,omitempty"`
}

// Publisher posts a comment on a pull request.
type Publisher interface {
	Publish(ctx context.Context, action Action) (Confirmation, error)
}

// Set is the bundle of capabilities available to one stage. Members that were
// not granted are nil.
type Set struct {
	Fetcher   Fetcher
	Searcher  Searcher
	Publisher Publisher
}

// Has reports whether the set carries an implementation of kind.
func (s Set) Has(kind Kind) bool {
	switch kind {
	case Fetch:
		return s.Fetcher != nil
	case Search:
		return s.Searcher != nil
	case Publish:
		return s.Publisher != nil
	default:
		return false
	}
}

// Kinds lists the populated members.
func (s Set) Kinds() []Kind {
	var out []Kind
	for _, k := range []Kind{Fetch, Search, Publish} {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (s Set) String() string {
	kinds := s.Kinds()
	if len(kinds) == 0 {
		return "none"
	}
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

// DryRunPublisher records actions instead of posting them.
type DryRunPublisher struct {
	Actions []Action
}

func (d *DryRunPublisher) Publish(ctx context.Context, action Action) (Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return Confirmation{}, err
	}
	d.Actions = append(d.Actions, action)
	return Confirmation{URL: action.Ref.URL(), DryRun: true}, nil
}

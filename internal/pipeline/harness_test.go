package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dshills/sieve/internal/capability"
	"github.com/dshills/sieve/internal/changeset"
	"github.com/dshills/sieve/internal/llm"
	"github.com/dshills/sieve/internal/review"
	"github.com/dshills/sieve/internal/stage"
	"github.com/dshills/sieve/internal/state"
)

const validURL = "https://github.com/acme/shop/pull/7"

// threeDirDiff touches one file in each of three top-level directories, so
// the directory strategy yields clusters a, b and c in that order.
const threeDirDiff = `diff --git a/a/one.go b/a/one.go
--- a/a/one.go
+++ b/a/one.go
@@ -1,1 +1,2 @@
 package a
+func One() {}
diff --git a/b/two.go b/b/two.go
--- a/b/two.go
+++ b/b/two.go
@@ -1,1 +1,2 @@
 package b
+func Two() {}
diff --git a/c/three.go b/c/three.go
--- a/c/three.go
+++ b/c/three.go
@@ -1,1 +1,2 @@
 package c
+func Three() {}
`

type countingFetcher struct {
	calls atomic.Int32
	diff  string
	err   error
}

func (f *countingFetcher) Fetch(_ context.Context, ref changeset.Ref) (capability.ChangeSet, error) {
	f.calls.Add(1)
	if f.err != nil {
		return capability.ChangeSet{}, f.err
	}
	return capability.ChangeSet{Ref: ref, Title: "Add numbers", Diff: f.diff}, nil
}

type countingPublisher struct {
	mu      sync.Mutex
	actions []capability.Action
	err     error
}

func (p *countingPublisher) Publish(_ context.Context, a capability.Action) (capability.Confirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, a)
	if p.err != nil {
		return capability.Confirmation{}, p.err
	}
	return capability.Confirmation{ID: int64(len(p.actions)), URL: a.Ref.URL() + "#issuecomment-1"}, nil
}

func (p *countingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.actions)
}

var clusterNameRe = regexp.MustCompile(`(?m)^Cluster: (.+)$`)

// routeCompleter answers review prompts with one finding per cluster. The
// behaviour for a given cluster name can be overridden.
type routeCompleter struct {
	mu     sync.Mutex
	calls  map[string]int
	fail   map[string]error
	block  map[string]bool
	panics map[string]bool
	// entered, when set, receives the name of each cluster that blocks.
	entered chan string
}

func newRouteCompleter() *routeCompleter {
	return &routeCompleter{
		calls:  map[string]int{},
		fail:   map[string]error{},
		block:  map[string]bool{},
		panics: map[string]bool{},
	}
}

func (c *routeCompleter) Name() string { return "route" }

func (c *routeCompleter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	name := "?"
	if m := clusterNameRe.FindStringSubmatch(req.Prompt); m != nil {
		name = m[1]
	}
	c.mu.Lock()
	c.calls[name]++
	err, block, panics := c.fail[name], c.block[name], c.panics[name]
	c.mu.Unlock()

	switch {
	case panics:
		panic("model exploded on " + name)
	case block:
		if c.entered != nil {
			c.entered <- name
		}
		<-ctx.Done()
		return llm.Response{}, ctx.Err()
	case err != nil:
		return llm.Response{}, err
	}
	return llm.Response{Content: fmt.Sprintf(`{"reviews":[{"file":"%s/x.go","code_snippet":"func %s() {}","start_line":2,"end_line":2,"issue":"Issue in %s","suggestion":"Fix %s","severity":"medium"}]}`,
		name, name, name, name)}, nil
}

func (c *routeCompleter) callsFor(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *routeCompleter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

type harness struct {
	fetcher   *countingFetcher
	publisher *countingPublisher
	model     *routeCompleter
	stages    Stages
	caps      capability.Set
}

func newHarness() *harness {
	h := &harness{
		fetcher:   &countingFetcher{diff: threeDirDiff},
		publisher: &countingPublisher{},
		model:     newRouteCompleter(),
	}
	rv := &stage.Review{Engine: review.NewEngine(h.model, nil, 0, zerolog.Nop()), Log: zerolog.Nop()}
	f := &stage.Filter{Mode: stage.FilterIdentity, Log: zerolog.Nop()}
	h.stages = Stages{
		Cluster: &stage.Cluster{Strategy: stage.StrategyDirectory, Log: zerolog.Nop()},
		Review:  rv.At,
		Filter:  f.For,
		Post:    &stage.Post{Log: zerolog.Nop()},
	}
	h.caps = capability.Set{Fetcher: h.fetcher, Publisher: h.publisher}
	return h
}

func (h *harness) orchestrator(opts Options) *Orchestrator {
	return New(h.stages, h.caps, opts, zerolog.Nop())
}

// fixedStage returns a constant value or error, or panics.
type fixedStage struct {
	stage.Stage
	value  any
	err    error
	panics bool
}

func (s *fixedStage) Invoke(context.Context, capability.Set, state.View) (any, error) {
	if s.panics {
		panic("stage bug")
	}
	return s.value, s.err
}

// spyStage records the capability set and visible keys it was invoked with.
type spyStage struct {
	stage.Stage
	mu   *sync.Mutex
	seen map[capability.StageID][]capability.Set
	keys map[capability.StageID][]state.Key
}

func (s *spyStage) Invoke(ctx context.Context, caps capability.Set, in state.View) (any, error) {
	s.mu.Lock()
	s.seen[s.ID()] = append(s.seen[s.ID()], caps)
	s.keys[s.ID()] = append(s.keys[s.ID()], in.Keys()...)
	s.mu.Unlock()
	return s.Stage.Invoke(ctx, caps, in)
}

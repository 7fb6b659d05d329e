package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/sieve/internal/capability"
	"github.com/dshills/sieve/internal/changeset"
	"github.com/dshills/sieve/internal/cluster"
	"github.com/dshills/sieve/internal/review"
	"github.com/dshills/sieve/internal/stage"
	"github.com/dshills/sieve/internal/state"
)

// errMissingInput is returned when a stage's declared inputs are absent.
var errMissingInput = errors.New("stage inputs missing from state")

// Stages are the four stages of a run. Review and Filter depend on the
// number of clusters and are built per run.
type Stages struct {
	Cluster stage.Stage
	Review  func(i int) stage.Stage
	Filter  func(n int) stage.Stage
	Post    stage.Stage
}

// Options configures an Orchestrator.
type Options struct {
	// Host is the GitHub host pull request URLs must point at.
	Host string
	// Parallelism above one reviews clusters concurrently. Output order and
	// fail-fast behaviour are the same as the sequential loop.
	Parallelism int
}

// Orchestrator runs the pipeline. It holds no per-run state and may run
// several pull requests concurrently.
type Orchestrator struct {
	stages   Stages
	caps     capability.Set
	registry capability.Registry
	opts     Options
	log      zerolog.Logger
}

// New returns an Orchestrator. caps holds every capability available to the
// process; each stage only receives the members its id is granted.
func New(stages Stages, caps capability.Set, opts Options, log zerolog.Logger) *Orchestrator {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Orchestrator{
		stages:   stages,
		caps:     caps,
		registry: capability.DefaultRegistry(),
		opts:     opts,
		log:      log,
	}
}

// run is the mutable state of a single run.
type run struct {
	o     *Orchestrator
	ctx   context.Context
	log   zerolog.Logger
	state *state.State
	out   Outcome
	start time.Time
}

// Run reviews the pull request at prURL. It never panics and always returns
// a terminal Outcome.
func (o *Orchestrator) Run(ctx context.Context, prURL string) (out Outcome) {
	runID := uuid.NewString()
	r := &run{
		o:     o,
		ctx:   ctx,
		log:   o.log.With().Str("run_id", runID).Logger(),
		state: state.New(),
		out:   Outcome{RunID: runID, Phase: PhaseValidating},
		start: time.Now(),
	}
	defer func() {
		if v := recover(); v != nil {
			r.out.fail(&Error{Kind: KindInternal, Reason: ReasonUnexpected(v), Index: -1})
		}
		r.finish()
		out = r.out
	}()

	r.log.Info().Str("phase", string(PhaseValidating)).Msg("run started")
	if !r.validate(prURL) {
		return
	}
	if !r.cluster() {
		return
	}
	if !r.review() {
		return
	}
	if !r.filter() {
		return
	}
	if !r.post() {
		return
	}
	r.out.Phase = PhaseDone
	return
}

func (r *run) finish() {
	ev := r.log.Info()
	if r.out.Phase == PhaseFailed {
		ev = r.log.Warn().Str("failed_in", string(r.out.FailedIn)).Str("reason", r.out.Err.Reason)
		if r.out.Err.Err != nil {
			ev = ev.AnErr("cause", r.out.Err.Err)
		}
	}
	keys := r.state.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	ev.Str("phase", string(r.out.Phase)).
		Strs("state_keys", names).
		Dur("elapsed", time.Since(r.start)).
		Msg("run finished")
}

func (r *run) enter(p Phase) {
	r.log.Info().Str("from", string(r.out.Phase)).Str("phase", string(p)).Msg("transition")
	r.out.Phase = p
}

// failStage converts a stage error into the run's terminal error. A
// cancelled context and a recovered panic take precedence over the phase's
// own reason.
func (r *run) failStage(kind Kind, reason string, index int, err error) bool {
	var pe *panicError
	switch {
	case errors.As(err, &pe):
		r.out.fail(&Error{Kind: KindInternal, Reason: ReasonUnexpected(pe.value), Index: index, Err: err})
	case r.ctx.Err() != nil:
		r.out.fail(&Error{Kind: KindCancelled, Reason: ReasonCancelled, Index: index, Err: r.ctx.Err()})
	default:
		r.out.fail(&Error{Kind: kind, Reason: reason, Index: index, Err: err})
	}
	return false
}

// put stores v; a duplicate key is a programming error.
func (r *run) put(k state.Key, v any) {
	if err := r.state.Put(k, v); err != nil {
		panic(err)
	}
	r.log.Debug().Str("key", string(k)).Msg("state written")
}

// invoke runs s with its granted capabilities and a view of its inputs.
// Panics inside the stage are returned as errors.
func (o *Orchestrator) invoke(ctx context.Context, st *state.State, s stage.Stage, log zerolog.Logger) (out any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !st.Has(s.Inputs()...) {
		return nil, fmt.Errorf("%w: %v", errMissingInput, st.Missing(s.Inputs()...))
	}
	caps := o.registry.Bind(s.ID(), o.caps)

	defer func() {
		if v := recover(); v != nil {
			out, err = nil, &panicError{value: v}
		}
	}()

	start := time.Now()
	log.Debug().Str("stage", s.Name()).Str("caps", caps.String()).Msg("invoking stage")
	out, err = s.Invoke(ctx, caps, st.View(s.Inputs()...))
	ev := log.Debug()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("stage", s.Name()).Dur("elapsed", time.Since(start)).Msg("stage returned")
	return out, err
}

func (r *run) validate(prURL string) bool {
	ref, err := changeset.Parse(prURL, r.o.opts.Host)
	switch {
	case errors.Is(err, changeset.ErrMissing):
		r.out.fail(&Error{Kind: KindInputValidation, Reason: ReasonNoPRURL, Index: -1, Err: err})
		return false
	case err != nil:
		r.out.fail(&Error{Kind: KindInputValidation, Reason: ReasonInvalidPRURL, Index: -1, Err: err})
		return false
	}
	r.out.Ref = ref
	r.put(state.KeyChangeSet, ref)
	r.log = r.log.With().Str("pr", ref.String()).Logger()
	return true
}

func (r *run) cluster() bool {
	r.enter(PhaseClustering)
	v, err := r.o.invoke(r.ctx, r.state, r.o.stages.Cluster, r.log)
	if err != nil {
		return r.failStage(KindClustering, ReasonNoBaseClusters, -1, err)
	}
	raw, ok := v.(cluster.Raw)
	if !ok {
		return r.failStage(KindClustering, ReasonNoBaseClusters, -1, fmt.Errorf("cluster stage returned %T", v))
	}
	if raw.Empty() {
		return r.failStage(KindClustering, ReasonNoBaseClusters, -1, errors.New("cluster stage produced no output"))
	}
	r.put(state.KeyBaseClusters, raw)
	r.out.Raw = raw

	clusters, err := cluster.Parse(raw)
	if err != nil {
		return r.failStage(KindClustering, ReasonNoClusters, -1, err)
	}
	for i, c := range clusters {
		r.put(state.ClusterKey(i), c)
	}
	r.out.Clusters = clusters
	r.log.Info().Int("clusters", len(clusters)).Int("files", len(raw.Files)).Msg("clusters parsed")
	return true
}

func (r *run) review() bool {
	r.enter(PhaseReviewing)
	n := len(r.out.Clusters)
	if r.o.opts.Parallelism > 1 && n > 1 {
		return r.reviewParallel(n)
	}

	reviews := make([]review.ClusterReview, 0, n)
	for i := range n {
		cr, err := r.reviewOne(r.ctx, i)
		if err != nil {
			return r.failStage(KindReview, ReasonReviewFailed(i), i, err)
		}
		r.put(state.ReviewKey(i), cr)
		reviews = append(reviews, cr)
	}
	r.out.Reviews = reviews
	return true
}

func (r *run) reviewOne(ctx context.Context, i int) (review.ClusterReview, error) {
	log := r.log.With().Int("cluster", i).Logger()
	v, err := r.o.invoke(ctx, r.state, r.o.stages.Review(i), log)
	if err != nil {
		return review.ClusterReview{}, err
	}
	cr, ok := v.(review.ClusterReview)
	if !ok {
		return review.ClusterReview{}, fmt.Errorf("review stage returned %T", v)
	}
	return cr, nil
}

type indexedError struct {
	index int
	err   error
}

func (e *indexedError) Error() string { return e.err.Error() }
func (e *indexedError) Unwrap() error { return e.err }

// reviewParallel reviews up to Parallelism clusters at a time. The first
// failure cancels the reviews still in flight. State is written only after
// every review finished, in index order.
func (r *run) reviewParallel(n int) bool {
	g, gctx := errgroup.WithContext(r.ctx)
	g.SetLimit(r.o.opts.Parallelism)

	results := make([]review.ClusterReview, n)
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cr, err := r.reviewOne(gctx, i)
			if err != nil {
				return &indexedError{index: i, err: err}
			}
			results[i] = cr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var ie *indexedError
		if errors.As(err, &ie) {
			return r.failStage(KindReview, ReasonReviewFailed(ie.index), ie.index, ie.err)
		}
		return r.failStage(KindReview, ReasonCancelled, -1, err)
	}

	for i, cr := range results {
		r.put(state.ReviewKey(i), cr)
	}
	r.out.Reviews = results
	return true
}

func (r *run) filter() bool {
	r.enter(PhaseFiltering)
	v, err := r.o.invoke(r.ctx, r.state, r.o.stages.Filter(len(r.out.Reviews)), r.log)
	if err != nil {
		return r.failStage(KindFilter, ReasonFilterFailed, -1, err)
	}
	summary, ok := v.(string)
	if !ok {
		return r.failStage(KindFilter, ReasonFilterFailed, -1, fmt.Errorf("filter stage returned %T", v))
	}
	r.put(state.KeyReviewedReview, summary)
	r.out.Summary = summary
	return true
}

func (r *run) post() bool {
	r.enter(PhasePosting)
	v, err := r.o.invoke(r.ctx, r.state, r.o.stages.Post, r.log)
	if err != nil {
		return r.failStage(KindPost, ReasonPostFailed, -1, err)
	}
	conf, ok := v.(capability.Confirmation)
	if !ok {
		return r.failStage(KindPost, ReasonPostFailed, -1, fmt.Errorf("post stage returned %T", v))
	}
	r.put(state.KeyOutput, conf)
	r.out.Confirmation = &conf
	r.log.Info().Str("url", conf.URL).Bool("dry_run", conf.DryRun).Msg("review published")
	return true
}

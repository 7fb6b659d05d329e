package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/sieve/internal/cache"
	"github.com/dshills/sieve/internal/capability"
	"github.com/dshills/sieve/internal/changeset"
	"github.com/dshills/sieve/internal/config"
	"github.com/dshills/sieve/internal/ghcli"
	"github.com/dshills/sieve/internal/github"
	"github.com/dshills/sieve/internal/gitctx"
	"github.com/dshills/sieve/internal/llm"
	"github.com/dshills/sieve/internal/output"
	"github.com/dshills/sieve/internal/pipeline"
	"github.com/dshills/sieve/internal/redact"
	"github.com/dshills/sieve/internal/review"
	"github.com/dshills/sieve/internal/search"
	"github.com/dshills/sieve/internal/stage"
)

// Review flags
var (
	flagPRURL           string
	flagProvider        string
	flagModel           string
	flagFormat          string
	flagOut             string
	flagDryRun          bool
	flagFilter          string
	flagClusterStrategy string
	flagParallel        int
	flagRules           string
	flagBackend         string
	flagNoRedact        bool
)

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagPRURL, "pr-url", "", "Pull request URL (alternative to the positional argument)")
	cmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider (anthropic, openai, gemini, ollama)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (json, text, markdown)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Run every stage but do not post the comment")
	cmd.Flags().StringVar(&flagFilter, "filter", "", "Filter mode (llm, identity)")
	cmd.Flags().StringVar(&flagClusterStrategy, "cluster-strategy", "", "Clustering strategy (llm, directory)")
	cmd.Flags().IntVar(&flagParallel, "parallel", 0, "Number of clusters reviewed concurrently")
	cmd.Flags().StringVar(&flagRules, "rules", "", "Rules file path")
	cmd.Flags().StringVar(&flagBackend, "backend", "", "GitHub backend (api, gh)")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
}

func buildOverrides() map[string]any {
	m := make(map[string]any)
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagFilter != "" {
		m["filter.mode"] = flagFilter
	}
	if flagClusterStrategy != "" {
		m["cluster.strategy"] = flagClusterStrategy
	}
	if flagParallel > 0 {
		m["review.parallelism"] = flagParallel
	}
	if flagRules != "" {
		m["review.rules_file"] = flagRules
	}
	if flagBackend != "" {
		m["github.backend"] = flagBackend
	}
	if flagDryRun {
		m["publish.dry_run"] = true
	}
	if flagNoRedact {
		m["privacy.redact_secrets"] = false
	}
	return m
}

// resolvePRURL picks the locator from the positional argument or --pr-url.
// Giving both with different values is a usage error.
func resolvePRURL(args []string) (string, error) {
	var positional string
	if len(args) > 0 {
		positional = args[0]
	}
	switch {
	case positional != "" && flagPRURL != "" && positional != flagPRURL:
		return "", fmt.Errorf("conflicting pull request URLs: %q and --pr-url %q", positional, flagPRURL)
	case positional != "":
		return positional, nil
	default:
		return flagPRURL, nil
	}
}

// backend fetches and publishes pull request data.
type backend interface {
	capability.Fetcher
	capability.Publisher
}

func newBackend(cfg config.Config, log zerolog.Logger) backend {
	if cfg.GitHub.Backend == "gh" {
		return ghcli.New(ghcli.Options{TruncateLength: cfg.GitHub.TruncateLength}, log)
	}
	opts := github.OptionsFromEnv()
	if cfg.GitHub.APIURL != "" {
		opts.APIURL = cfg.GitHub.APIURL
	}
	opts.RequestsPerSecond = cfg.GitHub.RequestsPerSecond
	return github.NewClient(opts, log)
}

func newRedactor(cfg config.Config, log zerolog.Logger) *redact.Redactor {
	if !cfg.Privacy.RedactSecrets {
		return nil
	}
	return redact.New(cfg.Privacy.RedactPaths, cfg.Privacy.Gitleaks, log)
}

// newSearcher returns a search tool over the local checkout, or nil when
// search is disabled or the checkout is not the pull request's repository.
func newSearcher(ctx context.Context, cfg config.Config, prURL string, log zerolog.Logger) capability.Searcher {
	if !cfg.Review.Search {
		return nil
	}
	ref, err := changeset.Parse(prURL, cfg.GitHub.Host)
	if err != nil {
		return nil
	}
	meta, err := gitctx.GetRepoMeta(ctx, cfg.Review.SearchRoot)
	if err != nil {
		log.Debug().Err(err).Str("root", cfg.Review.SearchRoot).Msg("no local checkout, search disabled")
		return nil
	}
	if !meta.Matches(ref) {
		log.Debug().Str("checkout", meta.Owner+"/"+meta.Repo).Str("pr", ref.String()).
			Msg("local checkout is a different repository, search disabled")
		return nil
	}
	tool, err := search.New(meta.Root, log)
	if err != nil {
		log.Warn().Err(err).Msg("search disabled")
		return nil
	}
	return tool
}

func newCompleter(cfg config.Config, log zerolog.Logger) (llm.Completer, error) {
	client, err := llm.NewClient(llm.Options{
		Provider:          cfg.Provider,
		Model:             cfg.Model,
		BaseURL:           cfg.LLM.BaseURL,
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       cfg.LLM.Temperature,
		MaxRetries:        cfg.LLM.MaxRetries,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, log)
	if err != nil {
		return nil, err
	}
	store, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return llm.NewCached(client, store, client.Model(), log), nil
}

// buildOrchestrator assembles the stages and capabilities described by cfg.
func buildOrchestrator(ctx context.Context, cfg config.Config, prURL string, log zerolog.Logger) (*pipeline.Orchestrator, error) {
	completer, err := newCompleter(cfg, log)
	if err != nil {
		return nil, err
	}
	rules, err := review.LoadRules(cfg.Review.RulesFile)
	if err != nil {
		return nil, err
	}

	be := newBackend(cfg, log)
	caps := capability.Set{Fetcher: be, Publisher: be}
	if cfg.Publish.DryRun {
		caps.Publisher = &capability.DryRunPublisher{}
	}
	if s := newSearcher(ctx, cfg, prURL, log); s != nil {
		caps.Searcher = s
	}

	reviewer := &stage.Review{
		Engine:       review.NewEngine(completer, rules, cfg.Review.MaxFindings, log),
		ContextBytes: cfg.Review.ContextBytes,
		Log:          log,
	}
	filter := &stage.Filter{LLM: completer, Mode: cfg.Filter.Mode, MinSeverity: cfg.Filter.MinSeverity, Log: log}
	stages := pipeline.Stages{
		Cluster: &stage.Cluster{
			LLM:            completer,
			Redactor:       newRedactor(cfg, log),
			Strategy:       cfg.Cluster.Strategy,
			MaxPromptBytes: cfg.Cluster.MaxPromptBytes,
			Log:            log,
		},
		Review: reviewer.At,
		Filter: filter.For,
		Post:   &stage.Post{Footer: cfg.Publish.Footer, Log: log},
	}

	return pipeline.New(stages, caps, pipeline.Options{
		Host:        cfg.GitHub.Host,
		Parallelism: cfg.Review.Parallelism,
	}, log), nil
}

// exitCodeFor maps a finished run to a process exit code.
func exitCodeFor(out pipeline.Outcome) int {
	if out.Succeeded() {
		return ExitSuccess
	}
	if out.Err != nil && (errors.Is(out.Err, github.ErrAuth) || llm.IsAuthError(out.Err)) {
		return ExitAuthError
	}
	return ExitFailed
}

func runReview(ctx context.Context, prURL string, cfg config.Config) {
	log := newLogger(cfg)
	if !cfg.Privacy.RedactSecrets {
		fmt.Fprintln(os.Stderr, "WARNING: secret redaction is disabled")
	}

	orch, err := buildOrchestrator(ctx, cfg, prURL, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	out := orch.Run(ctx, prURL)
	if err := output.WriteResult(pipeline.Assemble(out), cfg.Format, flagOut); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	if c := out.Confirmation; c != nil {
		if c.DryRun {
			fmt.Fprintf(os.Stderr, "Dry run: comment not posted to %s\n", c.URL)
		} else {
			fmt.Fprintf(os.Stderr, "Posted review comment: %s\n", c.URL)
		}
	}
	exitCode = exitCodeFor(out)
}

var reviewCmd = &cobra.Command{
	Use:   "review [pr-url]",
	Short: "Review a GitHub pull request and post one comment",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prURL, err := resolvePRURL(args)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runReview(ctx, prURL, cfg)
		return nil
	},
}

func init() {
	addReviewFlags(reviewCmd)
}

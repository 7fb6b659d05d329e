package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dshills/sieve/internal/capability"
	"github.com/dshills/sieve/internal/changeset"
	"github.com/dshills/sieve/internal/config"
	"github.com/dshills/sieve/internal/ghcli"
	"github.com/dshills/sieve/internal/github"
	"github.com/dshills/sieve/internal/llm"
	"github.com/dshills/sieve/internal/pipeline"
)

// resetFlags resets all package-level flag variables to their zero values.
func resetFlags() {
	flagConfig = ""
	flagLogLevel = ""
	flagLogFormat = ""
	flagPRURL = ""
	flagProvider = ""
	flagModel = ""
	flagFormat = ""
	flagOut = ""
	flagDryRun = false
	flagFilter = ""
	flagClusterStrategy = ""
	flagParallel = 0
	flagRules = ""
	flagBackend = ""
	flagNoRedact = false
	flagFetchRaw = false
	flagConfigForce = false
	exitCode = ExitSuccess
}

// isolate points config and cache lookups at a fresh temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	resetFlags()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_CACHE_HOME", dir)
	return dir
}

// --- resolvePRURL tests ---

func TestResolvePRURL(t *testing.T) {
	const a = "https://github.com/o/r/pull/1"
	const b = "https://github.com/o/r/pull/2"
	tests := []struct {
		name    string
		args    []string
		flag    string
		want    string
		wantErr bool
	}{
		{"positional", []string{a}, "", a, false},
		{"flag", nil, a, a, false},
		{"both equal", []string{a}, a, a, false},
		{"both differ", []string{a}, b, "", true},
		{"neither", nil, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			flagPRURL = tt.flag
			got, err := resolvePRURL(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// --- buildOverrides tests ---

func TestBuildOverrides_NoFlags(t *testing.T) {
	resetFlags()
	m := buildOverrides()
	if len(m) != 0 {
		t.Errorf("buildOverrides() with no flags = %v, want empty map", m)
	}
}

func TestBuildOverrides_AllFlags(t *testing.T) {
	resetFlags()
	flagProvider = "openai"
	flagModel = "gpt-4o"
	flagFormat = "text"
	flagFilter = "identity"
	flagClusterStrategy = "directory"
	flagParallel = 4
	flagRules = "rules.yaml"
	flagBackend = "gh"
	flagDryRun = true
	flagNoRedact = true

	want := map[string]any{
		"provider":               "openai",
		"model":                  "gpt-4o",
		"format":                 "text",
		"filter.mode":            "identity",
		"cluster.strategy":       "directory",
		"review.parallelism":     4,
		"review.rules_file":      "rules.yaml",
		"github.backend":         "gh",
		"publish.dry_run":        true,
		"privacy.redact_secrets": false,
	}
	got := buildOverrides()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestBuildOverrides_LoadsIntoConfig(t *testing.T) {
	isolate(t)
	flagFilter = "identity"
	flagParallel = 3
	flagDryRun = true
	flagLogLevel = "debug"

	cfg, err := loadConfig(buildOverrides())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Filter.Mode != "identity" || cfg.Review.Parallelism != 3 || !cfg.Publish.DryRun {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestBuildOverrides_InvalidValueRejected(t *testing.T) {
	isolate(t)
	flagFilter = "sometimes"
	if _, err := loadConfig(buildOverrides()); err == nil {
		t.Error("expected validation error for unknown filter mode")
	}
}

// --- component construction tests ---

func TestNewBackend(t *testing.T) {
	cfg := config.Default()
	if _, ok := newBackend(cfg, zerolog.Nop()).(*github.Client); !ok {
		t.Error("api backend should be a REST client")
	}
	cfg.GitHub.Backend = "gh"
	if _, ok := newBackend(cfg, zerolog.Nop()).(*ghcli.Client); !ok {
		t.Error("gh backend should be a gh CLI client")
	}
}

func TestNewRedactor(t *testing.T) {
	cfg := config.Default()
	if newRedactor(cfg, zerolog.Nop()) == nil {
		t.Error("redactor should be built by default")
	}
	cfg.Privacy.RedactSecrets = false
	if newRedactor(cfg, zerolog.Nop()) != nil {
		t.Error("redactor should be nil when redaction is off")
	}
}

func TestNewSearcher_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Review.SearchRoot = t.TempDir()

	if s := newSearcher(ctx, cfg, "not a url", zerolog.Nop()); s != nil {
		t.Error("invalid locator should disable search")
	}
	if s := newSearcher(ctx, cfg, "https://github.com/o/r/pull/1", zerolog.Nop()); s != nil {
		t.Error("a directory that is not a checkout should disable search")
	}
	cfg.Review.Search = false
	if s := newSearcher(ctx, cfg, "https://github.com/o/r/pull/1", zerolog.Nop()); s != nil {
		t.Error("search=false should disable search")
	}
}

func TestBuildOrchestrator_RulesFileMissing(t *testing.T) {
	isolate(t)
	cfg := config.Default()
	cfg.Cache.Enabled = false
	cfg.Review.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := buildOrchestrator(context.Background(), cfg, "", zerolog.Nop()); err == nil {
		t.Error("expected error for missing rules file")
	}
}

func TestBuildOrchestrator_UnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "nope"
	if _, err := buildOrchestrator(context.Background(), cfg, "", zerolog.Nop()); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestBuildOrchestrator_ValidatesBeforeCallingOut(t *testing.T) {
	isolate(t)
	cfg := config.Default()
	cfg.Cache.Enabled = false
	cfg.Publish.DryRun = true

	orch, err := buildOrchestrator(context.Background(), cfg, "https://example.com/o/r/pull/1", zerolog.Nop())
	if err != nil {
		t.Fatalf("buildOrchestrator: %v", err)
	}
	out := orch.Run(context.Background(), "https://example.com/o/r/pull/1")
	if out.Succeeded() {
		t.Fatal("run with a foreign host should fail")
	}
	if out.Err.Reason != pipeline.ReasonInvalidPRURL {
		t.Errorf("Reason = %q, want %q", out.Err.Reason, pipeline.ReasonInvalidPRURL)
	}
}

// --- exit code tests ---

func TestExitCodeFor(t *testing.T) {
	failed := func(err error) pipeline.Outcome {
		return pipeline.Outcome{Phase: pipeline.PhaseFailed, Err: &pipeline.Error{Kind: pipeline.KindClustering, Err: err}}
	}
	tests := []struct {
		name string
		out  pipeline.Outcome
		want int
	}{
		{"success", pipeline.Outcome{Phase: pipeline.PhaseDone}, ExitSuccess},
		{"github auth", failed(fmt.Errorf("fetching diff: %w", github.ErrAuth)), ExitAuthError},
		{"llm auth", failed(&llm.AuthError{Provider: "anthropic", Message: "bad key"}), ExitAuthError},
		{"other failure", failed(github.ErrNotFound), ExitFailed},
		{"failed without cause", pipeline.Outcome{Phase: pipeline.PhaseFailed}, ExitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.out); got != tt.want {
				t.Errorf("exitCodeFor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name string
		code int
		want int
	}{
		{"ExitSuccess", ExitSuccess, 0},
		{"ExitFailed", ExitFailed, 1},
		{"ExitUsageError", ExitUsageError, 2},
		{"ExitAuthError", ExitAuthError, 3},
		{"ExitRuntimeError", ExitRuntimeError, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, tt.code, tt.want)
			}
		})
	}
}

// --- review command tests ---

func TestReviewCmd_NoURLWritesFailureResult(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "result.json")

	reviewCmd.SetArgs([]string{"--out", out, "--dry-run"})
	if err := reviewCmd.Execute(); err != nil {
		t.Fatalf("review returned error: %v", err)
	}
	if exitCode != ExitFailed {
		t.Errorf("exitCode = %d, want %d", exitCode, ExitFailed)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if raw["success"] != false || raw["error"] != pipeline.ReasonNoPRURL {
		t.Errorf("result = %v", raw)
	}
	if raw["clusters"] != nil || raw["reviews"] != nil || raw["summary"] != nil {
		t.Errorf("failure result should have null data: %v", raw)
	}
}

func TestReviewCmd_ConflictingURLs(t *testing.T) {
	isolate(t)
	reviewCmd.SetArgs([]string{"https://github.com/o/r/pull/1", "--pr-url", "https://github.com/o/r/pull/2"})
	if err := reviewCmd.Execute(); err == nil {
		t.Error("expected error for conflicting URLs")
	}
}

func TestReviewCmd_TooManyArgs(t *testing.T) {
	isolate(t)
	reviewCmd.SetArgs([]string{"a", "b"})
	if err := reviewCmd.Execute(); err == nil {
		t.Error("expected error for two positional arguments")
	}
}

// --- fetch command tests ---

func TestFetchCmd_InvalidURL(t *testing.T) {
	isolate(t)
	fetchCmd.SetArgs([]string{"https://github.com/o/r/issues/1"})
	if err := fetchCmd.Execute(); err != nil {
		t.Fatalf("fetch returned error: %v", err)
	}
	if exitCode != ExitUsageError {
		t.Errorf("exitCode = %d, want %d", exitCode, ExitUsageError)
	}
}

func TestWriteFetched(t *testing.T) {
	var buf bytes.Buffer
	cs := capability.ChangeSet{
		Ref:   changeset.Ref{Host: "github.com", Owner: "o", Repo: "r", Number: 7},
		Title: "Fix",
		Diff:  "diff --git a/x b/x\n",
	}
	if err := writeFetched(&buf, cs); err != nil {
		t.Fatalf("writeFetched: %v", err)
	}
	var got fetchedPR
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if got.URL != "https://github.com/o/r/pull/7" || got.Title != "Fix" {
		t.Errorf("got %+v", got)
	}
	if got.Files == nil {
		t.Error("files should be an empty array, not null")
	}
}

// --- version command tests ---

func TestVersionCmd_Execute(t *testing.T) {
	// versionCmd writes to os.Stdout directly, but we can verify it runs without error.
	err := versionCmd.Execute()
	if err != nil {
		t.Errorf("version command returned error: %v", err)
	}
}

func TestVersionConstant(t *testing.T) {
	if version == "" {
		t.Error("version constant is empty")
	}
}

// --- models list command tests ---

func TestModelsListCmd_Execute(t *testing.T) {
	modelsCmd.SetArgs([]string{"list"})
	err := modelsCmd.Execute()
	if err != nil {
		t.Errorf("models list command returned error: %v", err)
	}
}

// --- config command tests ---

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := isolate(t)

	configCmd.SetArgs([]string{"init"})
	if err := configCmd.Execute(); err != nil {
		t.Fatalf("config init returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "sieve", "config.toml"))
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if !strings.Contains(string(data), "provider") {
		t.Errorf("config file missing provider key:\n%s", data)
	}
}

func TestConfigInit_AlreadyExists(t *testing.T) {
	isolate(t)

	configCmd.SetArgs([]string{"init"})
	if err := configCmd.Execute(); err != nil {
		t.Fatalf("first init: %v", err)
	}
	configCmd.SetArgs([]string{"init"})
	if err := configCmd.Execute(); err == nil {
		t.Error("second init without --force should fail")
	}
	configCmd.SetArgs([]string{"init", "--force"})
	if err := configCmd.Execute(); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

func TestConfigSet_UpdatesFile(t *testing.T) {
	isolate(t)

	configCmd.SetArgs([]string{"set", "review.parallelism", "4"})
	if err := configCmd.Execute(); err != nil {
		t.Fatalf("config set returned error: %v", err)
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Review.Parallelism != 4 {
		t.Errorf("Review.Parallelism = %d, want 4", cfg.Review.Parallelism)
	}
}

func TestConfigSet_InvalidKey(t *testing.T) {
	isolate(t)

	configCmd.SetArgs([]string{"set", "unknownKey", "value"})
	if err := configCmd.Execute(); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestConfigSet_MissingArgs(t *testing.T) {
	isolate(t)

	configCmd.SetArgs([]string{"set", "provider"})
	if err := configCmd.Execute(); err == nil {
		t.Error("expected error for missing value argument")
	}
}

func TestConfigShow_Execute(t *testing.T) {
	isolate(t)

	configCmd.SetArgs([]string{"show"})
	if err := configCmd.Execute(); err != nil {
		t.Errorf("config show returned error: %v", err)
	}
}

func TestConfigKeys_Execute(t *testing.T) {
	isolate(t)

	configCmd.SetArgs([]string{"keys"})
	if err := configCmd.Execute(); err != nil {
		t.Errorf("config keys returned error: %v", err)
	}
}

// --- cache command tests ---

func TestCacheShow_Execute(t *testing.T) {
	isolate(t)

	cacheCmd.SetArgs([]string{"show"})
	if err := cacheCmd.Execute(); err != nil {
		t.Errorf("cache show returned error: %v", err)
	}
}

func TestCacheClear_Execute(t *testing.T) {
	dir := isolate(t)

	cacheDir := filepath.Join(dir, "sieve")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cacheDir, "abc123.json"), []byte(`{"key":"test"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cacheCmd.SetArgs([]string{"clear"})
	if err := cacheCmd.Execute(); err != nil {
		t.Errorf("cache clear returned error: %v", err)
	}

	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		t.Fatalf("cannot read cache dir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			t.Errorf("cache clear did not remove %s", e.Name())
		}
	}
}

func TestCachePrune_Execute(t *testing.T) {
	isolate(t)

	cacheCmd.SetArgs([]string{"prune"})
	if err := cacheCmd.Execute(); err != nil {
		t.Errorf("cache prune returned error: %v", err)
	}
}

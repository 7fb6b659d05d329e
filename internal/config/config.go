package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/sieve/internal/review"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: SIEVE_REVIEW__PARALLELISM sets review.parallelism.
const EnvPrefix = "SIEVE_"

// ErrUnknownKey is returned by Set for a key with no default.
var ErrUnknownKey = errors.New("unknown config key")

// Config represents the sieve configuration.
type Config struct {
	Provider string        `koanf:"provider"`
	Model    string        `koanf:"model"`
	Format   string        `koanf:"format"`
	Log      LogConfig     `koanf:"log"`
	GitHub   GitHubConfig  `koanf:"github"`
	LLM      LLMConfig     `koanf:"llm"`
	Review   ReviewConfig  `koanf:"review"`
	Cluster  ClusterConfig `koanf:"cluster"`
	Filter   FilterConfig  `koanf:"filter"`
	Publish  PublishConfig `koanf:"publish"`
	Cache    CacheConfig   `koanf:"cache"`
	Privacy  PrivacyConfig `koanf:"privacy"`
}

// LogConfig controls the zerolog logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// GitHubConfig selects and tunes the fetch/publish backend.
type GitHubConfig struct {
	Backend           string  `koanf:"backend"`
	Host              string  `koanf:"host"`
	APIURL            string  `koanf:"api_url"`
	TruncateLength    int     `koanf:"truncate_length"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// LLMConfig tunes completion requests.
type LLMConfig struct {
	BaseURL           string  `koanf:"base_url"`
	MaxTokens         int     `koanf:"max_tokens"`
	Temperature       float64 `koanf:"temperature"`
	MaxRetries        int     `koanf:"max_retries"`
	RequestsPerMinute int     `koanf:"requests_per_minute"`
}

// ReviewConfig controls the per-cluster review stage.
type ReviewConfig struct {
	Parallelism  int    `koanf:"parallelism"`
	MaxFindings  int    `koanf:"max_findings"`
	Search       bool   `koanf:"search"`
	SearchRoot   string `koanf:"search_root"`
	ContextBytes int    `koanf:"context_bytes"`
	RulesFile    string `koanf:"rules_file"`
}

// ClusterConfig controls the clustering stage.
type ClusterConfig struct {
	Strategy       string `koanf:"strategy"`
	MaxPromptBytes int    `koanf:"max_prompt_bytes"`
}

// FilterConfig controls the filter stage.
type FilterConfig struct {
	Mode        string `koanf:"mode"`
	MinSeverity string `koanf:"min_severity"`
}

// PublishConfig controls the post stage.
type PublishConfig struct {
	DryRun bool   `koanf:"dry_run"`
	Footer string `koanf:"footer"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Dir        string `koanf:"dir"`
	TTLSeconds int    `koanf:"ttl_seconds"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `koanf:"redact_secrets"`
	Gitleaks      bool     `koanf:"gitleaks"`
	RedactPaths   []string `koanf:"redact_paths"`
}

// defaults is the flattened default configuration. Every settable key
// appears here.
func defaults() map[string]any {
	return map[string]any{
		"provider":                   "anthropic",
		"model":                      "",
		"format":                     "json",
		"log.level":                  "warn",
		"log.format":                 "console",
		"github.backend":             "api",
		"github.host":                "github.com",
		"github.api_url":             "",
		"github.truncate_length":     0,
		"github.requests_per_second": 5.0,
		"llm.base_url":               "",
		"llm.max_tokens":             8192,
		"llm.temperature":            0.2,
		"llm.max_retries":            3,
		"llm.requests_per_minute":    0,
		"review.parallelism":         1,
		"review.max_findings":        50,
		"review.search":              true,
		"review.search_root":         ".",
		"review.context_bytes":       20000,
		"review.rules_file":          "",
		"cluster.strategy":           "llm",
		"cluster.max_prompt_bytes":   200000,
		"filter.mode":                "llm",
		"filter.min_severity":        "low",
		"publish.dry_run":            false,
		"publish.footer":             "",
		"cache.enabled":              true,
		"cache.dir":                  "",
		"cache.ttl_seconds":          86400,
		"privacy.redact_secrets":     true,
		"privacy.gitleaks":           true,
		"privacy.redact_paths":       []string{"**/.env", "**/*secrets*"},
	}
}

// Default returns a Config with all defaults applied.
func Default() Config {
	cfg, err := unmarshal(mustDefaults())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Keys lists every settable key, sorted.
func Keys() []string {
	d := defaults()
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConfigDir returns the platform-appropriate config directory for sieve.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sieve"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "sieve"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "sieve"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "sieve"), nil
	default:
		return filepath.Join(home, ".config", "sieve"), nil
	}
}

// ConfigPath returns the full path to the default config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return ConfigPath()
}

func mustDefaults() *koanf.Koanf {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		panic(err)
	}
	return k
}

// envKey maps SIEVE_REVIEW__MAX_FINDINGS to review.max_findings.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// layered builds the effective koanf instance: defaults <- file <- env <-
// overrides. A missing file at the default path is ignored; an explicit
// path must exist.
func layered(path string, overrides map[string]any) (*koanf.Koanf, error) {
	k := mustDefaults()

	explicit := path != ""
	path, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, statErr)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("applying overrides: %w", err)
		}
	}
	return k, nil
}

func unmarshal(k *koanf.Koanf) (Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return cfg, nil
}

// Load builds the effective config from defaults, the TOML file at path
// (or the default location when path is empty), SIEVE_* environment
// variables and overrides keyed by dotted path. The result is validated.
func Load(path string, overrides map[string]any) (Config, error) {
	k, err := layered(path, overrides)
	if err != nil {
		return Config{}, err
	}
	cfg, err := unmarshal(k)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Render returns the effective configuration as TOML.
func Render(path string, overrides map[string]any) ([]byte, error) {
	k, err := layered(path, overrides)
	if err != nil {
		return nil, err
	}
	return k.Marshal(toml.Parser())
}

// Init writes the default configuration to path. An existing file is only
// replaced when force is set.
func Init(path string, force bool) (string, error) {
	path, err := resolvePath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("configuration file already exists at %s", path)
	}
	data, err := mustDefaults().Marshal(toml.Parser())
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}
	return path, writeFile(path, data)
}

// Set writes a single key to the config file at path, creating the file
// when needed. The value is parsed according to the key's default type.
func Set(path, key, value string) error {
	def, ok := defaults()[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	typed, err := parseValue(key, def, value)
	if err != nil {
		return err
	}

	path, err = resolvePath(path)
	if err != nil {
		return err
	}
	k := koanf.New(".")
	if _, statErr := os.Stat(path); statErr == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return fmt.Errorf("loading config %s: %w", path, err)
		}
	}
	if err := k.Set(key, typed); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}

	merged := mustDefaults()
	if err := merged.Merge(k); err != nil {
		return err
	}
	cfg, err := unmarshal(merged)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := k.Marshal(toml.Parser())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return writeFile(path, data)
}

func parseValue(key string, def any, value string) (any, error) {
	switch def.(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be a boolean: %w", key, err)
		}
		return b, nil
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer: %w", key, err)
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number: %w", key, err)
		}
		return f, nil
	case []string:
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return value, nil
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks enumerated and numeric fields.
func (c Config) Validate() error {
	if c.Provider == "" {
		return errors.New("provider is required")
	}
	if err := oneOf("format", c.Format, "json", "text", "markdown"); err != nil {
		return err
	}
	if err := oneOf("log.format", c.Log.Format, "console", "json"); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if err := oneOf("github.backend", c.GitHub.Backend, "api", "gh"); err != nil {
		return err
	}
	if err := oneOf("cluster.strategy", c.Cluster.Strategy, "llm", "directory"); err != nil {
		return err
	}
	if err := oneOf("filter.mode", c.Filter.Mode, "llm", "identity"); err != nil {
		return err
	}
	if !review.IsSeverity(c.Filter.MinSeverity) {
		return fmt.Errorf("filter.min_severity must be high, medium or low, got %q", c.Filter.MinSeverity)
	}
	if c.Review.Parallelism < 1 {
		return fmt.Errorf("review.parallelism must be at least 1, got %d", c.Review.Parallelism)
	}
	if c.Review.MaxFindings < 0 || c.Cache.TTLSeconds < 0 || c.GitHub.TruncateLength < 0 {
		return errors.New("numeric limits must not be negative")
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}

package ghcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/sieve/internal/capability"
	"github.com/dshills/sieve/internal/changeset"
)

// TruncateMarker ends output that was cut at the truncate length.
const TruncateMarker = "<truncated>"

// ErrNotAllowed is returned for a gh invocation outside the allow-list.
var ErrNotAllowed = errors.New("gh command not allowed")

// allowed lists the gh subcommands sieve may run.
var allowed = [][]string{
	{"pr", "view"},
	{"pr", "diff"},
	{"pr", "comment"},
	{"auth", "status"},
}

var commentIDRe = regexp.MustCompile(`#issuecomment-(\d+)`)

// Runner executes a command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, stdin string, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return "", fmt.Errorf("command %s %v failed with return code %d and stderr: %s",
			name, args, code, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Options configures a Client.
type Options struct {
	// Binary is the gh executable; "gh" when empty.
	Binary string
	// TruncateLength caps text output in characters; zero disables it.
	TruncateLength int
	Runner         Runner
}

// Client implements capability.Fetcher and capability.Publisher on top of gh.
type Client struct {
	binary   string
	truncate int
	runner   Runner
	log      zerolog.Logger
}

// New creates a Client.
func New(opts Options, log zerolog.Logger) *Client {
	c := &Client{binary: opts.Binary, truncate: opts.TruncateLength, runner: opts.Runner, log: log}
	if c.binary == "" {
		c.binary = "gh"
	}
	if c.runner == nil {
		c.runner = ExecRunner{}
	}
	return c
}

// Allowed reports whether args begin with an allow-listed subcommand.
func Allowed(args []string) bool {
	for _, prefix := range allowed {
		if len(args) < len(prefix) {
			continue
		}
		ok := true
		for i, p := range prefix {
			if args[i] != p {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// Truncate cuts s to n characters and appends TruncateMarker. A
// non-positive n leaves s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + TruncateMarker
}

func (c *Client) run(ctx context.Context, stdin string, args ...string) (string, error) {
	if !Allowed(args) {
		return "", fmt.Errorf("%w: %s %s", ErrNotAllowed, c.binary, strings.Join(args, " "))
	}
	c.log.Debug().Strs("args", args).Msg("running gh")
	out, err := c.runner.Run(ctx, stdin, c.binary, args...)
	if err != nil {
		c.log.Error().Err(err).Strs("args", args).Msg("gh failed")
		return "", err
	}
	return out, nil
}

// Text runs an allow-listed gh command and returns its truncated output.
func (c *Client) Text(ctx context.Context, args ...string) (string, error) {
	out, err := c.run(ctx, "", args...)
	if err != nil {
		return "", err
	}
	return Truncate(out, c.truncate), nil
}

type prView struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Files []struct {
		Path string `json:"path"`
	} `json:"files"`
}

// Fetch implements capability.Fetcher.
func (c *Client) Fetch(ctx context.Context, ref changeset.Ref) (capability.ChangeSet, error) {
	raw, err := c.run(ctx, "", "pr", "view", ref.URL(), "--json", "title,body,files")
	if err != nil {
		return capability.ChangeSet{}, err
	}
	var view prView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		return capability.ChangeSet{}, fmt.Errorf("parsing gh pr view output: %w", err)
	}
	diff, err := c.Text(ctx, "pr", "diff", ref.URL())
	if err != nil {
		return capability.ChangeSet{}, err
	}
	cs := capability.ChangeSet{Ref: ref, Title: view.Title, Body: view.Body, Diff: diff}
	for _, f := range view.Files {
		cs.Files = append(cs.Files, f.Path)
	}
	return cs, nil
}

// Publish implements capability.Publisher. The body is passed on stdin.
func (c *Client) Publish(ctx context.Context, action capability.Action) (capability.Confirmation, error) {
	out, err := c.run(ctx, action.Body, "pr", "comment", action.Ref.URL(), "--body-file", "-")
	if err != nil {
		return capability.Confirmation{}, err
	}
	url := strings.TrimSpace(out)
	conf := capability.Confirmation{URL: url}
	if m := commentIDRe.FindStringSubmatch(url); len(m) == 2 {
		conf.ID, _ = strconv.ParseInt(m[1], 10, 64)
	}
	return conf, nil
}

package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dshills/sieve/internal/capability"
	"github.com/dshills/sieve/internal/changeset"
)

const (
	defaultAPIURL = "https://api.github.com"
	filesPerPage  = 100
	maxFilePages  = 30
	// MaxCommentChars is GitHub's limit on an issue comment body.
	MaxCommentChars = 65536
	truncatedNote   = "\n\n_Review truncated to fit GitHub's comment size limit._\n"
)

var (
	// ErrAuth is returned when no token is configured or GitHub rejects it.
	ErrAuth = errors.New("github authentication failed")
	// ErrNotFound is returned for a missing repository or pull request.
	ErrNotFound = errors.New("not found on github")
)

// Options configures a Client.
type Options struct {
	Token             string
	APIURL            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// OptionsFromEnv reads GITHUB_TOKEN and GITHUB_API_URL.
func OptionsFromEnv() Options {
	return Options{Token: os.Getenv("GITHUB_TOKEN"), APIURL: os.Getenv("GITHUB_API_URL")}
}

// Client provides access to the GitHub REST API. It implements
// capability.Fetcher and capability.Publisher.
type Client struct {
	token   string
	apiURL  string
	httpCli *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient creates a new GitHub client. A missing token is not an error
// here; requests fail with ErrAuth when they are made.
func NewClient(opts Options, log zerolog.Logger) *Client {
	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		token:   opts.Token,
		apiURL:  strings.TrimRight(apiURL, "/"),
		httpCli: &http.Client{Timeout: timeout},
		log:     log,
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 5)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path, accept string, payload []byte) ([]byte, error) {
	if c.token == "" {
		return nil, fmt.Errorf("%w: GITHUB_TOKEN environment variable is not set", ErrAuth)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpCli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("github request")

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrAuth, strings.TrimSpace(string(data)))
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("GitHub rejected request (422): %s", string(data))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("GitHub API error (status %d): %s", resp.StatusCode, string(data))
	}
	return data, nil
}

// PullRequest is the subset of pull request metadata the pipeline uses.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
	Head    struct {
		SHA string `json:"sha"`
		Ref string `json:"ref"`
	} `json:"head"`
}

// GetPullRequest fetches pull request metadata.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, prNumber int) (PullRequest, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, prNumber), "application/vnd.github+json", nil)
	if err != nil {
		return PullRequest{}, wrapNotFound(err, owner, repo, prNumber)
	}
	var pr PullRequest
	if err := json.Unmarshal(data, &pr); err != nil {
		return PullRequest{}, fmt.Errorf("parsing pull request: %w", err)
	}
	return pr, nil
}

// GetPRDiff fetches the unified diff for a pull request.
func (c *Client) GetPRDiff(ctx context.Context, owner, repo string, prNumber int) (string, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, prNumber), "application/vnd.github.v3.diff", nil)
	if err != nil {
		return "", wrapNotFound(err, owner, repo, prNumber)
	}
	return string(data), nil
}

// PRFile represents a file changed in a pull request.
type PRFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

// GetPRFiles lists the files changed in a pull request, following pagination.
func (c *Client) GetPRFiles(ctx context.Context, owner, repo string, prNumber int) ([]string, error) {
	var names []string
	for page := 1; page <= maxFilePages; page++ {
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files?per_page=%d&page=%d", owner, repo, prNumber, filesPerPage, page)
		data, err := c.do(ctx, http.MethodGet, path, "application/vnd.github+json", nil)
		if err != nil {
			return nil, wrapNotFound(err, owner, repo, prNumber)
		}
		var files []PRFile
		if err := json.Unmarshal(data, &files); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}
		for _, f := range files {
			names = append(names, f.Filename)
		}
		if len(files) < filesPerPage {
			break
		}
	}
	return names, nil
}

// Comment is a posted issue comment.
type Comment struct {
	ID      int64  `json:"id"`
	HTMLURL string `json:"html_url"`
}

// PostComment posts body as a conversation comment on the pull request.
// Bodies over MaxCommentChars are truncated.
func (c *Client) PostComment(ctx context.Context, owner, repo string, prNumber int, body string) (Comment, error) {
	if len(body) > MaxCommentChars {
		n := MaxCommentChars - len(truncatedNote)
		for n > 0 && !utf8.RuneStart(body[n]) {
			n--
		}
		body = body[:n] + truncatedNote
	}
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return Comment{}, fmt.Errorf("marshaling comment: %w", err)
	}
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, prNumber), "application/vnd.github+json", payload)
	if err != nil {
		return Comment{}, wrapNotFound(err, owner, repo, prNumber)
	}
	var cm Comment
	if err := json.Unmarshal(data, &cm); err != nil {
		return Comment{}, fmt.Errorf("parsing comment response: %w", err)
	}
	return cm, nil
}

// Fetch implements capability.Fetcher.
func (c *Client) Fetch(ctx context.Context, ref changeset.Ref) (capability.ChangeSet, error) {
	pr, err := c.GetPullRequest(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return capability.ChangeSet{}, err
	}
	diff, err := c.GetPRDiff(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return capability.ChangeSet{}, err
	}
	files, err := c.GetPRFiles(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return capability.ChangeSet{}, err
	}
	return capability.ChangeSet{Ref: ref, Title: pr.Title, Body: pr.Body, Diff: diff, Files: files}, nil
}

// Publish implements capability.Publisher.
func (c *Client) Publish(ctx context.Context, action capability.Action) (capability.Confirmation, error) {
	cm, err := c.PostComment(ctx, action.Ref.Owner, action.Ref.Repo, action.Ref.Number, action.Body)
	if err != nil {
		return capability.Confirmation{}, err
	}
	return capability.Confirmation{ID: cm.ID, URL: cm.HTMLURL}, nil
}

func wrapNotFound(err error, owner, repo string, prNumber int) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("PR #%d not found in %s/%s: %w", prNumber, owner, repo, err)
	}
	return err
}

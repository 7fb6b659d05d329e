package changeset

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultHost is the host accepted when no GitHub Enterprise host is configured.
const DefaultHost = "github.com"

var (
	// ErrMissing is returned when no locator was supplied.
	ErrMissing = errors.New("no pr_url provided")
	// ErrInvalid is returned when the locator is not a pull request URL.
	ErrInvalid = errors.New("invalid pr_url format")
)

// Ref is the validated identity of a pull request.
type Ref struct {
	Host   string `json:"host"`
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"number"`
}

// URL returns the canonical web URL of the pull request.
func (r Ref) URL() string {
	return fmt.Sprintf("https://%s/%s/%s/pull/%d", r.Host, r.Owner, r.Repo, r.Number)
}

// String returns owner/repo#number.
func (r Ref) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// Parse validates raw as a pull request URL on host. An empty host means
// DefaultHost. Only the empty string counts as missing; a blank string is
// an invalid locator.
func Parse(raw, host string) (Ref, error) {
	if raw == "" {
		return Ref{}, ErrMissing
	}
	raw = strings.TrimSpace(raw)
	if host == "" {
		host = DefaultHost
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return Ref{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalid, u.Scheme)
	}
	if !strings.EqualFold(u.Host, host) {
		return Ref{}, fmt.Errorf("%w: host %q is not %s", ErrInvalid, u.Host, host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 4 || parts[2] != "pull" || parts[0] == "" || parts[1] == "" {
		return Ref{}, fmt.Errorf("%w: path %q is not /<owner>/<repo>/pull/<number>", ErrInvalid, u.Path)
	}

	n, err := strconv.Atoi(parts[3])
	if err != nil || n <= 0 {
		return Ref{}, fmt.Errorf("%w: %q is not a pull request number", ErrInvalid, parts[3])
	}

	return Ref{
		Host:   strings.ToLower(u.Host),
		Owner:  parts[0],
		Repo:   parts[1],
		Number: n,
	}, nil
}

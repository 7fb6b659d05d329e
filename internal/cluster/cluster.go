package cluster

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/sieve/internal/llm"
)

// UnclusteredName names the cluster that collects files no grouping claimed.
const UnclusteredName = "Unclustered changes"

// ErrNoClusters is returned by Parse when the output holds no usable cluster.
var ErrNoClusters = errors.New("no clusters found")

// FileDiff is the diff of one file.
type FileDiff struct {
	Filename string `json:"filename"`
	Diff     string `json:"diff"`
}

// Cluster is a named group of related file diffs.
type Cluster struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Files       []FileDiff `json:"files"`
}

// Filenames lists the files in the cluster in order.
func (c Cluster) Filenames() []string {
	names := make([]string, len(c.Files))
	for i, f := range c.Files {
		names[i] = f.Filename
	}
	return names
}

// Raw is the unstructured output of the clustering step together with the
// split diff it was computed from. Text is kept for diagnostics when it
// fails to parse.
type Raw struct {
	Text  string     `json:"text"`
	Files []FileDiff `json:"files"`
}

// Empty reports whether the clustering step produced nothing.
func (r Raw) Empty() bool {
	return strings.TrimSpace(r.Text) == ""
}

type document struct {
	Clusters []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Files       []file `json:"files"`
	} `json:"clusters"`
}

// file accepts either {"filename": ..., "diff": ...} or a bare filename.
type file struct {
	Filename string
	Diff     string
}

func (f *file) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		f.Filename = name
		return nil
	}
	var obj struct {
		Filename string `json:"filename"`
		Path     string `json:"path"`
		Diff     string `json:"diff"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	f.Filename = obj.Filename
	if f.Filename == "" {
		f.Filename = obj.Path
	}
	f.Diff = obj.Diff
	return nil
}

// Parse decodes raw.Text into clusters. Filenames are matched against
// raw.Files to fill in diff text; a file is assigned to the first cluster
// that names it. Files named by the model that are not part of the diff are
// dropped, and files the model left out are appended as UnclusteredName.
// Clusters left without files are removed. Parse returns ErrNoClusters when
// the text is not a cluster document, lists no clusters, or nothing remains.
func Parse(raw Raw) ([]Cluster, error) {
	var doc document
	if err := llm.DecodeJSON(raw.Text, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoClusters, err)
	}
	if len(doc.Clusters) == 0 {
		return nil, ErrNoClusters
	}

	known := make(map[string]string, len(raw.Files))
	for _, f := range raw.Files {
		known[f.Filename] = f.Diff
	}
	assigned := make(map[string]bool)

	var out []Cluster
	for i, c := range doc.Clusters {
		cl := Cluster{Name: strings.TrimSpace(c.Name), Description: strings.TrimSpace(c.Description)}
		if cl.Name == "" {
			cl.Name = fmt.Sprintf("Cluster %d", i+1)
		}
		for _, f := range c.Files {
			name := strings.TrimSpace(f.Filename)
			if name == "" || assigned[name] {
				continue
			}
			diff, ok := known[name]
			switch {
			case ok:
			case len(raw.Files) == 0 && f.Diff != "":
				diff = f.Diff
			default:
				continue
			}
			assigned[name] = true
			cl.Files = append(cl.Files, FileDiff{Filename: name, Diff: diff})
		}
		if len(cl.Files) > 0 {
			out = append(out, cl)
		}
	}

	var rest []FileDiff
	for _, f := range raw.Files {
		if !assigned[f.Filename] {
			rest = append(rest, f)
		}
	}
	if len(rest) > 0 {
		out = append(out, Cluster{
			Name:        UnclusteredName,
			Description: "Files the grouping step did not assign to any cluster.",
			Files:       rest,
		})
	}

	if len(out) == 0 {
		return nil, ErrNoClusters
	}
	return out, nil
}

// Encode renders clusters in the same JSON shape Parse accepts.
func Encode(clusters []Cluster) (string, error) {
	doc := struct {
		Clusters []Cluster `json:"clusters"`
	}{Clusters: clusters}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding clusters: %w", err)
	}
	return string(data), nil
}

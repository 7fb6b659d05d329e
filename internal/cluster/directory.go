package cluster

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

const rootGroup = "(root)"

// ByDirectory groups files by their top-level directory. Files at the
// repository root form one group. Groups are ordered by name with the root
// group first, and files keep their diff order within a group.
func ByDirectory(files []FileDiff) []Cluster {
	groups := make(map[string][]FileDiff)
	for _, f := range files {
		key := topLevel(f.Filename)
		groups[key] = append(groups[key], f)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == rootGroup || keys[j] == rootGroup {
			return keys[i] == rootGroup && keys[j] != rootGroup
		}
		return keys[i] < keys[j]
	})

	out := make([]Cluster, 0, len(keys))
	for _, k := range keys {
		c := Cluster{Name: k, Files: groups[k]}
		if k == rootGroup {
			c.Name = "Repository root"
			c.Description = fmt.Sprintf("%d top-level file(s)", len(c.Files))
		} else {
			c.Description = fmt.Sprintf("%d file(s) under %s/", len(c.Files), k)
		}
		out = append(out, c)
	}
	return out
}

func topLevel(name string) string {
	name = path.Clean(strings.TrimPrefix(name, "/"))
	dir, _, found := strings.Cut(name, "/")
	if !found {
		return rootGroup
	}
	return dir
}

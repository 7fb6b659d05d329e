package capability

import "fmt"

// StageID identifies a pipeline stage for capability lookup.
type StageID string

const (
	StageCluster StageID = "cluster"
	StageReview  StageID = "review"
	StageFilter  StageID = "filter"
	StagePost    StageID = "post"
)

// Registry maps stages to the capabilities they may use. The table is static
// and covers every StageID; asking about any other id is a programming error.
type Registry struct {
	grants map[StageID][]Kind
}

// DefaultRegistry returns the grant table used by the pipeline.
func DefaultRegistry() Registry {
	return Registry{grants: map[StageID][]Kind{
		StageCluster: {Fetch},
		StageReview:  {Search},
		StageFilter:  {},
		StagePost:    {Publish},
	}}
}

// Grants returns the capability kinds stage may invoke. It panics for an
// unknown stage.
func (r Registry) Grants(stage StageID) []Kind {
	kinds, ok := r.grants[stage]
	if !ok {
		panic(fmt.Sprintf("capability: unknown stage %q", stage))
	}
	return append([]Kind(nil), kinds...)
}

// Bind narrows all to the members granted to stage.
func (r Registry) Bind(stage StageID, all Set) Set {
	var out Set
	for _, k := range r.Grants(stage) {
		switch k {
		case Fetch:
			out.Fetcher = all.Fetcher
		case Search:
			out.Searcher = all.Searcher
		case Publish:
			out.Publisher = all.Publisher
		}
	}
	return out
}

package graph

import "github.com/aretw0/modelgraph/pkg/domain"

// EdgePolicy decides which structurally valid edges Connect accepts.
// The zero value rejects self-loops and parallel edges; use PermissivePolicy
// for the behavior of the original canvas.
type EdgePolicy struct {
	AllowSelfLoops     bool `json:"allow_self_loops" yaml:"allow_self_loops"`
	AllowParallelEdges bool `json:"allow_parallel_edges" yaml:"allow_parallel_edges"`
}

// PermissivePolicy accepts self-loops and parallel edges.
func PermissivePolicy() EdgePolicy {
	return EdgePolicy{AllowSelfLoops: true, AllowParallelEdges: true}
}

func (p EdgePolicy) check(source, target string, edges []domain.Edge) error {
	if !p.AllowSelfLoops && source == target {
		return domain.ErrSelfLoop
	}
	if !p.AllowParallelEdges {
		for _, e := range edges {
			if e.Source == source && e.Target == target {
				return domain.ErrParallelEdge
			}
		}
	}
	return nil
}

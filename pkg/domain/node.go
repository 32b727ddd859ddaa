package domain

import (
	"strconv"
	"strings"
)

// Position is display metadata for the canvas. It never affects compilation.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// NodeTemplate is a catalog entry a user can instantiate.
// Its identity is its position in the catalog list.
type NodeTemplate struct {
	Label       string         `json:"label" yaml:"label" mapstructure:"label" validate:"required"`
	Kind        string         `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Code        string         `json:"code,omitempty" yaml:"code,omitempty" mapstructure:"code"`
	Category    string         `json:"category,omitempty" yaml:"category,omitempty" mapstructure:"category"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Params      map[string]any `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
}

// Node is an authored vertex of the graph.
type Node struct {
	ID       string         `json:"id" yaml:"id"`
	Kind     Kind           `json:"kind" yaml:"kind"`
	Label    string         `json:"label" yaml:"label"`
	Code     string         `json:"code,omitempty" yaml:"code,omitempty"`
	Position Position       `json:"position" yaml:"position"`
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Clone returns a copy of the node that shares no mutable state with n.
func (n Node) Clone() Node {
	n.Params = cloneParams(n.Params)
	return n
}

// Edge is a directed connection between two nodes of the same graph.
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// EdgeID builds the canonical edge identifier for the given sequence number.
// The sequence keeps parallel edges between the same pair distinct.
func EdgeID(seq uint64, source, target string) string {
	return "e" + strconv.FormatUint(seq, 10) + "-" + source + "-" + target
}

// EdgeSeq extracts the sequence number from an ID built by EdgeID.
func EdgeSeq(id string) (uint64, bool) {
	rest, ok := strings.CutPrefix(id, "e")
	if !ok {
		return 0, false
	}
	num, _, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Graph is an immutable snapshot of a graph store.
// Nodes are in insertion order, edges in connection order.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`

	// NodeSeq and EdgeSeq are the highest sequence numbers ever issued.
	// A restored store keeps allocating above them.
	NodeSeq uint64 `json:"node_seq" yaml:"node_seq"`
	EdgeSeq uint64 `json:"edge_seq" yaml:"edge_seq"`
}

// Clone deep-copies the snapshot.
func (g Graph) Clone() Graph {
	out := Graph{
		Nodes:   make([]Node, len(g.Nodes)),
		Edges:   make([]Edge, len(g.Edges)),
		NodeSeq: g.NodeSeq,
		EdgeSeq: g.EdgeSeq,
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.Clone()
	}
	copy(out.Edges, g.Edges)
	return out
}

func cloneParams(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// CloneParams returns a shallow copy of a parameter map (nil stays nil).
func CloneParams(in map[string]any) map[string]any {
	return cloneParams(in)
}

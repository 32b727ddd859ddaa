// Package compiler projects a graph snapshot into the training wire format.
//
// Compilation is pure: it never mutates its input, it is deterministic (the same
// snapshot always marshals to the same bytes) and it cannot fail on a snapshot taken
// from a graph.Store, since the store already guarantees every edge endpoint exists.
package compiler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/aretw0/modelgraph/pkg/domain"
)

// Compile derives per-node adjacency and wraps it with the caller's metadata.
func Compile(g domain.Graph, meta domain.Metadata) domain.TrainingRequest {
	inputs := make(map[string][]string, len(g.Nodes))
	outputs := make(map[string][]string, len(g.Nodes))
	edges := make([]domain.CompiledEdge, 0, len(g.Edges))

	// One pass over the edges keeps edge order inside every list.
	for _, e := range g.Edges {
		inputs[e.Target] = append(inputs[e.Target], e.Source)
		outputs[e.Source] = append(outputs[e.Source], e.Target)
		edges = append(edges, domain.CompiledEdge{From: e.Source, To: e.Target})
	}

	nodes := make([]domain.CompiledNode, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, domain.CompiledNode{
			ID:         n.ID,
			Type:       nodeType(n),
			Params:     params(n.Params),
			Inputs:     nonNil(inputs[n.ID]),
			Outputs:    nonNil(outputs[n.ID]),
			KindOrigin: origin(n),
		})
	}

	return domain.TrainingRequest{
		ModelID: meta.ModelID,
		Dataset: meta.Dataset,
		Graph: domain.CompiledGraph{
			Nodes: nodes,
			Edges: edges,
		},
	}
}

func nodeType(n domain.Node) string {
	if n.Kind.Name != "" {
		return n.Kind.Name
	}
	return domain.SanitizeLabel(n.Label)
}

func origin(n domain.Node) domain.KindOrigin {
	if n.Kind.Name == "" {
		return domain.KindLabel
	}
	return n.Kind.Origin
}

func params(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	return domain.CloneParams(in)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Marshal encodes the request canonically: map keys sorted, no HTML escaping,
// no trailing newline.
func Marshal(req domain.TrainingRequest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(req); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Fingerprint identifies a request by content: the first 12 hex digits of the
// SHA-256 of its canonical encoding. Used as the submission idempotency key.
func Fingerprint(req domain.TrainingRequest) (string, error) {
	data, err := Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12], nil
}

package domain

// CompiledNode is the wire projection of a node with its derived adjacency.
type CompiledNode struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Params  map[string]any `json:"params"`
	Inputs  []string       `json:"inputs"`
	Outputs []string       `json:"outputs"`

	// KindOrigin lets Go consumers tell catalog kinds from label fallbacks.
	// It is not part of the wire format.
	KindOrigin KindOrigin `json:"-"`
}

// CompiledEdge is an edge in wire form.
type CompiledEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// CompiledGraph groups the compiled nodes and edges.
type CompiledGraph struct {
	Nodes []CompiledNode `json:"nodes"`
	Edges []CompiledEdge `json:"edges"`
}

// TrainingRequest is the body POSTed to the training endpoint.
type TrainingRequest struct {
	ModelID string        `json:"model_id"`
	Dataset string        `json:"dataset"`
	Graph   CompiledGraph `json:"graph"`
}

// Metadata is the caller-supplied part of a TrainingRequest.
type Metadata struct {
	ModelID string `json:"model_id" yaml:"model_id"`
	Dataset string `json:"dataset" yaml:"dataset"`
}

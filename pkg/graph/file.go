package graph

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/modelgraph/pkg/domain"
	"gopkg.in/yaml.v3"
)

// FileNode is a node as written in a graph file.
type FileNode struct {
	ID       string          `yaml:"id" jsonschema:"required,minLength=1"`
	Label    string          `yaml:"label" jsonschema:"required"`
	Type     string          `yaml:"type,omitempty" jsonschema:"description=Explicit node kind; empty or default falls back to the sanitized label"`
	Code     string          `yaml:"code,omitempty"`
	Position domain.Position `yaml:"position,omitempty"`
	Params   map[string]any  `yaml:"params,omitempty"`
}

// FileEdge is an edge as written in a graph file.
type FileEdge struct {
	Source string `yaml:"source" jsonschema:"required"`
	Target string `yaml:"target" jsonschema:"required"`
}

// Document is the on-disk form of a graph plus its training metadata.
//
//	model_id: lstm-demo
//	dataset: sine
//	nodes:
//	  - {id: "1", label: Input Node, type: input}
//	  - {id: "2", label: LSTM Cell}
//	edges:
//	  - {source: "1", target: "2"}
type Document struct {
	ModelID string     `yaml:"model_id"`
	Dataset string     `yaml:"dataset"`
	Nodes   []FileNode `yaml:"nodes"`
	Edges   []FileEdge `yaml:"edges"`
}

// Metadata returns the training metadata of the document.
func (d Document) Metadata() domain.Metadata {
	return domain.Metadata{ModelID: d.ModelID, Dataset: d.Dataset}
}

// Graph converts the document into a consistent graph snapshot.
// Nodes without a type fall back to their label, as on the canvas.
func (d Document) Graph() (domain.Graph, error) {
	g := domain.Graph{
		Nodes: make([]domain.Node, 0, len(d.Nodes)),
		Edges: make([]domain.Edge, 0, len(d.Edges)),
	}
	for _, n := range d.Nodes {
		g.Nodes = append(g.Nodes, domain.Node{
			ID:       n.ID,
			Kind:     domain.KindFor(domain.NodeTemplate{Label: n.Label, Kind: n.Type}),
			Label:    n.Label,
			Code:     n.Code,
			Position: n.Position,
			Params:   domain.CloneParams(n.Params),
		})
	}
	for i, e := range d.Edges {
		g.Edges = append(g.Edges, domain.Edge{
			ID:     domain.EdgeID(uint64(i+1), e.Source, e.Target),
			Source: e.Source,
			Target: e.Target,
		})
	}

	// Restore rejects duplicates and dangling edges.
	s, err := FromSnapshot(g)
	if err != nil {
		return domain.Graph{}, err
	}
	return s.Snapshot(), nil
}

// NewDocument converts a graph snapshot back into file form.
func NewDocument(g domain.Graph, meta domain.Metadata) Document {
	d := Document{ModelID: meta.ModelID, Dataset: meta.Dataset}
	for _, n := range g.Nodes {
		typ := ""
		if n.Kind.IsExplicit() {
			typ = n.Kind.Name
		}
		d.Nodes = append(d.Nodes, FileNode{
			ID:       n.ID,
			Label:    n.Label,
			Type:     typ,
			Code:     n.Code,
			Position: n.Position,
			Params:   domain.CloneParams(n.Params),
		})
	}
	for _, e := range g.Edges {
		d.Edges = append(d.Edges, FileEdge{Source: e.Source, Target: e.Target})
	}
	return d
}

// DecodeDocument reads a YAML (or JSON) graph document.
func DecodeDocument(r io.Reader) (Document, error) {
	var d Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		if err == io.EOF {
			return Document{}, fmt.Errorf("empty graph document")
		}
		return Document{}, fmt.Errorf("decode graph document: %w", err)
	}
	return d, nil
}

// LoadDocument reads a graph document from path.
func LoadDocument(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read graph file: %w", err)
	}
	d, err := DecodeDocument(bytes.NewReader(raw))
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// EncodeDocument writes d as YAML.
func EncodeDocument(w io.Writer, d Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}

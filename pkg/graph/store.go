package graph

import (
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/aretw0/modelgraph/pkg/domain"
)

// Store holds the nodes and edges of one graph.
// Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	order []string // node IDs in insertion order
	nodes map[string]*domain.Node
	edges []domain.Edge

	// Highest sequence numbers ever issued. Never decremented.
	nodeSeq uint64
	edgeSeq uint64

	policy EdgePolicy
}

// Option configures a Store.
type Option func(*Store)

// WithPolicy sets the edge policy. Defaults to PermissivePolicy.
func WithPolicy(p EdgePolicy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		nodes:  make(map[string]*domain.Node),
		policy: PermissivePolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromSnapshot creates a store holding a copy of g.
func FromSnapshot(g domain.Graph, opts ...Option) (*Store, error) {
	s := New(opts...)
	if err := s.Restore(g); err != nil {
		return nil, err
	}
	return s, nil
}

// Policy returns the active edge policy.
func (s *Store) Policy() EdgePolicy {
	return s.policy
}

// CreateNode instantiates a template at the given position.
func (s *Store) CreateNode(t domain.NodeTemplate, pos domain.Position) domain.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createLocked(t, pos)
}

// CreateNodeAfter instantiates a template and connects upstream to it in one step.
// If upstream is absent nothing is created.
func (s *Store) CreateNodeAfter(t domain.NodeTemplate, pos domain.Position, upstream string) (domain.Node, domain.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[upstream]; !ok {
		return domain.Node{}, domain.Edge{}, fmt.Errorf("upstream %q: %w", upstream, domain.ErrNodeNotFound)
	}
	// A fresh node has no edges, so neither a self-loop nor a parallel edge is possible.
	n := s.createLocked(t, pos)
	e := s.connectLocked(upstream, n.ID)
	return n, e, nil
}

func (s *Store) createLocked(t domain.NodeTemplate, pos domain.Position) domain.Node {
	s.nodeSeq++
	n := &domain.Node{
		ID:       strconv.FormatUint(s.nodeSeq, 10),
		Kind:     domain.KindFor(t),
		Label:    t.Label,
		Code:     t.Code,
		Position: pos,
		Params:   domain.CloneParams(t.Params),
	}
	s.nodes[n.ID] = n
	s.order = append(s.order, n.ID)
	return n.Clone()
}

// RemoveNode deletes a node together with every edge touching it.
// It returns the removed incident edges.
func (s *Store) RemoveNode(id string) ([]domain.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return nil, fmt.Errorf("remove %q: %w", id, domain.ErrNodeNotFound)
	}

	delete(s.nodes, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })

	var removed []domain.Edge
	kept := s.edges[:0]
	for _, e := range s.edges {
		if e.Source == id || e.Target == id {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	// Clear the tail so dropped edges are not retained by the backing array.
	clear(s.edges[len(kept):])
	s.edges = kept
	return removed, nil
}

// Connect adds an edge from source to target.
func (s *Store) Connect(source, target string) (domain.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[source]; !ok {
		return domain.Edge{}, fmt.Errorf("source %q: %w", source, domain.ErrNodeNotFound)
	}
	if _, ok := s.nodes[target]; !ok {
		return domain.Edge{}, fmt.Errorf("target %q: %w", target, domain.ErrNodeNotFound)
	}
	if err := s.policy.check(source, target, s.edges); err != nil {
		return domain.Edge{}, fmt.Errorf("connect %q -> %q: %w", source, target, err)
	}
	return s.connectLocked(source, target), nil
}

func (s *Store) connectLocked(source, target string) domain.Edge {
	s.edgeSeq++
	e := domain.Edge{
		ID:     domain.EdgeID(s.edgeSeq, source, target),
		Source: source,
		Target: target,
	}
	s.edges = append(s.edges, e)
	return e
}

// RemoveEdge deletes a single edge.
func (s *Store) RemoveEdge(id string) (domain.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.edges, func(e domain.Edge) bool { return e.ID == id })
	if i < 0 {
		return domain.Edge{}, fmt.Errorf("remove edge %q: %w", id, domain.ErrEdgeNotFound)
	}
	e := s.edges[i]
	s.edges = slices.Delete(s.edges, i, i+1)
	return e, nil
}

// MoveNode updates a node's position.
func (s *Store) MoveNode(id string, pos domain.Position) (domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return domain.Node{}, fmt.Errorf("move %q: %w", id, domain.ErrNodeNotFound)
	}
	n.Position = pos
	return n.Clone(), nil
}

// SetParam sets a parameter on a node. A nil value deletes the key.
func (s *Store) SetParam(id, key string, value any) (domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return domain.Node{}, fmt.Errorf("set param on %q: %w", id, domain.ErrNodeNotFound)
	}
	if value == nil {
		delete(n.Params, key)
		return n.Clone(), nil
	}
	if n.Params == nil {
		n.Params = make(map[string]any)
	}
	n.Params[key] = value
	return n.Clone(), nil
}

// Node returns a copy of the node with the given ID.
func (s *Store) Node(id string) (domain.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return domain.Node{}, false
	}
	return n.Clone(), true
}

// Len returns the number of nodes and edges.
func (s *Store) Len() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order), len(s.edges)
}

// Snapshot returns a deep copy of the graph.
func (s *Store) Snapshot() domain.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := domain.Graph{
		Nodes:   make([]domain.Node, 0, len(s.order)),
		Edges:   make([]domain.Edge, len(s.edges)),
		NodeSeq: s.nodeSeq,
		EdgeSeq: s.edgeSeq,
	}
	for _, id := range s.order {
		g.Nodes = append(g.Nodes, s.nodes[id].Clone())
	}
	copy(g.Edges, s.edges)
	return g
}

// Restore replaces the store content with a copy of g.
// The snapshot must be consistent: unique IDs and no dangling edges.
// Counters are raised above every numeric ID found, so IDs are never reissued.
func (s *Store) Restore(g domain.Graph) error {
	nodes := make(map[string]*domain.Node, len(g.Nodes))
	order := make([]string, 0, len(g.Nodes))
	nodeSeq, edgeSeq := g.NodeSeq, g.EdgeSeq

	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("restore: node with empty id")
		}
		if _, dup := nodes[n.ID]; dup {
			return fmt.Errorf("restore: duplicate node id %q", n.ID)
		}
		c := n.Clone()
		nodes[n.ID] = &c
		order = append(order, n.ID)
		if v, err := strconv.ParseUint(n.ID, 10, 64); err == nil && v > nodeSeq {
			nodeSeq = v
		}
	}

	seen := make(map[string]struct{}, len(g.Edges))
	edges := make([]domain.Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if _, dup := seen[e.ID]; dup || e.ID == "" {
			return fmt.Errorf("restore: invalid or duplicate edge id %q", e.ID)
		}
		seen[e.ID] = struct{}{}
		if _, ok := nodes[e.Source]; !ok {
			return fmt.Errorf("restore: edge %q source %q: %w", e.ID, e.Source, domain.ErrNodeNotFound)
		}
		if _, ok := nodes[e.Target]; !ok {
			return fmt.Errorf("restore: edge %q target %q: %w", e.ID, e.Target, domain.ErrNodeNotFound)
		}
		edges = append(edges, e)
		if v, ok := domain.EdgeSeq(e.ID); ok && v > edgeSeq {
			edgeSeq = v
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = nodes
	s.order = order
	s.edges = edges
	s.nodeSeq = nodeSeq
	s.edgeSeq = edgeSeq
	return nil
}

// Clear removes every node and edge. Counters keep their values.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]*domain.Node)
	s.order = nil
	s.edges = nil
}

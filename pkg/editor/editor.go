// Package editor is the authoring surface used by the interactive canvas.
//
// An Editor wraps a graph.Store with the catalog check, the auto-chain affordance for
// consecutively dropped nodes and lifecycle hooks. Every operation either commits fully
// or leaves the graph untouched.
package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/modelgraph/internal/logging"
	"github.com/aretw0/modelgraph/pkg/catalog"
	"github.com/aretw0/modelgraph/pkg/compiler"
	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/aretw0/modelgraph/pkg/graph"
	"github.com/aretw0/modelgraph/pkg/ports"
)

// Editor is the operation surface over one graph.
type Editor struct {
	store   *graph.Store
	catalog ports.Catalog
	hooks   domain.LifecycleHooks
	logger  *slog.Logger

	mu        sync.Mutex // serializes operations touching the chain tail
	chainTail string
}

// Option configures an Editor.
type Option func(*Editor)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Editor) {
		e.hooks = hooks
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithChainTail restores the auto-chain pointer of a persisted session.
// Ignored when the node is not in the store.
func WithChainTail(nodeID string) Option {
	return func(e *Editor) {
		e.chainTail = nodeID
	}
}

// New creates an editor over store, resolving templates through cat.
func New(store *graph.Store, cat ports.Catalog, opts ...Option) *Editor {
	e := &Editor{
		store:   store,
		catalog: cat,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.chainTail != "" {
		if _, ok := store.Node(e.chainTail); !ok {
			e.chainTail = ""
		}
	}
	return e
}

// Store exposes the underlying graph store for read access.
func (e *Editor) Store() *graph.Store {
	return e.store
}

// ChainTail returns the node the next chained drop connects from, or "".
func (e *Editor) ChainTail() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chainTail
}

// ResetChain clears the auto-chain pointer.
func (e *Editor) ResetChain() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.chainTail = ""
}

// NewGraph discards every node and edge and clears the chain.
// ID counters keep running so stale references can never match a new node.
func (e *Editor) NewGraph() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Clear()
	e.chainTail = ""
	e.logger.Info("Graph reset")
}

// AddNodeFromTemplate instantiates t at pos.
// Fails with domain.ErrCatalogUnavailable, without mutating, when the catalog cannot be listed.
func (e *Editor) AddNodeFromTemplate(ctx context.Context, t domain.NodeTemplate, pos domain.Position) (domain.Node, error) {
	if _, err := e.catalog.List(ctx); err != nil {
		return domain.Node{}, err
	}

	n := e.store.CreateNode(t, pos)
	e.nodeCreated(ctx, n)
	return n, nil
}

// AddNodeAndChainFromPrevious instantiates t at pos and, when a previous chained node
// exists, connects it to the new node. The new node becomes the chain tail.
func (e *Editor) AddNodeAndChainFromPrevious(ctx context.Context, t domain.NodeTemplate, pos domain.Position) (domain.Node, error) {
	if _, err := e.catalog.List(ctx); err != nil {
		return domain.Node{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.chainTail == "" {
		n := e.store.CreateNode(t, pos)
		e.chainTail = n.ID
		e.nodeCreated(ctx, n)
		return n, nil
	}

	n, edge, err := e.store.CreateNodeAfter(t, pos, e.chainTail)
	if err != nil {
		return domain.Node{}, err
	}
	e.chainTail = n.ID
	e.nodeCreated(ctx, n)
	e.edgeCreated(ctx, edge, true)
	return n, nil
}

// AddCatalogNode resolves the template at index and adds it, chained or not.
func (e *Editor) AddCatalogNode(ctx context.Context, index int, pos domain.Position, chain bool) (domain.Node, error) {
	t, err := catalog.Get(ctx, e.catalog, index)
	if err != nil {
		return domain.Node{}, err
	}
	if chain {
		return e.AddNodeAndChainFromPrevious(ctx, t, pos)
	}
	return e.AddNodeFromTemplate(ctx, t, pos)
}

// Connect adds an edge between two existing nodes.
func (e *Editor) Connect(ctx context.Context, source, target string) (domain.Edge, error) {
	edge, err := e.store.Connect(source, target)
	if err != nil {
		return domain.Edge{}, err
	}
	e.edgeCreated(ctx, edge, false)
	return edge, nil
}

// RemoveNode deletes a node and its incident edges.
// Removing the chain tail clears the chain.
func (e *Editor) RemoveNode(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, _ := e.store.Node(id)
	removed, err := e.store.RemoveNode(id)
	if err != nil {
		return err
	}
	if e.chainTail == id {
		e.chainTail = ""
	}

	e.logger.Debug("Node removed", "node_id", id, "cascaded_edges", len(removed))
	if e.hooks.OnNodeRemoved != nil {
		e.hooks.OnNodeRemoved(ctx, &domain.NodeEvent{
			EventBase:     domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeRemoved},
			NodeID:        id,
			Kind:          n.Kind,
			CascadedEdges: len(removed),
		})
	}
	for _, edge := range removed {
		e.edgeRemoved(ctx, edge)
	}
	return nil
}

// RemoveEdge deletes a single edge.
func (e *Editor) RemoveEdge(ctx context.Context, id string) error {
	edge, err := e.store.RemoveEdge(id)
	if err != nil {
		return err
	}
	e.edgeRemoved(ctx, edge)
	return nil
}

// MoveNode updates the display position of a node.
func (e *Editor) MoveNode(ctx context.Context, id string, pos domain.Position) (domain.Node, error) {
	return e.store.MoveNode(id, pos)
}

// SetParam sets (or with a nil value, deletes) a node parameter.
func (e *Editor) SetParam(ctx context.Context, id, key string, value any) (domain.Node, error) {
	return e.store.SetParam(id, key, value)
}

// Snapshot returns a read-only copy of the graph.
func (e *Editor) Snapshot() domain.Graph {
	return e.store.Snapshot()
}

// Compile snapshots the graph and compiles it with meta.
func (e *Editor) Compile(ctx context.Context, meta domain.Metadata) (domain.TrainingRequest, error) {
	req := compiler.Compile(e.store.Snapshot(), meta)
	fp, err := compiler.Fingerprint(req)
	if err != nil {
		// Params such as NaN have no JSON form; the graph itself still compiles.
		e.logger.Warn("Graph has no fingerprint", "err", err)
	}

	e.logger.Debug("Graph compiled", "nodes", len(req.Graph.Nodes), "edges", len(req.Graph.Edges), "fingerprint", fp)
	if e.hooks.OnCompiled != nil {
		e.hooks.OnCompiled(ctx, &domain.CompileEvent{
			EventBase:   domain.EventBase{Timestamp: time.Now(), Type: domain.EventCompiled},
			Nodes:       len(req.Graph.Nodes),
			Edges:       len(req.Graph.Edges),
			Fingerprint: fp,
		})
	}
	return req, nil
}

func (e *Editor) nodeCreated(ctx context.Context, n domain.Node) {
	e.logger.Debug("Node created", "node_id", n.ID, "kind", n.Kind.Name, "origin", n.Kind.Origin)
	if e.hooks.OnNodeCreated != nil {
		e.hooks.OnNodeCreated(ctx, &domain.NodeEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeCreated},
			NodeID:    n.ID,
			Kind:      n.Kind,
		})
	}
}

func (e *Editor) edgeCreated(ctx context.Context, edge domain.Edge, auto bool) {
	e.logger.Debug("Edge created", "edge_id", edge.ID, "source", edge.Source, "target", edge.Target, "auto", auto)
	if e.hooks.OnEdgeCreated != nil {
		e.hooks.OnEdgeCreated(ctx, &domain.EdgeEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventEdgeCreated},
			Edge:      edge,
			Auto:      auto,
		})
	}
}

func (e *Editor) edgeRemoved(ctx context.Context, edge domain.Edge) {
	if e.hooks.OnEdgeRemoved != nil {
		e.hooks.OnEdgeRemoved(ctx, &domain.EdgeEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventEdgeRemoved},
			Edge:      edge,
		})
	}
}

package editor

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/aretw0/modelgraph/pkg/catalog"
	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/aretw0/modelgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEditor(t *testing.T, opts ...Option) *Editor {
	t.Helper()
	return New(graph.New(), catalog.Builtin(), opts...)
}

func tmpl(label string) domain.NodeTemplate {
	return domain.NodeTemplate{Label: label}
}

func TestEditor_ChainThreeDrops(t *testing.T) {
	ctx := context.Background()
	e := newEditor(t)

	a, err := e.AddNodeAndChainFromPrevious(ctx, tmpl("A"), domain.Position{})
	require.NoError(t, err)
	b, err := e.AddNodeAndChainFromPrevious(ctx, tmpl("B"), domain.Position{})
	require.NoError(t, err)
	c, err := e.AddNodeAndChainFromPrevious(ctx, tmpl("C"), domain.Position{})
	require.NoError(t, err)

	g := e.Snapshot()
	require.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 2)
	assert.Equal(t, a.ID, g.Edges[0].Source)
	assert.Equal(t, b.ID, g.Edges[0].Target)
	assert.Equal(t, b.ID, g.Edges[1].Source)
	assert.Equal(t, c.ID, g.Edges[1].Target)
	assert.Equal(t, c.ID, e.ChainTail())
}

func TestEditor_ChainSingleDrop(t *testing.T) {
	e := newEditor(t)

	n, err := e.AddNodeAndChainFromPrevious(context.Background(), tmpl("A"), domain.Position{})
	require.NoError(t, err)

	g := e.Snapshot()
	assert.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges)
	assert.Equal(t, n.ID, e.ChainTail())
}

func TestEditor_PlainAddDoesNotTouchChain(t *testing.T) {
	ctx := context.Background()
	e := newEditor(t)

	a, err := e.AddNodeAndChainFromPrevious(ctx, tmpl("A"), domain.Position{})
	require.NoError(t, err)
	_, err = e.AddNodeFromTemplate(ctx, tmpl("free"), domain.Position{})
	require.NoError(t, err)
	assert.Equal(t, a.ID, e.ChainTail())

	c, err := e.AddNodeAndChainFromPrevious(ctx, tmpl("C"), domain.Position{})
	require.NoError(t, err)
	g := e.Snapshot()
	require.Len(t, g.Edges, 1)
	assert.Equal(t, a.ID, g.Edges[0].Source)
	assert.Equal(t, c.ID, g.Edges[0].Target)
}

func TestEditor_ResetChain(t *testing.T) {
	ctx := context.Background()
	e := newEditor(t)

	_, _ = e.AddNodeAndChainFromPrevious(ctx, tmpl("A"), domain.Position{})
	e.ResetChain()
	assert.Empty(t, e.ChainTail())

	_, _ = e.AddNodeAndChainFromPrevious(ctx, tmpl("B"), domain.Position{})
	assert.Empty(t, e.Snapshot().Edges)
}

func TestEditor_RemovingTailClearsChain(t *testing.T) {
	ctx := context.Background()
	e := newEditor(t)

	_, _ = e.AddNodeAndChainFromPrevious(ctx, tmpl("A"), domain.Position{})
	b, _ := e.AddNodeAndChainFromPrevious(ctx, tmpl("B"), domain.Position{})

	require.NoError(t, e.RemoveNode(ctx, b.ID))
	assert.Empty(t, e.ChainTail())
	assert.Empty(t, e.Snapshot().Edges)

	_, err := e.AddNodeAndChainFromPrevious(ctx, tmpl("C"), domain.Position{})
	require.NoError(t, err)
	assert.Empty(t, e.Snapshot().Edges, "a new chain starts after the tail is removed")
}

func TestEditor_CatalogUnavailable(t *testing.T) {
	ctx := context.Background()
	failing := catalog.NewCached(catalog.Func(func(context.Context) ([]domain.NodeTemplate, error) {
		return nil, errors.New("connection refused")
	}))
	e := New(graph.New(), failing)

	_, err := e.AddNodeFromTemplate(ctx, tmpl("A"), domain.Position{})
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
	_, err = e.AddNodeAndChainFromPrevious(ctx, tmpl("B"), domain.Position{})
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
	_, err = e.AddCatalogNode(ctx, 0, domain.Position{}, true)
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)

	g := e.Snapshot()
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
	assert.Empty(t, e.ChainTail())
}

func TestEditor_AddCatalogNode(t *testing.T) {
	ctx := context.Background()
	e := newEditor(t)

	n, err := e.AddCatalogNode(ctx, 1, domain.Position{X: 5}, false)
	require.NoError(t, err)
	assert.Equal(t, domain.CatalogKind("dense"), n.Kind)
	assert.Equal(t, 1.0, n.Params["weight"])

	_, err = e.AddCatalogNode(ctx, 99, domain.Position{}, false)
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
	assert.Len(t, e.Snapshot().Nodes, 1)
}

func TestEditor_ConnectAndRemove(t *testing.T) {
	ctx := context.Background()
	e := newEditor(t)

	a, _ := e.AddNodeFromTemplate(ctx, tmpl("A"), domain.Position{})
	b, _ := e.AddNodeFromTemplate(ctx, tmpl("B"), domain.Position{})

	_, err := e.Connect(ctx, a.ID, "ghost")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	edge, err := e.Connect(ctx, a.ID, b.ID)
	require.NoError(t, err)

	require.NoError(t, e.RemoveEdge(ctx, edge.ID))
	assert.ErrorIs(t, e.RemoveEdge(ctx, edge.ID), domain.ErrEdgeNotFound)
	assert.ErrorIs(t, e.RemoveNode(ctx, "ghost"), domain.ErrNodeNotFound)
}

func TestEditor_NewGraph(t *testing.T) {
	ctx := context.Background()
	e := newEditor(t)

	_, _ = e.AddNodeAndChainFromPrevious(ctx, tmpl("A"), domain.Position{})
	_, _ = e.AddNodeAndChainFromPrevious(ctx, tmpl("B"), domain.Position{})
	e.NewGraph()

	g := e.Snapshot()
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
	assert.Empty(t, e.ChainTail())

	n, _ := e.AddNodeFromTemplate(ctx, tmpl("C"), domain.Position{})
	assert.Equal(t, "3", n.ID)
}

func TestEditor_WithChainTail(t *testing.T) {
	store, err := graph.FromSnapshot(graph.Seed())
	require.NoError(t, err)

	e := New(store, catalog.Builtin(), WithChainTail("3"))
	assert.Equal(t, "3", e.ChainTail())

	n, err := e.AddNodeAndChainFromPrevious(context.Background(), tmpl("after"), domain.Position{})
	require.NoError(t, err)
	g := e.Snapshot()
	last := g.Edges[len(g.Edges)-1]
	assert.Equal(t, "3", last.Source)
	assert.Equal(t, n.ID, last.Target)

	stale := New(store, catalog.Builtin(), WithChainTail("404"))
	assert.Empty(t, stale.ChainTail())
}

func TestEditor_MoveAndSetParam(t *testing.T) {
	ctx := context.Background()
	e := newEditor(t)
	a, _ := e.AddNodeFromTemplate(ctx, tmpl("A"), domain.Position{})

	n, err := e.MoveNode(ctx, a.ID, domain.Position{X: 1, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.Position{X: 1, Y: 2}, n.Position)

	n, err = e.SetParam(ctx, a.ID, "units", 8)
	require.NoError(t, err)
	assert.Equal(t, 8, n.Params["units"])
}

func TestEditor_CompileWithoutFingerprint(t *testing.T) {
	ctx := context.Background()
	var event *domain.CompileEvent
	e := newEditor(t, WithLifecycleHooks(domain.LifecycleHooks{
		OnCompiled: func(_ context.Context, ev *domain.CompileEvent) { event = ev },
	}))
	a, _ := e.AddNodeFromTemplate(ctx, tmpl("A"), domain.Position{})
	_, err := e.SetParam(ctx, a.ID, "rate", math.NaN())
	require.NoError(t, err)

	req, err := e.Compile(ctx, domain.Metadata{ModelID: "m"})
	require.NoError(t, err)
	require.Len(t, req.Graph.Nodes, 1)
	assert.True(t, math.IsNaN(req.Graph.Nodes[0].Params["rate"].(float64)))
	require.NotNil(t, event)
	assert.Empty(t, event.Fingerprint)
}

func TestEditor_Hooks(t *testing.T) {
	ctx := context.Background()

	var created, removed, edgesCreated, edgesRemoved, compiled int
	var autoEdges int
	var fingerprint string
	hooks := domain.LifecycleHooks{
		OnNodeCreated: func(_ context.Context, ev *domain.NodeEvent) {
			created++
			assert.Equal(t, domain.EventNodeCreated, ev.Type)
		},
		OnNodeRemoved: func(_ context.Context, ev *domain.NodeEvent) {
			removed++
			assert.Equal(t, 2, ev.CascadedEdges)
		},
		OnEdgeCreated: func(_ context.Context, ev *domain.EdgeEvent) {
			edgesCreated++
			if ev.Auto {
				autoEdges++
			}
		},
		OnEdgeRemoved: func(_ context.Context, ev *domain.EdgeEvent) { edgesRemoved++ },
		OnCompiled: func(_ context.Context, ev *domain.CompileEvent) {
			compiled++
			fingerprint = ev.Fingerprint
		},
	}
	e := newEditor(t, WithLifecycleHooks(hooks))

	a, _ := e.AddNodeAndChainFromPrevious(ctx, tmpl("A"), domain.Position{})
	b, _ := e.AddNodeAndChainFromPrevious(ctx, tmpl("B"), domain.Position{})
	_, _ = e.Connect(ctx, b.ID, a.ID)

	req, err := e.Compile(ctx, domain.Metadata{ModelID: "m", Dataset: "d"})
	require.NoError(t, err)
	assert.Equal(t, "m", req.ModelID)
	assert.Len(t, req.Graph.Edges, 2)

	require.NoError(t, e.RemoveNode(ctx, b.ID))

	assert.Equal(t, 2, created)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, edgesCreated)
	assert.Equal(t, 1, autoEdges)
	assert.Equal(t, 2, edgesRemoved)
	assert.Equal(t, 1, compiled)
	assert.Len(t, fingerprint, 12)
}

func TestEditor_FailedOperationsFireNoHooks(t *testing.T) {
	ctx := context.Background()
	fired := 0
	count := func(context.Context, *domain.EdgeEvent) { fired++ }
	e := New(graph.New(graph.WithPolicy(graph.EdgePolicy{})), catalog.Builtin(), WithLifecycleHooks(domain.LifecycleHooks{
		OnEdgeCreated: count,
		OnEdgeRemoved: count,
	}))

	a, _ := e.AddNodeFromTemplate(ctx, tmpl("A"), domain.Position{})
	_, err := e.Connect(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, domain.ErrSelfLoop)
	assert.Error(t, e.RemoveEdge(ctx, "e1-x-y"))
	assert.Zero(t, fired)
}

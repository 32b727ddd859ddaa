package graph

import (
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tmpl(label string) domain.NodeTemplate {
	return domain.NodeTemplate{Label: label}
}

func TestStore_CreateNode_IDsNeverReused(t *testing.T) {
	s := New()
	seen := make(map[string]bool)

	for i := 0; i < 20; i++ {
		n := s.CreateNode(tmpl(fmt.Sprintf("n%d", i)), domain.Position{})
		require.False(t, seen[n.ID], "id %s issued twice", n.ID)
		seen[n.ID] = true

		// Interleave removals: drop every other node right away.
		if i%2 == 0 {
			_, err := s.RemoveNode(n.ID)
			require.NoError(t, err)
		}
	}

	// The count-based scheme would hand out "11" again here.
	n := s.CreateNode(tmpl("late"), domain.Position{})
	assert.False(t, seen[n.ID])
	assert.Equal(t, "21", n.ID)
}

func TestStore_CreateNode_CopiesTemplate(t *testing.T) {
	s := New()
	params := map[string]any{"weight": 1.0}
	n := s.CreateNode(domain.NodeTemplate{
		Label:  "Dense",
		Kind:   "dense",
		Code:   "y = w*x + b",
		Params: params,
	}, domain.Position{X: 3, Y: 4})

	assert.Equal(t, "Dense", n.Label)
	assert.Equal(t, domain.CatalogKind("dense"), n.Kind)
	assert.Equal(t, "y = w*x + b", n.Code)
	assert.Equal(t, domain.Position{X: 3, Y: 4}, n.Position)

	// Template params must not alias node params.
	params["weight"] = 2.0
	got, ok := s.Node(n.ID)
	require.True(t, ok)
	assert.Equal(t, 1.0, got.Params["weight"])
}

func TestStore_CreateNode_LabelKindFallback(t *testing.T) {
	s := New()
	n := s.CreateNode(tmpl("🔵 LSTM Cell"), domain.Position{})
	assert.Equal(t, domain.KindLabel, n.Kind.Origin)
	assert.Equal(t, "___LSTM_Cell", n.Kind.Name)

	d := s.CreateNode(domain.NodeTemplate{Label: "x y", Kind: domain.PlaceholderKind}, domain.Position{})
	assert.Equal(t, domain.LabelKind("x y"), d.Kind)
}

func TestStore_Connect(t *testing.T) {
	s := New()
	a := s.CreateNode(tmpl("A"), domain.Position{})
	b := s.CreateNode(tmpl("B"), domain.Position{})

	t.Run("success", func(t *testing.T) {
		e, err := s.Connect(a.ID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, e.Source)
		assert.Equal(t, b.ID, e.Target)
		assert.NotEmpty(t, e.ID)
	})

	t.Run("missing endpoints", func(t *testing.T) {
		before := s.Snapshot()

		_, err := s.Connect("nope", b.ID)
		assert.ErrorIs(t, err, domain.ErrNodeNotFound)
		_, err = s.Connect(a.ID, "nope")
		assert.ErrorIs(t, err, domain.ErrNodeNotFound)

		assert.Equal(t, before, s.Snapshot(), "failed connect must not mutate")
	})

	t.Run("permissive by default", func(t *testing.T) {
		_, err := s.Connect(a.ID, a.ID)
		assert.NoError(t, err)
		e1, err := s.Connect(a.ID, b.ID)
		require.NoError(t, err)
		e2, err := s.Connect(a.ID, b.ID)
		require.NoError(t, err)
		assert.NotEqual(t, e1.ID, e2.ID)
	})
}

func TestStore_Connect_StrictPolicy(t *testing.T) {
	s := New(WithPolicy(EdgePolicy{}))
	a := s.CreateNode(tmpl("A"), domain.Position{})
	b := s.CreateNode(tmpl("B"), domain.Position{})

	_, err := s.Connect(a.ID, a.ID)
	assert.ErrorIs(t, err, domain.ErrSelfLoop)

	_, err = s.Connect(a.ID, b.ID)
	require.NoError(t, err)
	before := s.Snapshot()

	_, err = s.Connect(a.ID, b.ID)
	assert.ErrorIs(t, err, domain.ErrParallelEdge)
	assert.Equal(t, before, s.Snapshot())

	// Reverse direction is a different ordered pair.
	_, err = s.Connect(b.ID, a.ID)
	assert.NoError(t, err)
}

func TestStore_RemoveNode_Cascades(t *testing.T) {
	s := New()
	a := s.CreateNode(tmpl("A"), domain.Position{})
	b := s.CreateNode(tmpl("B"), domain.Position{})
	c := s.CreateNode(tmpl("C"), domain.Position{})
	_, _ = s.Connect(a.ID, b.ID)
	_, _ = s.Connect(b.ID, c.ID)
	keep, _ := s.Connect(a.ID, c.ID)

	removed, err := s.RemoveNode(b.ID)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	g := s.Snapshot()
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, []domain.Edge{keep}, g.Edges)
	for _, e := range g.Edges {
		assert.NotEqual(t, b.ID, e.Source)
		assert.NotEqual(t, b.ID, e.Target)
	}

	_, err = s.RemoveNode(b.ID)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestStore_CreateNodeAfter(t *testing.T) {
	s := New()
	a := s.CreateNode(tmpl("A"), domain.Position{})

	n, e, err := s.CreateNodeAfter(tmpl("B"), domain.Position{}, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, e.Source)
	assert.Equal(t, n.ID, e.Target)

	before := s.Snapshot()
	_, _, err = s.CreateNodeAfter(tmpl("C"), domain.Position{}, "missing")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	assert.Equal(t, before, s.Snapshot(), "no orphan node and no counter bump")
}

func TestStore_RemoveEdge(t *testing.T) {
	s := New()
	a := s.CreateNode(tmpl("A"), domain.Position{})
	b := s.CreateNode(tmpl("B"), domain.Position{})
	e, _ := s.Connect(a.ID, b.ID)

	got, err := s.RemoveEdge(e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = s.RemoveEdge(e.ID)
	assert.ErrorIs(t, err, domain.ErrEdgeNotFound)

	// Edge IDs are not reused either.
	e2, _ := s.Connect(a.ID, b.ID)
	assert.NotEqual(t, e.ID, e2.ID)
}

func TestStore_MoveAndSetParam(t *testing.T) {
	s := New()
	a := s.CreateNode(tmpl("A"), domain.Position{})

	n, err := s.MoveNode(a.ID, domain.Position{X: 10, Y: -3})
	require.NoError(t, err)
	assert.Equal(t, domain.Position{X: 10, Y: -3}, n.Position)

	n, err = s.SetParam(a.ID, "units", 32)
	require.NoError(t, err)
	assert.Equal(t, 32, n.Params["units"])

	n, err = s.SetParam(a.ID, "units", nil)
	require.NoError(t, err)
	assert.NotContains(t, n.Params, "units")

	_, err = s.MoveNode("x", domain.Position{})
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	_, err = s.SetParam("x", "k", 1)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := New()
	a := s.CreateNode(domain.NodeTemplate{Label: "A", Params: map[string]any{"k": 1}}, domain.Position{})

	g := s.Snapshot()
	g.Nodes[0].Params["k"] = 99
	g.Nodes[0].Label = "mutated"

	n, _ := s.Node(a.ID)
	assert.Equal(t, 1, n.Params["k"])
	assert.Equal(t, "A", n.Label)
}

func TestStore_Restore(t *testing.T) {
	s, err := FromSnapshot(Seed())
	require.NoError(t, err)

	n := s.CreateNode(tmpl("next"), domain.Position{})
	assert.Equal(t, "4", n.ID)

	e, err := s.Connect("3", n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EdgeID(3, "3", "4"), e.ID)

	t.Run("counters raised above ids", func(t *testing.T) {
		s, err := FromSnapshot(domain.Graph{
			Nodes: []domain.Node{{ID: "7"}, {ID: "in"}},
			Edges: []domain.Edge{{ID: "e9-7-in", Source: "7", Target: "in"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "8", s.CreateNode(tmpl("x"), domain.Position{}).ID)
		e, err := s.Connect("7", "in")
		require.NoError(t, err)
		assert.Equal(t, domain.EdgeID(10, "7", "in"), e.ID)
	})

	t.Run("rejects dangling edge", func(t *testing.T) {
		_, err := FromSnapshot(domain.Graph{
			Nodes: []domain.Node{{ID: "1"}},
			Edges: []domain.Edge{{ID: "e1", Source: "1", Target: "2"}},
		})
		assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	})

	t.Run("rejects duplicate node", func(t *testing.T) {
		_, err := FromSnapshot(domain.Graph{Nodes: []domain.Node{{ID: "1"}, {ID: "1"}}})
		assert.Error(t, err)
	})
}

func TestStore_ClearKeepsCounters(t *testing.T) {
	s := New()
	s.CreateNode(tmpl("A"), domain.Position{})
	s.Clear()

	nodes, edges := s.Len()
	assert.Zero(t, nodes)
	assert.Zero(t, edges)
	assert.Equal(t, "2", s.CreateNode(tmpl("B"), domain.Position{}).ID)
}

func TestStore_ConcurrentCreate(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	ids := make(chan string, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- s.CreateNode(tmpl("n"), domain.Position{}).ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, seen, 100)
}

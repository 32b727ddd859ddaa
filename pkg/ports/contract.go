package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	newState := func(id string) *domain.SessionState {
		state := domain.NewSessionState(id, domain.Metadata{ModelID: "m", Dataset: "d"})
		state.Graph = domain.Graph{
			Nodes: []domain.Node{
				{ID: "1", Kind: domain.CatalogKind("input"), Label: "In", Params: map[string]any{"value": 1.5}},
				{ID: "2", Kind: domain.LabelKind("Out"), Label: "Out"},
			},
			Edges:   []domain.Edge{{ID: domain.EdgeID(1, "1", "2"), Source: "1", Target: "2"}},
			NodeSeq: 2,
			EdgeSeq: 1,
		}
		state.ChainTail = "2"
		return state
	}

	t.Run("Save and Load", func(t *testing.T) {
		state := newState(sessionID)

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.SessionID, loaded.SessionID)
		assert.Equal(t, state.ChainTail, loaded.ChainTail)
		assert.Equal(t, state.Metadata, loaded.Metadata)
		assert.Equal(t, state.Graph.Edges, loaded.Graph.Edges)
		assert.Equal(t, state.Graph.NodeSeq, loaded.Graph.NodeSeq)
		require.Len(t, loaded.Graph.Nodes, 2)
		assert.Equal(t, state.Graph.Nodes[0].Kind, loaded.Graph.Nodes[0].Kind)
		assert.Equal(t, state.Graph.Nodes[1].Kind, loaded.Graph.Nodes[1].Kind)
		// JSON persistence turns numbers into float64, which is fine for params.
		assert.EqualValues(t, 1.5, loaded.Graph.Nodes[0].Params["value"])
	})

	t.Run("Load is isolated from caller mutation", func(t *testing.T) {
		state := newState(sessionID)
		require.NoError(t, store.Save(ctx, sessionID, state))
		state.Graph.Nodes[0].Label = "mutated"

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "In", loaded.Graph.Nodes[0].Label)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, newState(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, newState(id1))
		_ = store.Save(ctx, id2, newState(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

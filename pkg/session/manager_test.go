package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/modelgraph/pkg/adapters/memory"
	"github.com/aretw0/modelgraph/pkg/catalog"
	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/aretw0/modelgraph/pkg/editor"
	"github.com/aretw0/modelgraph/pkg/graph"
	"github.com/aretw0/modelgraph/pkg/ports"
	"github.com/aretw0/modelgraph/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	inner *memory.Store
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, state *domain.SessionState) error {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	return s.inner.Save(ctx, sessionID, state)
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	return s.inner.Load(ctx, sessionID)
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	return s.inner.Delete(ctx, sessionID)
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return s.inner.List(ctx)
}

func TestManager_CreateAndLoad(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore(), catalog.Builtin())

	state, err := mgr.Create(ctx, domain.Metadata{ModelID: "demo-model", Dataset: "demo-dataset"})
	require.NoError(t, err)
	assert.NotEmpty(t, state.SessionID)
	assert.Empty(t, state.Graph.Nodes)

	loaded, err := mgr.Load(ctx, state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, state.Metadata, loaded.Metadata)

	other, err := mgr.Create(ctx, domain.Metadata{})
	require.NoError(t, err)
	assert.NotEqual(t, state.SessionID, other.SessionID)
}

func TestManager_SeedGraph(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore(), catalog.Builtin(), session.WithSeedGraph(true))

	state, err := mgr.Create(ctx, domain.Metadata{ModelID: "demo-model", Dataset: "demo-dataset"})
	require.NoError(t, err)
	assert.Len(t, state.Graph.Nodes, 3)
	assert.Len(t, state.Graph.Edges, 2)

	req, err := mgr.Compile(ctx, state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "demo-model", req.ModelID)
	assert.Equal(t, "input", req.Graph.Nodes[0].Type)
	assert.Equal(t, "___LSTM_Cell", req.Graph.Nodes[1].Type)
	assert.Equal(t, []string{"1"}, req.Graph.Nodes[1].Inputs)
}

func TestManager_UpdatePersistsChain(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore(), catalog.Builtin())
	state, err := mgr.Create(ctx, domain.Metadata{})
	require.NoError(t, err)
	id := state.SessionID

	// Each drop is its own request, as in the HTTP API.
	for i := 0; i < 3; i++ {
		_, err := mgr.Update(ctx, id, func(ctx context.Context, ed *editor.Editor) error {
			_, err := ed.AddCatalogNode(ctx, 0, domain.Position{}, true)
			return err
		})
		require.NoError(t, err)
	}

	loaded, err := mgr.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, loaded.Graph.Nodes, 3)
	assert.Len(t, loaded.Graph.Edges, 2)
	assert.Equal(t, "3", loaded.ChainTail)
	assert.False(t, loaded.UpdatedAt.Before(loaded.CreatedAt))
}

func TestManager_UpdateFailureLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore(), catalog.Builtin(), session.WithSeedGraph(true))
	state, err := mgr.Create(ctx, domain.Metadata{})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = mgr.Update(ctx, state.SessionID, func(ctx context.Context, ed *editor.Editor) error {
		_, _ = ed.AddNodeFromTemplate(ctx, domain.NodeTemplate{Label: "half"}, domain.Position{})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	loaded, err := mgr.Load(ctx, state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, state.Graph, loaded.Graph)
}

type failingSaveStore struct {
	*memory.Store
	fail bool
}

func (s *failingSaveStore) Save(ctx context.Context, sessionID string, state *domain.SessionState) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Store.Save(ctx, sessionID, state)
}

func TestManager_HooksFireAfterSave(t *testing.T) {
	ctx := context.Background()
	var created, edges int
	hooks := domain.LifecycleHooks{
		OnNodeCreated: func(context.Context, *domain.NodeEvent) { created++ },
		OnEdgeCreated: func(context.Context, *domain.EdgeEvent) { edges++ },
	}
	store := &failingSaveStore{Store: memory.NewStore()}
	mgr := session.NewManager(store, catalog.Builtin(), session.WithLifecycleHooks(hooks))
	state, err := mgr.Create(ctx, domain.Metadata{})
	require.NoError(t, err)

	addTwo := func(ctx context.Context, ed *editor.Editor) error {
		for _, label := range []string{"A", "B"} {
			if _, err := ed.AddNodeAndChainFromPrevious(ctx, domain.NodeTemplate{Label: label}, domain.Position{}); err != nil {
				return err
			}
		}
		return nil
	}

	store.fail = true
	_, err = mgr.Update(ctx, state.SessionID, addTwo)
	require.Error(t, err)
	assert.Zero(t, created, "nothing was persisted")
	assert.Zero(t, edges)

	_, err = mgr.Update(ctx, state.SessionID, func(ctx context.Context, ed *editor.Editor) error {
		if err := addTwo(ctx, ed); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Zero(t, created, "discarded edits report nothing")

	store.fail = false
	_, err = mgr.Update(ctx, state.SessionID, addTwo)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 1, edges)
}

func TestManager_NotFound(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore(), catalog.Builtin())

	_, err := mgr.Load(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = mgr.Update(ctx, "nope", func(context.Context, *editor.Editor) error { return nil })
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = mgr.Compile(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, mgr.Delete(ctx, "nope"), domain.ErrSessionNotFound)
}

func TestManager_Delete(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore(), catalog.Builtin())
	state, _ := mgr.Create(ctx, domain.Metadata{})

	require.NoError(t, mgr.Delete(ctx, state.SessionID))
	ids, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, state.SessionID)
}

func TestManager_SetMetadata(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore(), catalog.Builtin())
	state, _ := mgr.Create(ctx, domain.Metadata{ModelID: "a"})

	updated, err := mgr.SetMetadata(ctx, state.SessionID, domain.Metadata{ModelID: "b", Dataset: "d"})
	require.NoError(t, err)
	assert.Equal(t, "b", updated.Metadata.ModelID)

	req, err := mgr.Compile(ctx, state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "d", req.Dataset)
}

func TestManager_EdgePolicy(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore(), catalog.Builtin(),
		session.WithSeedGraph(true),
		session.WithEdgePolicy(graph.EdgePolicy{}),
	)
	state, _ := mgr.Create(ctx, domain.Metadata{})

	_, err := mgr.Update(ctx, state.SessionID, func(ctx context.Context, ed *editor.Editor) error {
		_, err := ed.Connect(ctx, "1", "2")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrParallelEdge)
}

func TestManager_ConcurrentUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(&SlowStore{inner: memory.NewStore()}, catalog.Builtin())
	state, err := mgr.Create(ctx, domain.Metadata{})
	require.NoError(t, err)

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Update(ctx, state.SessionID, func(ctx context.Context, ed *editor.Editor) error {
				_, err := ed.AddNodeAndChainFromPrevious(ctx, domain.NodeTemplate{Label: "n"}, domain.Position{})
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := mgr.Load(ctx, state.SessionID)
	require.NoError(t, err)
	assert.Len(t, loaded.Graph.Nodes, writers, "no lost updates")
	assert.Len(t, loaded.Graph.Edges, writers-1)
}

type countingLocker struct {
	mu       sync.Mutex
	locks    int
	unlocks  int
	lastTTL  time.Duration
	failWith error
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return nil, l.failWith
	}
	l.locks++
	l.lastTTL = ttl
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocks++
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	ctx := context.Background()
	locker := &countingLocker{}
	mgr := session.NewManager(memory.NewStore(), catalog.Builtin(),
		session.WithLocker(locker),
		session.WithLockTTL(5*time.Second),
	)

	state, err := mgr.Create(ctx, domain.Metadata{})
	require.NoError(t, err)
	_, err = mgr.Load(ctx, state.SessionID)
	require.NoError(t, err)

	assert.Equal(t, 2, locker.locks)
	assert.Equal(t, 2, locker.unlocks)
	assert.Equal(t, 5*time.Second, locker.lastTTL)

	locker.failWith = errors.New("redis down")
	_, err = mgr.Load(ctx, state.SessionID)
	assert.ErrorContains(t, err, "distributed lock")
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/modelgraph/internal/logging"
	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/aretw0/modelgraph/pkg/editor"
	"github.com/aretw0/modelgraph/pkg/graph"
	"github.com/aretw0/modelgraph/pkg/ports"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultLockTTL bounds how long a crashed replica can hold a session.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// Every read-modify-write of a session runs behind a per-session lock; unused locks
// are garbage collected through reference counting.
type Manager struct {
	store   ports.SessionStore
	catalog ports.Catalog

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	policy  graph.EdgePolicy
	seed    bool
	newID   func() (string, error)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager and the editors it creates.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLifecycleHooks registers hooks passed to every editor.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithEdgePolicy sets the edge policy of session graphs.
func WithEdgePolicy(p graph.EdgePolicy) Option {
	return func(m *Manager) {
		m.policy = p
	}
}

// WithSeedGraph makes new sessions start from the Input → LSTM Cell → Output graph.
func WithSeedGraph(enabled bool) Option {
	return func(m *Manager) {
		m.seed = enabled
	}
}

// WithIDGenerator replaces the session ID generator.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// NewManager creates a Session Manager over the given store and catalog.
func NewManager(store ports.SessionStore, cat ports.Catalog, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		catalog: cat,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		policy:  graph.PermissivePolicy(),
		newID:   func() (string, error) { return gonanoid.New() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Create starts a new session with a fresh ID.
func (m *Manager) Create(ctx context.Context, meta domain.Metadata) (*domain.SessionState, error) {
	id, err := m.newID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	state := domain.NewSessionState(id, meta)
	if m.seed {
		state.Graph = graph.Seed()
	}

	err = m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Save(ctx, id, state)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	m.logger.Info("Session created", "session_id", id, "model_id", meta.ModelID, "seeded", m.seed)
	return state, nil
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	var state *domain.SessionState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, sessionID)
		return err
	})
	return state, err
}

// Update loads the session, hands an editor over its graph to fn and persists the
// result. When fn fails nothing is saved, so the session stays exactly as it was.
// Node and edge hooks fire only once the result is saved.
func (m *Manager) Update(ctx context.Context, sessionID string, fn func(context.Context, *editor.Editor) error) (*domain.SessionState, error) {
	var state *domain.SessionState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		deferred := &deferredHooks{}
		loaded, ed, err := m.open(ctx, sessionID, deferred.wrap(m.hooks))
		if err != nil {
			return err
		}
		if err := fn(ctx, ed); err != nil {
			return err
		}

		loaded.Graph = ed.Snapshot()
		loaded.ChainTail = ed.ChainTail()
		loaded.UpdatedAt = time.Now().UTC()
		if err := m.store.Save(ctx, sessionID, loaded); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		deferred.flush()
		state = loaded
		return nil
	})
	return state, err
}

// View hands a throwaway editor over the session graph to fn. Changes are discarded.
func (m *Manager) View(ctx context.Context, sessionID string, fn func(context.Context, *domain.SessionState, *editor.Editor) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, ed, err := m.open(ctx, sessionID, m.hooks)
		if err != nil {
			return err
		}
		return fn(ctx, state, ed)
	})
}

// Compile compiles the session graph with the session metadata.
func (m *Manager) Compile(ctx context.Context, sessionID string) (domain.TrainingRequest, error) {
	var req domain.TrainingRequest
	err := m.View(ctx, sessionID, func(ctx context.Context, state *domain.SessionState, ed *editor.Editor) error {
		var err error
		req, err = ed.Compile(ctx, state.Metadata)
		return err
	})
	return req, err
}

// SetMetadata replaces the model ID and dataset of a session.
func (m *Manager) SetMetadata(ctx context.Context, sessionID string, meta domain.Metadata) (*domain.SessionState, error) {
	var state *domain.SessionState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		loaded, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		loaded.Metadata = meta
		loaded.UpdatedAt = time.Now().UTC()
		if err := m.store.Save(ctx, sessionID, loaded); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		state = loaded
		return nil
	})
	return state, err
}

func (m *Manager) open(ctx context.Context, sessionID string, hooks domain.LifecycleHooks) (*domain.SessionState, *editor.Editor, error) {
	state, err := m.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	store, err := graph.FromSnapshot(state.Graph, graph.WithPolicy(m.policy))
	if err != nil {
		return nil, nil, fmt.Errorf("session %q holds an inconsistent graph: %w", sessionID, err)
	}
	ed := editor.New(store, m.catalog,
		editor.WithChainTail(state.ChainTail),
		editor.WithLifecycleHooks(hooks),
		editor.WithLogger(m.logger.With("session_id", sessionID)),
	)
	return state, ed, nil
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if _, err := m.store.Load(ctx, sessionID); err != nil {
			return err
		}
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

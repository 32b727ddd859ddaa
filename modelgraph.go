package modelgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/modelgraph/internal/logging"
	"github.com/aretw0/modelgraph/pkg/adapters/memory"
	"github.com/aretw0/modelgraph/pkg/catalog"
	"github.com/aretw0/modelgraph/pkg/compiler"
	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/aretw0/modelgraph/pkg/editor"
	"github.com/aretw0/modelgraph/pkg/graph"
	"github.com/aretw0/modelgraph/pkg/notes"
	"github.com/aretw0/modelgraph/pkg/observability"
	"github.com/aretw0/modelgraph/pkg/persistence/middleware"
	"github.com/aretw0/modelgraph/pkg/ports"
	"github.com/aretw0/modelgraph/pkg/session"
	"github.com/aretw0/modelgraph/pkg/training"
)

// ErrNoSubmitter is returned by Submit when no training service is configured.
var ErrNoSubmitter = errors.New("no training service configured")

// Studio is the high-level entry point of the library.
// It wires the catalog, the session manager and the external clients together.
type Studio struct {
	catalog   ports.Catalog
	store     ports.SessionStore
	storeMWs  []middleware.Middleware
	locker    ports.DistributedLocker
	sessions  *session.Manager
	submitter ports.Submitter
	notes     *notes.Client
	metrics   *observability.Metrics
	hooks     domain.LifecycleHooks
	logger    *slog.Logger

	policy  graph.EdgePolicy
	seed    bool
	lockTTL time.Duration

	trainingURL  string
	trainingOpts []training.Option
}

// Option defines a functional option for configuring the Studio.
type Option func(*Studio)

// WithCatalog sets the template source. It is wrapped in a cache unless it already is one.
func WithCatalog(c ports.Catalog) Option {
	return func(s *Studio) {
		s.catalog = c
	}
}

// WithSessionStore sets the session store. Defaults to an in-memory store.
func WithSessionStore(store ports.SessionStore) Option {
	return func(s *Studio) {
		s.store = store
	}
}

// WithStoreMiddleware wraps the session store, first middleware outermost.
func WithStoreMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Studio) {
		s.storeMWs = append(s.storeMWs, mws...)
	}
}

// WithLocker enables distributed locking of sessions.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(s *Studio) {
		s.locker = l
		s.lockTTL = ttl
	}
}

// WithSubmitter injects a custom training submitter.
func WithSubmitter(sub ports.Submitter) Option {
	return func(s *Studio) {
		s.submitter = sub
	}
}

// WithTrainingURL builds the default HTTP training client for baseURL.
func WithTrainingURL(baseURL string, opts ...training.Option) Option {
	return func(s *Studio) {
		s.trainingURL = baseURL
		s.trainingOpts = opts
	}
}

// WithNotes attaches a summarization client.
func WithNotes(c *notes.Client) Option {
	return func(s *Studio) {
		s.notes = c
	}
}

// WithMetrics feeds m from every editor and submission.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Studio) {
		s.metrics = m
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Studio) {
		s.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Studio) {
		s.logger = logger
	}
}

// WithEdgePolicy sets the edge policy of session graphs.
func WithEdgePolicy(p graph.EdgePolicy) Option {
	return func(s *Studio) {
		s.policy = p
	}
}

// WithSeedGraph makes new sessions start from the seed graph.
func WithSeedGraph(enabled bool) Option {
	return func(s *Studio) {
		s.seed = enabled
	}
}

// New initializes a Studio. Without options it serves the builtin catalog from memory
// and has no training service.
func New(opts ...Option) (*Studio, error) {
	s := &Studio{
		policy: graph.PermissivePolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.catalog == nil {
		s.catalog = catalog.Builtin()
	}
	if _, cached := s.catalog.(*catalog.Cached); !cached {
		if _, static := s.catalog.(catalog.Static); !static {
			s.catalog = catalog.NewCached(s.catalog, catalog.WithLogger(s.logger))
		}
	}
	if s.store == nil {
		s.store = memory.NewStore()
	}
	s.store = middleware.Chain(s.store, s.storeMWs...)

	hooks := s.hooks
	if s.metrics != nil {
		hooks = hooks.Merge(s.metrics.Hooks())
	}
	s.hooks = hooks

	if s.submitter == nil && s.trainingURL != "" {
		topts := append([]training.Option{
			training.WithLogger(s.logger),
			training.WithLifecycleHooks(hooks),
		}, s.trainingOpts...)
		s.submitter = training.New(s.trainingURL, topts...)
	}

	mopts := []session.Option{
		session.WithLogger(s.logger),
		session.WithLifecycleHooks(hooks),
		session.WithEdgePolicy(s.policy),
		session.WithSeedGraph(s.seed),
	}
	if s.locker != nil {
		mopts = append(mopts, session.WithLocker(s.locker))
		if s.lockTTL > 0 {
			mopts = append(mopts, session.WithLockTTL(s.lockTTL))
		}
	}
	s.sessions = session.NewManager(s.store, s.catalog, mopts...)

	s.logger.Debug("Studio initialized", "seed", s.seed, "training", s.submitter != nil, "distributed_lock", s.locker != nil)
	return s, nil
}

// Catalog returns the (cached) template catalog.
func (s *Studio) Catalog() ports.Catalog {
	return s.catalog
}

// Sessions returns the session manager.
func (s *Studio) Sessions() *session.Manager {
	return s.sessions
}

// Submitter returns the training submitter, or nil.
func (s *Studio) Submitter() ports.Submitter {
	return s.submitter
}

// Notes returns the summarization client, or nil.
func (s *Studio) Notes() *notes.Client {
	return s.notes
}

// Metrics returns the metrics collector, or nil.
func (s *Studio) Metrics() *observability.Metrics {
	return s.metrics
}

// Logger returns the configured logger.
func (s *Studio) Logger() *slog.Logger {
	return s.logger
}

// NewEditor returns an editor over a fresh graph that is not tied to any session.
// Useful for scripting and one-off compilation.
func (s *Studio) NewEditor(g ...domain.Graph) (*editor.Editor, error) {
	store := graph.New(graph.WithPolicy(s.policy))
	if len(g) > 0 {
		if err := store.Restore(g[0]); err != nil {
			return nil, err
		}
	}
	return editor.New(store, s.catalog,
		editor.WithLogger(s.logger),
		editor.WithLifecycleHooks(s.hooks),
	), nil
}

// Compile compiles g with meta and returns the payload and its fingerprint.
func (s *Studio) Compile(g domain.Graph, meta domain.Metadata) (domain.TrainingRequest, string, error) {
	req := compiler.Compile(g, meta)
	fp, err := compiler.Fingerprint(req)
	if err != nil {
		return domain.TrainingRequest{}, "", err
	}
	return req, fp, nil
}

// Submit compiles a session and sends it to the training service.
func (s *Studio) Submit(ctx context.Context, sessionID string) ([]byte, error) {
	if s.submitter == nil {
		return nil, ErrNoSubmitter
	}
	req, err := s.sessions.Compile(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	resp, err := s.submitter.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", sessionID, err)
	}
	return resp, nil
}

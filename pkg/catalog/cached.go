package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/aretw0/modelgraph/internal/logging"
	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/aretw0/modelgraph/pkg/ports"
	"golang.org/x/sync/singleflight"
)

// Cached fetches a source once and serves the result for the rest of its lifetime.
// A failed fetch is remembered too, so callers consistently see ErrCatalogUnavailable
// until Reset.
type Cached struct {
	source ports.Catalog
	logger *slog.Logger
	group  singleflight.Group

	mu        sync.RWMutex
	loaded    bool
	gen       uint64
	templates []domain.NodeTemplate
	err       error
}

// CachedOption configures a Cached catalog.
type CachedOption func(*Cached)

// WithLogger sets the logger used to report fetch outcomes.
func WithLogger(logger *slog.Logger) CachedOption {
	return func(c *Cached) {
		c.logger = logger
	}
}

// NewCached wraps source.
func NewCached(source ports.Catalog, opts ...CachedOption) *Cached {
	c := &Cached{
		source: source,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns the cached templates, fetching them on first use.
func (c *Cached) List(ctx context.Context) ([]domain.NodeTemplate, error) {
	c.mu.RLock()
	if c.loaded {
		templates, err := c.templates, c.err
		c.mu.RUnlock()
		return cloneTemplates(templates), err
	}
	gen := c.gen
	c.mu.RUnlock()

	// Fetches started before a Reset are not shared with callers after it.
	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		return c.fetch(ctx, gen)
	})
	if err != nil {
		return nil, err
	}
	return cloneTemplates(v.([]domain.NodeTemplate)), nil
}

func (c *Cached) fetch(ctx context.Context, gen uint64) ([]domain.NodeTemplate, error) {
	c.mu.RLock()
	if c.loaded && c.gen == gen {
		defer c.mu.RUnlock()
		return c.templates, c.err
	}
	c.mu.RUnlock()

	templates, err := c.source.List(ctx)
	if err != nil {
		// A canceled caller says nothing about the catalog; don't poison the cache.
		if ctx.Err() != nil {
			return nil, err
		}
		if !errors.Is(err, domain.ErrCatalogUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
		}
		c.logger.Error("Catalog fetch failed", "err", err)
	} else {
		c.logger.Info("Catalog loaded", "templates", len(templates))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// Reset while fetching: the result may predate the refresh.
		return templates, err
	}
	c.loaded = true
	c.templates = templates
	c.err = err
	return templates, err
}

// Reset forgets the cached result; the next List fetches again.
func (c *Cached) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.gen++
	c.templates = nil
	c.err = nil
}

func cloneTemplates(in []domain.NodeTemplate) []domain.NodeTemplate {
	if in == nil {
		return nil
	}
	out := make([]domain.NodeTemplate, len(in))
	for i, t := range in {
		t.Params = domain.CloneParams(t.Params)
		out[i] = t
	}
	return out
}

package session

import (
	"context"

	"github.com/aretw0/modelgraph/pkg/domain"
)

// deferredHooks queues mutation events until the session they describe has been saved.
type deferredHooks struct {
	pending []func()
}

// wrap queues the mutation hooks of h. Compile and submit events pass straight through.
func (d *deferredHooks) wrap(h domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeCreated: deferHook(d, h.OnNodeCreated),
		OnNodeRemoved: deferHook(d, h.OnNodeRemoved),
		OnEdgeCreated: deferHook(d, h.OnEdgeCreated),
		OnEdgeRemoved: deferHook(d, h.OnEdgeRemoved),
		OnCompiled:    h.OnCompiled,
		OnSubmitted:   h.OnSubmitted,
	}
}

func (d *deferredHooks) flush() {
	for _, fire := range d.pending {
		fire()
	}
	d.pending = nil
}

func deferHook[E any](d *deferredHooks, fn func(context.Context, *E)) func(context.Context, *E) {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, e *E) {
		d.pending = append(d.pending, func() { fn(ctx, e) })
	}
}

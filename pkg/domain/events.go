package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeCreated EventType = "node_created"
	EventNodeRemoved EventType = "node_removed"
	EventEdgeCreated EventType = "edge_created"
	EventEdgeRemoved EventType = "edge_removed"
	EventCompiled    EventType = "compiled"
	EventSubmitted   EventType = "submitted"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// NodeEvent reports a node creation or removal.
type NodeEvent struct {
	EventBase
	NodeID string `json:"node_id"`
	Kind   Kind   `json:"kind"`
	// CascadedEdges counts the edges dropped together with a removed node.
	CascadedEdges int `json:"cascaded_edges,omitempty"`
}

// EdgeEvent reports an edge creation or removal.
type EdgeEvent struct {
	EventBase
	Edge Edge `json:"edge"`
	// Auto is true for edges created by auto-chaining.
	Auto bool `json:"auto,omitempty"`
}

// CompileEvent reports a compilation.
type CompileEvent struct {
	EventBase
	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
	Fingerprint string `json:"fingerprint"`
}

// SubmitEvent reports the outcome of a training submission.
type SubmitEvent struct {
	EventBase
	ModelID  string        `json:"model_id"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for editor observability.
// Nil hooks are skipped.
type LifecycleHooks struct {
	OnNodeCreated func(context.Context, *NodeEvent)
	OnNodeRemoved func(context.Context, *NodeEvent)
	OnEdgeCreated func(context.Context, *EdgeEvent)
	OnEdgeRemoved func(context.Context, *EdgeEvent)
	OnCompiled    func(context.Context, *CompileEvent)
	OnSubmitted   func(context.Context, *SubmitEvent)
}

// Merge returns hooks calling h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeCreated: chain(h.OnNodeCreated, other.OnNodeCreated),
		OnNodeRemoved: chain(h.OnNodeRemoved, other.OnNodeRemoved),
		OnEdgeCreated: chain(h.OnEdgeCreated, other.OnEdgeCreated),
		OnEdgeRemoved: chain(h.OnEdgeRemoved, other.OnEdgeRemoved),
		OnCompiled:    chain(h.OnCompiled, other.OnCompiled),
		OnSubmitted:   chain(h.OnSubmitted, other.OnSubmitted),
	}
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}

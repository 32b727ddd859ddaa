package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/modelgraph/pkg/domain"
)

// LoggingHooks writes one structured record per lifecycle event.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeCreated: func(ctx context.Context, e *domain.NodeEvent) {
			logger.InfoContext(ctx, "node_created", "node_id", e.NodeID, "kind", e.Kind.Name, "origin", e.Kind.Origin)
		},
		OnNodeRemoved: func(ctx context.Context, e *domain.NodeEvent) {
			logger.InfoContext(ctx, "node_removed", "node_id", e.NodeID, "cascaded_edges", e.CascadedEdges)
		},
		OnEdgeCreated: func(ctx context.Context, e *domain.EdgeEvent) {
			logger.InfoContext(ctx, "edge_created", "edge_id", e.Edge.ID, "source", e.Edge.Source, "target", e.Edge.Target, "auto", e.Auto)
		},
		OnEdgeRemoved: func(ctx context.Context, e *domain.EdgeEvent) {
			logger.InfoContext(ctx, "edge_removed", "edge_id", e.Edge.ID)
		},
		OnCompiled: func(ctx context.Context, e *domain.CompileEvent) {
			logger.InfoContext(ctx, "compiled", "nodes", e.Nodes, "edges", e.Edges, "fingerprint", e.Fingerprint)
		},
		OnSubmitted: func(ctx context.Context, e *domain.SubmitEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "submitted", "model_id", e.ModelID, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "submitted", "model_id", e.ModelID, "duration", e.Duration)
		},
	}
}

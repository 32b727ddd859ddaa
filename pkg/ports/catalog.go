package ports

import (
	"context"

	"github.com/aretw0/modelgraph/pkg/domain"
)

// Catalog lists the node templates available to the editor.
// Failures must match domain.ErrCatalogUnavailable.
type Catalog interface {
	List(ctx context.Context) ([]domain.NodeTemplate, error)
}

// Submitter delivers a compiled graph to the training service and returns
// the service response unmodified.
type Submitter interface {
	Submit(ctx context.Context, req domain.TrainingRequest) ([]byte, error)
}

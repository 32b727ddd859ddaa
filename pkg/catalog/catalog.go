package catalog

import (
	"context"
	"fmt"

	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/aretw0/modelgraph/pkg/ports"
)

// Static is a fixed, in-memory catalog.
type Static []domain.NodeTemplate

// List returns a copy of the templates.
func (s Static) List(ctx context.Context) ([]domain.NodeTemplate, error) {
	out := make([]domain.NodeTemplate, len(s))
	copy(out, s)
	return out, nil
}

// Func adapts a plain function to ports.Catalog.
type Func func(ctx context.Context) ([]domain.NodeTemplate, error)

// List calls f.
func (f Func) List(ctx context.Context) ([]domain.NodeTemplate, error) {
	return f(ctx)
}

// Get resolves a template by its position in the catalog.
func Get(ctx context.Context, c ports.Catalog, index int) (domain.NodeTemplate, error) {
	templates, err := c.List(ctx)
	if err != nil {
		return domain.NodeTemplate{}, err
	}
	if index < 0 || index >= len(templates) {
		return domain.NodeTemplate{}, fmt.Errorf("index %d of %d: %w", index, len(templates), domain.ErrTemplateNotFound)
	}
	return templates[index], nil
}

// Builtin lists the node types the reference simulator ships plugins for.
func Builtin() Static {
	return Static{
		{
			Label:       "🟢 Input Node",
			Kind:        "input",
			Code:        "return { value: 1.0 }",
			Category:    "developer",
			Description: "Provides a fixed numeric input",
			Params:      map[string]any{"value": 1.0},
		},
		{
			Label:       "🟣 Dense Layer",
			Kind:        "dense",
			Code:        "y = weight * sum(x) + bias",
			Category:    "layers",
			Description: "Weighted sum of all inputs plus bias",
			Params:      map[string]any{"weight": 1.0, "bias": 0.0},
		},
		{
			Label:       "🔵 LSTM Cell",
			Kind:        "lstm_cell",
			Code:        "h_t = tanh(c_t + x_t)",
			Category:    "recurrent",
			Description: "Simplified LSTM cell keeping h_t and c_t between timesteps",
		},
		{
			Label:    "🔴 Output Node",
			Kind:     "output",
			Code:     "final_output = h_t",
			Category: "developer",
		},
	}
}

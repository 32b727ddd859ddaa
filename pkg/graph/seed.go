package graph

import "github.com/aretw0/modelgraph/pkg/domain"

// Seed returns the starter graph shown on a fresh canvas:
// Input Node -> LSTM Cell -> Output Node.
func Seed() domain.Graph {
	return domain.Graph{
		Nodes: []domain.Node{
			{
				ID:       "1",
				Kind:     domain.CatalogKind("input"),
				Label:    "🟢 Input Node",
				Code:     "return { value: 1.0 }",
				Position: domain.Position{X: 250, Y: 5},
			},
			{
				ID:       "2",
				Kind:     domain.LabelKind("🔵 LSTM Cell"),
				Label:    "🔵 LSTM Cell",
				Code:     "h_t = tanh(c_t + x_t)",
				Position: domain.Position{X: 100, Y: 100},
			},
			{
				ID:       "3",
				Kind:     domain.CatalogKind("output"),
				Label:    "🔴 Output Node",
				Code:     "final_output = h_t",
				Position: domain.Position{X: 400, Y: 200},
			},
		},
		Edges: []domain.Edge{
			{ID: domain.EdgeID(1, "1", "2"), Source: "1", Target: "2"},
			{ID: domain.EdgeID(2, "2", "3"), Source: "2", Target: "3"},
		},
		NodeSeq: 3,
		EdgeSeq: 2,
	}
}

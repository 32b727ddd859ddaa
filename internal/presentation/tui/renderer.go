package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() (func(string) (string, error), error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}

// CompiledMarkdown describes a compiled graph as a markdown document.
func CompiledMarkdown(req domain.TrainingRequest, fingerprint string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", orDash(req.ModelID))
	fmt.Fprintf(&sb, "- **Dataset:** %s\n", orDash(req.Dataset))
	fmt.Fprintf(&sb, "- **Nodes:** %d\n", len(req.Graph.Nodes))
	fmt.Fprintf(&sb, "- **Edges:** %d\n", len(req.Graph.Edges))
	if fingerprint != "" {
		fmt.Fprintf(&sb, "- **Fingerprint:** `%s`\n", fingerprint)
	}

	if len(req.Graph.Nodes) > 0 {
		sb.WriteString("\n## Nodes\n\n")
		sb.WriteString("| ID | Type | Inputs | Outputs | Params |\n")
		sb.WriteString("|----|------|--------|---------|--------|\n")
		for _, n := range req.Graph.Nodes {
			typ := "`" + n.Type + "`"
			if n.KindOrigin == domain.KindLabel {
				typ += " *(from label)*"
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				n.ID, typ, list(n.Inputs), list(n.Outputs), params(n.Params))
		}
	}

	if len(req.Graph.Edges) > 0 {
		sb.WriteString("\n## Edges\n\n")
		for _, e := range req.Graph.Edges {
			fmt.Fprintf(&sb, "- %s → %s\n", e.From, e.To)
		}
	}
	return sb.String()
}

func list(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}

func params(p map[string]any) string {
	if len(p) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p[k]))
	}
	return strings.Join(parts, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

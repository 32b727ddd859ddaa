package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/modelgraph/pkg/domain"
)

// GraphOverlay contains editing state to visualize on the graph.
type GraphOverlay struct {
	ChainTail string
	Selected  []string
}

// GenerateMermaid produces a Mermaid flowchart of a graph snapshot.
// It applies semantic styling:
// - Source (no inputs): ((Circle))
// - Sink (no outputs): [[Subroutine]]
// - Default: [Rectangle]
// Nodes whose kind falls back to the label get the "fallback" class.
// It also applies overlay styles (chain tail, selection) if provided.
func GenerateMermaid(g domain.Graph, overlay *GraphOverlay) string {
	hasIn := make(map[string]bool, len(g.Nodes))
	hasOut := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		hasIn[e.Target] = true
		hasOut[e.Source] = true
	}

	var sb strings.Builder
	sb.WriteString("graph LR\n")

	var fallback []string
	for _, n := range g.Nodes {
		safeID := sanitizeMermaidID(n.ID)

		opener, closer := "[", "]"
		switch {
		case !hasIn[n.ID] && hasOut[n.ID]:
			opener, closer = "((", "))"
		case hasIn[n.ID] && !hasOut[n.ID]:
			opener, closer = "[[", "]]"
		}

		fmt.Fprintf(&sb, "    %s%s\"%s<br/><i>%s</i>\"%s\n", safeID, opener, escapeLabel(n.Label), escapeLabel(n.Kind.Name), closer)
		if !n.Kind.IsExplicit() {
			fallback = append(fallback, safeID)
		}
	}

	for _, e := range g.Edges {
		fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(e.Source), sanitizeMermaidID(e.Target))
	}

	if len(fallback) > 0 {
		sb.WriteString("\n    classDef fallback stroke-dasharray: 5 5;\n")
		for _, id := range fallback {
			fmt.Fprintf(&sb, "    class %s fallback;\n", id)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef selected fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef tail fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Selected {
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] && id != "" {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s selected;\n", safeID)
			}
		}
		if overlay.ChainTail != "" {
			fmt.Fprintf(&sb, "    class %s tail;\n", sanitizeMermaidID(overlay.ChainTail))
		}
	}

	return sb.String()
}

// sanitizeMermaidID prefixes IDs so purely numeric ones stay valid Mermaid identifiers.
func sanitizeMermaidID(id string) string {
	return "n_" + domain.SanitizeLabel(id)
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "#quot;")
}

package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/modelgraph/pkg/compiler"
	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/aretw0/modelgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompiledMarkdown(t *testing.T) {
	g := graph.Seed()
	g.Nodes[0].Params = map[string]any{"value": 1.0, "a": "x"}
	req := compiler.Compile(g, domain.Metadata{ModelID: "demo-model", Dataset: "demo-dataset"})

	md := CompiledMarkdown(req, "abc123def456")

	assert.Contains(t, md, "# demo-model")
	assert.Contains(t, md, "- **Dataset:** demo-dataset")
	assert.Contains(t, md, "`abc123def456`")
	assert.Contains(t, md, "| 1 | `input` | - | 2 | a=x value=1 |")
	assert.Contains(t, md, "| 2 | `___LSTM_Cell` *(from label)* | 1 | 3 | - |")
	assert.Contains(t, md, "- 2 → 3")
}

func TestCompiledMarkdown_Empty(t *testing.T) {
	md := CompiledMarkdown(domain.TrainingRequest{}, "")
	assert.Contains(t, md, "# -")
	assert.NotContains(t, md, "## Nodes")
	assert.NotContains(t, md, "Fingerprint")
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer()
	require.NoError(t, err)
	out, err := render("# Title\n\nbody")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|___/")
}

/*
Package modelgraph is a visual authoring backend for AI model graphs.

Users drop node templates from a catalog onto a canvas, wire them together and submit the
result to a training service. modelgraph keeps the graph consistent while it is edited,
compiles it into the payload the training service expects and delivers it.

# Concept

A graph is a list of typed nodes and directed edges. Every node is instantiated from a
NodeTemplate; its kind comes from the template or, when the template declares none, from its
sanitized label. Compilation derives each node's inputs and outputs from the edge list and is
deterministic: the same graph always yields byte-identical JSON.

Editing happens inside sessions. A session persists the graph, the auto-chain pointer and the
training metadata, so consecutive drops keep chaining even across HTTP requests or replicas.

# Usage

	studio, err := modelgraph.New(
		modelgraph.WithCatalog(catalog.Builtin()),
		modelgraph.WithTrainingURL("http://localhost:5000"),
		modelgraph.WithSeedGraph(true),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	s, _ := studio.Sessions().Create(ctx, domain.Metadata{ModelID: "lstm", Dataset: "sine"})
	studio.Sessions().Update(ctx, s.SessionID, func(ctx context.Context, ed *editor.Editor) error {
		_, err := ed.AddCatalogNode(ctx, 1, domain.Position{}, true)
		return err
	})
	resp, err := studio.Submit(ctx, s.SessionID)

# Adapters

The same sessions are reachable over HTTP (pkg/adapters/http), the Model Context Protocol
(pkg/adapters/mcp) and the modelgraph CLI. Sessions live in memory or in Redis.
*/
package modelgraph

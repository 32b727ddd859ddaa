/*
Package domain contains the core models of the modelgraph authoring system.

It defines the entities of an editing session (node templates, nodes, edges and the graph
snapshot), the compiled wire representation consumed by the training service, and the
sentinel errors shared by every layer. The package is free of I/O and persistence so it can
be imported by adapters without pulling their dependencies along.

# Key Entities

  - NodeTemplate: a catalog entry describing a reusable node.
  - Node / Edge: the authored graph, owned by a graph.Store.
  - Graph: an immutable snapshot, input of the compiler.
  - TrainingRequest: the compiled payload submitted to the training endpoint.
  - SessionState: the persisted unit of one editing session.
*/
package domain

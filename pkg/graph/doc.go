/*
Package graph owns the mutable node and edge set of one editing session.

A Store is the only mutator of its graph. It allocates node and edge IDs from monotonic
counters (never reusing an ID, even after removals), cascades node removal to incident edges
and applies the configured EdgePolicy. All operations are serialized behind a single mutex,
and a failed operation leaves both the graph and the counters untouched.
*/
package graph

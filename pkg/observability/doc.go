/*
Package observability turns editor lifecycle events into Prometheus metrics and
structured audit logs.

Both are plain domain.LifecycleHooks values, so they compose with Merge:

	m := observability.NewMetrics("modelgraph")
	hooks := m.Hooks().Merge(observability.LoggingHooks(logger))
*/
package observability

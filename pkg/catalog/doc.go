/*
Package catalog provides the node templates a user can drop on the canvas.

A catalog is read-only from the editor's perspective. Sources (Static, file, HTTP) are
wrapped in Cached, which fetches once, shares concurrent fetches, and remembers a failure
as domain.ErrCatalogUnavailable until Reset is called. There is deliberately no silent
empty-catalog fallback: an empty list is only returned when the source really is empty.
*/
package catalog

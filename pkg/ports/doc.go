/*
Package ports defines the interfaces between the modelgraph core and its adapters.

Driven ports (implemented by adapters, consumed by the core):

  - Catalog: source of node templates.
  - SessionStore: persistence of editing sessions.
  - DistributedLocker: cross-replica mutual exclusion per session.
  - Submitter: delivery of compiled graphs to the training service.

RunSessionStoreContract is a reusable test suite every SessionStore adapter should pass.
*/
package ports

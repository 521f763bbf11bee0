// Package router is the client-side piece of the data path: given a key,
// resolve its owning shard from a ring.Ring, dispatch the operation over a
// pooled wire.Client, and record whether it succeeded.
//
//	caller ──► Router.Get/Set/...
//	              │
//	              ▼
//	       ring.GetShardForKey
//	              │
//	              ▼
//	      connectionFor(shardID) ──► wire.Client (pooled, lazy)
//	              │
//	              ▼
//	          RPC + RoutingStats update
//
// A Router never migrates a connection when the ring changes underneath
// it; RemoveShardConnection exists for a caller that wants to force a
// reconnect (e.g. after an address change) but nothing in this package
// calls it automatically.
//
// HealthProber is a separate, optional collaborator: a ticker-driven
// goroutine that polls each shard's /health endpoint and updates
// ring.ShardDescriptor.Available. It does not feed back into Router's
// dispatch logic — an unavailable shard is still routed to exactly as
// before. Wiring "skip unavailable shards" together is left to the
// service built on top of these two pieces, not baked in here.
package router

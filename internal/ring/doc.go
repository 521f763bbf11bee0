// Package ring provides the consistent hash ring used to assign string keys
// to shards across the cluster.
//
// # Overview
//
// Every shard is represented by DefaultVirtualNodes (150) virtual-node
// entries placed on a 32-bit ring via FNV-1a hashing of "{shard_id}:{i}".
// A key's owning shard is found by hashing the key and walking clockwise to
// the first virtual node at or past that hash, wrapping around at the end
// of the ring:
//
//	            0xFFFFFFFF
//	         ┌──────────────┐
//	         │  ...          │
//	   ┌─────┴─┐          ┌──┴────┐
//	   │shard-2│          │shard-1│
//	   └─────┬─┘          └──┬────┘
//	         │   key hash    │
//	         │      ↓        │
//	         └───► nearest vnode clockwise
//
// Virtual nodes smooth the distribution: with V=150 and a handful of
// shards, each shard ends up with a roughly proportional share of the
// keyspace even though any single physical node's hash placement is
// otherwise arbitrary.
//
// # Thread safety
//
// A single sync.RWMutex guards both the ordered vnode slice and the
// shard-id -> descriptor map. Mutations (AddShard/RemoveShard) are O(V log
// N); lookups (GetShardForKey) are O(log N).
//
// # What this package does not do
//
// It never migrates keys when shards are added or removed — only future
// GetShardForKey calls see the new ring. It never removes a shard
// automatically on failure; SetAvailable only flips an introspection flag
// that callers may act on themselves.
package ring

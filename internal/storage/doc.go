// Package storage is the per-shard storage engine: an in-memory
// string-to-string map with lazy TTL expiration, durable through an
// append-only command log and periodic RDB snapshots.
//
// # Overview
//
//	   ┌────────────────────────┐
//	   │         Engine         │  data + expireAt, RWMutex-guarded
//	   └───────┬────────┬───────┘
//	           │        │
//	   LogSet/LogDelete  ReplicateSet/Delete/Expire
//	   LogExpire         (internal/replication.Manager)
//	           │
//	   ┌───────▼───────┐   ticker   ┌──────────────┐
//	   │   FileAOF     │◄───────────┤ Snapshotter  │──► SaveSnapshot (RDB)
//	   └───────────────┘            └──────────────┘
//
// Every mutation lands in the value map and, unless the caller went
// through the *FromReplication path, is journaled to the AOF and handed to
// the Replicator before the call returns. Startup order is: load the most
// recent RDB snapshot (best-effort), replay the AOF on top of it, then open
// the AOF for further appends.
//
// # Expiration
//
// TTLs are checked lazily on read (Get, Contains, TTL), never by a
// background scanner: an expired-but-unreaped key is treated as absent by
// every read path, and reaping upgrades a shared lock to an exclusive one,
// re-validating the expiration timestamp before deleting so a concurrent
// Set or Expire on the same key always wins the race.
//
// # What this package does not do
//
// It does not compact or truncate the AOF; a node that crashes and
// restarts replays its entire history from the last RDB snapshot forward.
// It does not enforce a maximum value size or key count.
package storage

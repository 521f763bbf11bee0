// Package replication is the master-side mutation fanout and the
// replica-side applied-sequence tracker.
//
// A master's Manager owns the attached replica list and an
// atomically-incrementing sequence counter; every Set/Delete/Expire a
// storage.Engine performs calls the matching Replicate* method, which
// stamps the mutation with the next sequence number and pushes it to each
// replica over wire.Client.ReplicateCommand, one at a time, holding a
// single mutex for the whole fanout so the replica list can't shift
// mid-push.
//
// A replica's Manager plays the opposite role: it never fans out (IsMaster
// gates every Replicate* method to a no-op), and instead records the
// highest sequence number it has applied so the service facade can report
// it back in a ReplicationResponse.
//
// # What this package does not do
//
// It never retries a failed push, queues one for later delivery, or waits
// for a replica's acknowledgment beyond the single RPC's response. A
// replica that falls behind or disconnects simply misses updates until an
// operator calls RemoveReplica or a fresh AddReplica re-attaches it —
// there is no automatic re-sync. StreamReplication, the bulk backfill RPC
// a newly (re)attached replica would use to catch up, is declared on the
// wire surface but not implemented anywhere in this module.
package replication

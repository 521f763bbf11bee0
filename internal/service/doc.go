// Package service adapts the external request/response surface (see
// internal/wire) onto storage.Engine calls. It is the one place edge
// validation happens: an empty key or a non-positive TTL is rejected before
// storage.Engine is ever touched.
//
//	wire.GetRequest ──► Facade.Get ──► storage.Engine.Get
//	wire.SetRequest ──► Facade.Set ──► storage.Engine.Set
//	...
//	wire.ReplicationCommand ──► Facade.ReplicateCommand ──► storage.Engine.*FromReplication
//
// A Facade never owns a replication.Manager or a ring.Ring; it only ever
// touches the storage.Engine it was built with. Inbound replication
// commands are applied through the engine's *FromReplication paths, which
// bypass AOF journaling and further fanout by construction (see
// internal/storage).
//
// StreamReplication is declared on this package's Streamer interface but
// Facade's implementation always returns ErrUnimplemented, matching
// spec.md's StreamReplication -> UNIMPLEMENTED and the original C++
// service's grpc::StatusCode::UNIMPLEMENTED.
package service

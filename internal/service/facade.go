package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nicolaskjh/distributed-key-value-store/internal/storage"
	"github.com/nicolaskjh/distributed-key-value-store/internal/wire"
)

// ErrInvalidArgument is returned when a request fails edge validation: an
// empty key, a non-positive TTL, or an unrecognized ReplicationCommand
// type. No storage state is mutated when this error is returned.
var ErrInvalidArgument = errors.New("service: invalid argument")

// ErrUnimplemented is returned by StreamReplication, which is declared on
// the wire surface (spec §6) but never implemented by the core.
var ErrUnimplemented = errors.New("service: unimplemented")

// Streamer is the streaming-replication surface a Facade also satisfies.
// Kept as its own interface so cmd/kvnode's HTTP wiring can depend on the
// narrower contract if it only needs that one method.
type Streamer interface {
	StreamReplication(ctx context.Context, fromSequenceID int64, send func(wire.ReplicationCommand) error) error
}

// Facade translates the wire request/response surface onto storage.Engine
// calls, validating at the edge. It holds no reference to a ring, a
// router, or a replication.Manager: a replica node applies inbound
// ReplicateCommand calls directly through the engine's *FromReplication
// methods, and a master's storage.Engine already fans mutations out to
// replicas on its own (see internal/storage, internal/replication) before
// Facade's own calls return.
type Facade struct {
	engine *storage.Engine
}

// NewFacade creates a Facade backed by engine.
func NewFacade(engine *storage.Engine) *Facade {
	return &Facade{engine: engine}
}

// Get returns key's value and whether it was found. Fails with
// ErrInvalidArgument if key is empty.
func (f *Facade) Get(key string) (value string, found bool, err error) {
	if key == "" {
		return "", false, fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
	}
	value, found = f.engine.Get(key)
	return value, found, nil
}

// Set upserts key's value. Fails with ErrInvalidArgument if key is empty.
func (f *Facade) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
	}
	f.engine.Set(key, value)
	return nil
}

// Contains reports whether key exists and has not expired. Fails with
// ErrInvalidArgument if key is empty.
func (f *Facade) Contains(key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
	}
	return f.engine.Contains(key), nil
}

// Delete removes key and reports whether it previously existed. Fails with
// ErrInvalidArgument if key is empty.
func (f *Facade) Delete(key string) (found bool, err error) {
	if key == "" {
		return false, fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
	}
	return f.engine.Delete(key), nil
}

// Expire sets key's TTL to seconds from now and reports whether it took
// effect. Fails with ErrInvalidArgument if key is empty or seconds <= 0.
func (f *Facade) Expire(key string, seconds int) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
	}
	if seconds <= 0 {
		return false, fmt.Errorf("%w: seconds must be positive", ErrInvalidArgument)
	}
	return f.engine.Expire(key, seconds), nil
}

// TTL returns key's remaining TTL per storage.Engine.TTL's contract. Fails
// with ErrInvalidArgument if key is empty.
func (f *Facade) TTL(key string) (int, error) {
	if key == "" {
		return 0, fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
	}
	return f.engine.TTL(key), nil
}

// ReplicateCommand applies an inbound replicated mutation directly through
// the engine's *FromReplication paths, bypassing AOF journaling and any
// further fanout. The response echoes back the request's sequence id as
// last_applied_sequence, matching spec.md §6: no durability guarantee is
// implied by the echo, only that this node observed the command. Fails
// with ErrInvalidArgument for an unrecognized command type.
func (f *Facade) ReplicateCommand(cmd wire.ReplicationCommand) (wire.ReplicationResponse, error) {
	switch cmd.Type {
	case wire.CommandSet:
		f.engine.SetFromReplication(cmd.Key, cmd.Value)
	case wire.CommandDelete:
		f.engine.DeleteFromReplication(cmd.Key)
	case wire.CommandExpire:
		f.engine.ExpireFromReplication(cmd.Key, cmd.Seconds)
	default:
		return wire.ReplicationResponse{}, fmt.Errorf("%w: unknown replication command type %q", ErrInvalidArgument, cmd.Type)
	}
	return wire.ReplicationResponse{Success: true, LastAppliedSequence: cmd.SequenceID}, nil
}

// StreamReplication always returns ErrUnimplemented. A streaming backfill
// API for a newly (re)attached replica to catch up on missed mutations is
// declared at the interface layer, per spec.md §4.6/§6, but deliberately
// left unimplemented by the core, matching the original service's
// grpc::StatusCode::UNIMPLEMENTED.
func (f *Facade) StreamReplication(ctx context.Context, fromSequenceID int64, send func(wire.ReplicationCommand) error) error {
	return ErrUnimplemented
}

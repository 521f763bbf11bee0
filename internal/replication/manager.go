// Package replication implements the master-to-replica mutation fanout:
// a master node assigns each locally-applied mutation a monotonically
// increasing sequence number and pushes it, synchronously and best-effort,
// to every attached replica. See doc.go for the full package overview.
package replication

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slices"

	"github.com/nicolaskjh/distributed-key-value-store/internal/wire"
)

// fanoutTimeout bounds how long ReplicateSet/Delete/Expire will wait on a
// single replica before moving on to the next one.
const fanoutTimeout = 5 * time.Second

// Role is a node's position in a master/replica pair.
type Role int

// The two roles a node can hold. A node's role can change at runtime via
// SetRole, but this package never changes it on its own.
const (
	RoleMaster Role = iota
	RoleReplica
)

// ReplicaClient is the narrow interface Manager pushes mutations through.
// *wire.Client already satisfies it; tests supply a fake.
type ReplicaClient interface {
	ReplicateCommand(ctx context.Context, cmd wire.ReplicationCommand) (wire.ReplicationResponse, error)
}

type replicaConn struct {
	address string
	client  ReplicaClient
}

// Manager is the replication fanout for one node. On a master it tracks
// the replica list and the outgoing sequence counter; on a replica it
// tracks only the highest sequence number applied so far, for reporting
// back to the master. A single mutex guards all of it.
type Manager struct {
	mu          sync.Mutex
	role        Role
	replicas    []*replicaConn
	newClient   func(address string) ReplicaClient
	sequence    atomic.Int64
	lastApplied int64
}

// NewManager creates a Manager in the given role with no replicas attached.
func NewManager(role Role) *Manager {
	return &Manager{
		role:      role,
		newClient: func(address string) ReplicaClient { return wire.NewClient(address) },
	}
}

// SetClientFactory overrides how AddReplica constructs a ReplicaClient for
// a newly added address. Intended for tests; production callers never need
// this, since the default wraps wire.NewClient.
func (m *Manager) SetClientFactory(f func(address string) ReplicaClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newClient = f
}

// SetRole changes the node's role.
func (m *Manager) SetRole(role Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.role = role
}

// Role returns the node's current role.
func (m *Manager) Role() Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

// IsMaster reports whether the node is currently acting as a master.
func (m *Manager) IsMaster() bool {
	return m.Role() == RoleMaster
}

// AddReplica attaches address as a replica target. Adding an address that
// is already attached is a no-op rather than a duplicate entry.
func (m *Manager) AddReplica(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.replicas {
		if r.address == address {
			return
		}
	}
	m.replicas = append(m.replicas, &replicaConn{address: address, client: m.newClient(address)})
	log.Printf("replication: added replica %s", address)
}

// RemoveReplica detaches address. Removing an address that isn't attached
// is a no-op.
func (m *Manager) RemoveReplica(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.replicas = slices.DeleteFunc(m.replicas, func(r *replicaConn) bool {
		return r.address == address
	})
	log.Printf("replication: removed replica %s", address)
}

// ReplicaAddresses returns the currently attached replica addresses.
func (m *Manager) ReplicaAddresses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	addrs := make([]string, len(m.replicas))
	for i, r := range m.replicas {
		addrs[i] = r.address
	}
	return addrs
}

// ReplicateSet fans a Set mutation out to every attached replica. A no-op
// on a non-master node.
func (m *Manager) ReplicateSet(key, value string) {
	if !m.IsMaster() {
		return
	}
	m.fanOut(wire.ReplicationCommand{Type: wire.CommandSet, Key: key, Value: value, SequenceID: m.nextSequenceID()})
}

// ReplicateDelete fans a Delete mutation out to every attached replica. A
// no-op on a non-master node.
func (m *Manager) ReplicateDelete(key string) {
	if !m.IsMaster() {
		return
	}
	m.fanOut(wire.ReplicationCommand{Type: wire.CommandDelete, Key: key, SequenceID: m.nextSequenceID()})
}

// ReplicateExpire fans an Expire mutation out to every attached replica. A
// no-op on a non-master node.
func (m *Manager) ReplicateExpire(key string, seconds int) {
	if !m.IsMaster() {
		return
	}
	m.fanOut(wire.ReplicationCommand{Type: wire.CommandExpire, Key: key, Seconds: seconds, SequenceID: m.nextSequenceID()})
}

// nextSequenceID returns the next sequence number, starting at 0 and
// increasing strictly monotonically across the manager's lifetime.
func (m *Manager) nextSequenceID() int64 {
	return m.sequence.Add(1) - 1
}

// fanOut pushes cmd to every attached replica in order, synchronously. A
// replica that errors or times out is logged and skipped; there is no
// retry, no queue, and no acknowledgment tracking beyond the log line —
// an unreachable replica simply falls behind until RemoveReplica is called
// or it catches back up on its own.
func (m *Manager) fanOut(cmd wire.ReplicationCommand) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), fanoutTimeout)
	defer cancel()

	for _, r := range m.replicas {
		if _, err := r.client.ReplicateCommand(ctx, cmd); err != nil {
			log.Printf("replication: failed to replicate to %s: %v", r.address, err)
		}
	}
}

// RecordApplied updates the highest sequence number this node has applied,
// as a replica, from an inbound ReplicateCommand call. Out-of-order or
// duplicate deliveries that carry a lower sequence than what's already
// recorded are ignored.
func (m *Manager) RecordApplied(seq int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq > m.lastApplied {
		m.lastApplied = seq
	}
}

// LastAppliedSequence returns the highest sequence number recorded via
// RecordApplied.
func (m *Manager) LastAppliedSequence() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastApplied
}

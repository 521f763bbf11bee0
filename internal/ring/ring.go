// Package ring implements a consistent hash ring for mapping keys to shards.
// See doc.go for the full package overview.
package ring

import (
	"errors"
	"hash/fnv"
	"sort"
	"strconv"
	"sync"
)

// DefaultVirtualNodes is the number of virtual-node entries placed on the
// ring per physical shard when a ring is created with NewRing.
const DefaultVirtualNodes = 150

// ErrDuplicateShard is returned by AddShard when the shard is already present.
var ErrDuplicateShard = errors.New("ring: shard already exists")

// ErrShardNotFound is returned by RemoveShard and GetShard when the shard id
// is not known to the ring.
var ErrShardNotFound = errors.New("ring: shard not found")

// ShardDescriptor is the metadata the ring keeps about one physical shard,
// matching the Shard descriptor tuple of the data model: shard id, primary
// address, replica addresses, availability, and an approximate key count.
//
// ShardDescriptor values handed out by the ring are always copies; callers
// cannot mutate ring state through a returned descriptor.
type ShardDescriptor struct {
	ShardID          string
	PrimaryAddress   string
	ReplicaAddresses []string
	Available        bool
	ApproxKeyCount   uint64
}

func (d ShardDescriptor) clone() *ShardDescriptor {
	c := d
	if d.ReplicaAddresses != nil {
		c.ReplicaAddresses = append([]string(nil), d.ReplicaAddresses...)
	}
	return &c
}

// vnode is one entry on the ring: a 32-bit hash and the shard it resolves to.
type vnode struct {
	hash    uint32
	shardID string
}

// Ring is a consistent hash ring with virtual nodes. A single mutex guards
// both the ordered vnode slice and the shard-id -> descriptor side index, as
// required by §5's "shared resources" rule for this component: mutations are
// O(V log N), lookups are O(log N).
type Ring struct {
	mu      sync.RWMutex
	entries []vnode // sorted ascending by hash
	shards  map[string]*ShardDescriptor
	v       int
}

// NewRing creates an empty ring with v virtual nodes per shard. A
// non-positive v falls back to DefaultVirtualNodes (150), matching the
// original hash ring's constructor default.
func NewRing(v int) *Ring {
	if v <= 0 {
		v = DefaultVirtualNodes
	}
	return &Ring{
		entries: make([]vnode, 0),
		shards:  make(map[string]*ShardDescriptor),
		v:       v,
	}
}

// virtualNodeKey builds the string hashed for virtual node i of shardID:
// "{shard_id}:{i}". This exact format is part of the on-disk/on-wire
// contract (§4.1) — changing it would silently reshuffle every key.
func virtualNodeKey(shardID string, i int) string {
	return shardID + ":" + strconv.Itoa(i)
}

// computeHash implements FNV-1a (32-bit): initial state 0x811C9DC5, per-byte
// h = (h XOR byte) * 0x01000193, with 32-bit unsigned wraparound. This must
// stay bit-exact; it is the hash function specified for the ring.
func computeHash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// AddShard inserts v virtual-node entries for shardID at the given address
// and registers its descriptor. Returns ErrDuplicateShard if shardID is
// already present.
func (r *Ring) AddShard(shardID, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.shards[shardID]; ok {
		return ErrDuplicateShard
	}

	for i := 0; i < r.v; i++ {
		h := computeHash(virtualNodeKey(shardID, i))
		r.insertLocked(h, shardID)
	}

	r.shards[shardID] = &ShardDescriptor{
		ShardID:        shardID,
		PrimaryAddress: address,
		Available:      true,
	}
	return nil
}

// insertLocked inserts hash->shardID into the sorted entries slice. If an
// entry with the same hash already exists, the new shard wins (last-writer-
// wins collision resolution, per §4.1) rather than a second entry being
// added — V=150 with tens of shards makes this vanishingly rare, but a
// deterministic rule is required for reproducibility.
func (r *Ring) insertLocked(h uint32, shardID string) {
	idx := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].hash >= h })
	if idx < len(r.entries) && r.entries[idx].hash == h {
		r.entries[idx].shardID = shardID
		return
	}
	r.entries = append(r.entries, vnode{})
	copy(r.entries[idx+1:], r.entries[idx:])
	r.entries[idx] = vnode{hash: h, shardID: shardID}
}

// RemoveShard removes all virtual-node entries for shardID and its
// descriptor. Returns ErrShardNotFound if shardID is unknown. Entries are
// removed by recomputed hash, so a vnode hash that collided with (and was
// overwritten by) another shard is left in place — consistent with the
// last-writer-wins rule used on insert.
func (r *Ring) RemoveShard(shardID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.shards[shardID]; !ok {
		return ErrShardNotFound
	}

	for i := 0; i < r.v; i++ {
		h := computeHash(virtualNodeKey(shardID, i))
		idx := sort.Search(len(r.entries), func(j int) bool { return r.entries[j].hash >= h })
		if idx < len(r.entries) && r.entries[idx].hash == h {
			r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
		}
	}

	delete(r.shards, shardID)
	return nil
}

// GetShardForKey computes the FNV-1a hash of key and returns the id of the
// shard owning it: the first ring entry whose hash is >= the key's hash,
// wrapping around to the smallest entry if none is found. Returns ("",
// false) for an empty ring.
func (r *Ring) GetShardForKey(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return "", false
	}

	h := computeHash(key)
	idx := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].hash >= h })
	if idx == len(r.entries) {
		idx = 0
	}
	return r.entries[idx].shardID, true
}

// GetShard returns a copy of the descriptor for shardID, or ErrShardNotFound.
func (r *Ring) GetShard(shardID string) (*ShardDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.shards[shardID]
	if !ok {
		return nil, ErrShardNotFound
	}
	return d.clone(), nil
}

// GetAllShards returns copies of every shard descriptor, in no particular
// order.
func (r *Ring) GetAllShards() []*ShardDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ShardDescriptor, 0, len(r.shards))
	for _, d := range r.shards {
		out = append(out, d.clone())
	}
	return out
}

// GetShardCount returns the number of physical shards in the ring.
func (r *Ring) GetShardCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shards)
}

// IsEmpty reports whether the ring has no shards.
func (r *Ring) IsEmpty() bool {
	return r.GetShardCount() == 0
}

// SetAvailable flips the Available flag on shardID's descriptor. It never
// touches ring membership or vnode placement — callers (such as a health
// prober) use it purely for introspection; no automatic rebalancing or
// failover follows from it. A call for an unknown shardID is a no-op.
func (r *Ring) SetAvailable(shardID string, available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.shards[shardID]; ok {
		d.Available = available
	}
}

// SetReplicaAddresses records the replica addresses for shardID on its
// descriptor, for introspection by callers that want to know where a
// shard's replicas live without consulting the replication manager
// directly. A call for an unknown shardID is a no-op.
func (r *Ring) SetReplicaAddresses(shardID string, addrs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.shards[shardID]; ok {
		d.ReplicaAddresses = append([]string(nil), addrs...)
	}
}

// SetApproxKeyCount records an approximate key count for shardID, as
// reported by that shard (e.g. via Size()). A call for an unknown shardID
// is a no-op.
func (r *Ring) SetApproxKeyCount(shardID string, count uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.shards[shardID]; ok {
		d.ApproxKeyCount = count
	}
}

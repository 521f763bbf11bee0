// Package router is the client-side shard router: it resolves a key to a
// shard via the hash ring, dispatches the RPC over a lazily-created
// pooled connection, and tracks routing statistics. See doc.go for the
// full package overview.
package router

import (
	"context"
	"sync"

	"github.com/nicolaskjh/distributed-key-value-store/internal/ring"
	"github.com/nicolaskjh/distributed-key-value-store/internal/wire"
)

// RoutingStats is a snapshot of how many requests the router has sent,
// how many succeeded or failed, and a per-shard breakdown.
type RoutingStats struct {
	Total            int64
	Successful       int64
	Failed           int64
	PerShardRequests map[string]int64
}

// Router dispatches point/TTL operations to the shard that owns each key,
// per the hash ring's current assignment. It never talks to more than one
// shard per call and never retries — a failed RPC is reported to the
// caller as a failed operation.
type Router struct {
	ring *ring.Ring

	connMu      sync.Mutex
	connections map[string]*wire.Client
	newClient   func(address string) *wire.Client

	statsMu sync.Mutex
	stats   RoutingStats
}

// NewRouter creates a Router that resolves keys against r and lazily opens
// one wire.Client per shard as it is first used.
func NewRouter(r *ring.Ring) *Router {
	return &Router{
		ring:        r,
		connections: make(map[string]*wire.Client),
		newClient:   wire.NewClient,
		stats:       RoutingStats{PerShardRequests: make(map[string]int64)},
	}
}

// connectionFor returns the pooled client for shardID, creating one from
// the ring's current descriptor if none exists yet.
func (r *Router) connectionFor(shardID string) (*wire.Client, bool) {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if c, ok := r.connections[shardID]; ok {
		return c, true
	}
	desc, err := r.ring.GetShard(shardID)
	if err != nil {
		return nil, false
	}
	c := r.newClient(desc.PrimaryAddress)
	r.connections[shardID] = c
	return c, true
}

// RemoveShardConnection drops the pooled connection for shardID, if any, so
// the next request to that shard opens a fresh one. Eviction is always
// explicit; the router never closes a connection on its own.
func (r *Router) RemoveShardConnection(shardID string) {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	delete(r.connections, shardID)
}

func (r *Router) recordResult(shardID string, success bool) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	r.stats.Total++
	if shardID != "" {
		r.stats.PerShardRequests[shardID]++
	}
	if success {
		r.stats.Successful++
	} else {
		r.stats.Failed++
	}
}

// Stats returns a snapshot copy of the router's accumulated statistics.
func (r *Router) Stats() RoutingStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	perShard := make(map[string]int64, len(r.stats.PerShardRequests))
	for k, v := range r.stats.PerShardRequests {
		perShard[k] = v
	}
	return RoutingStats{
		Total:            r.stats.Total,
		Successful:       r.stats.Successful,
		Failed:           r.stats.Failed,
		PerShardRequests: perShard,
	}
}

// ResetStats zeroes the router's accumulated statistics.
func (r *Router) ResetStats() {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.stats = RoutingStats{PerShardRequests: make(map[string]int64)}
}

// dispatch resolves key's shard and hands it, along with a ready
// connection, to do. It centralizes the "resolve, connect, else count a
// failure" steps shared by every RPC method below.
func (r *Router) dispatch(key string, do func(shardID string, client *wire.Client)) {
	shardID, ok := r.ring.GetShardForKey(key)
	if !ok {
		r.recordResult("", false)
		return
	}
	client, ok := r.connectionFor(shardID)
	if !ok {
		r.recordResult(shardID, false)
		return
	}
	do(shardID, client)
}

// Get routes a Get RPC to the shard owning key.
func (r *Router) Get(ctx context.Context, key string) (string, bool) {
	var value string
	var found bool
	r.dispatch(key, func(shardID string, client *wire.Client) {
		resp, err := client.Get(ctx, key)
		r.recordResult(shardID, err == nil)
		if err == nil {
			value, found = resp.Value, resp.Found
		}
	})
	return value, found
}

// Set routes a Set RPC to the shard owning key.
func (r *Router) Set(ctx context.Context, key, value string) bool {
	success := false
	r.dispatch(key, func(shardID string, client *wire.Client) {
		resp, err := client.Set(ctx, key, value)
		success = err == nil && resp.Success
		r.recordResult(shardID, success)
	})
	return success
}

// Contains routes a Contains RPC to the shard owning key.
func (r *Router) Contains(ctx context.Context, key string) bool {
	exists := false
	r.dispatch(key, func(shardID string, client *wire.Client) {
		resp, err := client.Contains(ctx, key)
		r.recordResult(shardID, err == nil)
		if err == nil {
			exists = resp.Exists
		}
	})
	return exists
}

// Delete routes a Delete RPC to the shard owning key.
func (r *Router) Delete(ctx context.Context, key string) bool {
	found := false
	r.dispatch(key, func(shardID string, client *wire.Client) {
		resp, err := client.Delete(ctx, key)
		r.recordResult(shardID, err == nil)
		if err == nil {
			found = resp.Found
		}
	})
	return found
}

// Expire routes an Expire RPC to the shard owning key.
func (r *Router) Expire(ctx context.Context, key string, seconds int) bool {
	success := false
	r.dispatch(key, func(shardID string, client *wire.Client) {
		resp, err := client.Expire(ctx, key, seconds)
		success = err == nil && resp.Success
		r.recordResult(shardID, success)
	})
	return success
}

// TTL routes a TTL RPC to the shard owning key. Returns -2, matching the
// engine's "missing" sentinel, if the key has no shard or the RPC fails.
func (r *Router) TTL(ctx context.Context, key string) int {
	seconds := -2
	r.dispatch(key, func(shardID string, client *wire.Client) {
		resp, err := client.TTL(ctx, key)
		r.recordResult(shardID, err == nil)
		if err == nil {
			seconds = resp.Seconds
		}
	})
	return seconds
}

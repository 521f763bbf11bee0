// Package storage implements the per-shard storage engine: an in-memory
// key-value map with lazy TTL expiration, backed by a pluggable AOF command
// log and RDB snapshot subsystem. See doc.go for the full package overview.
package storage

import (
	"sync"
	"time"
)

// AOFWriter is the narrow interface the storage engine journals mutations
// through. Concrete implementations are *FileAOF (see aof.go) or the
// zero-value noopAOF used when AOF is disabled, so Set/Delete/Expire never
// need to branch on whether journaling is enabled.
type AOFWriter interface {
	LogSet(key, value string)
	LogDelete(key string)
	LogExpire(key string, seconds int)
	Close() error
}

// Replicator is the narrow interface the storage engine fans mutations out
// through. The concrete implementation lives in internal/replication;
// storage only ever reads this collaborator, never owns or constructs one,
// which keeps the storage<->replication dependency acyclic.
type Replicator interface {
	ReplicateSet(key, value string)
	ReplicateDelete(key string)
	ReplicateExpire(key string, seconds int)
}

type noopAOF struct{}

func (noopAOF) LogSet(string, string) {}
func (noopAOF) LogDelete(string)      {}
func (noopAOF) LogExpire(string, int) {}
func (noopAOF) Close() error          { return nil }

type noopReplicator struct{}

func (noopReplicator) ReplicateSet(string, string) {}
func (noopReplicator) ReplicateDelete(string)      {}
func (noopReplicator) ReplicateExpire(string, int) {}

// Engine is the thread-safe, per-shard key-value store. A single
// sync.RWMutex guards data and expireAt together, so the two maps always
// move atomically with respect to each other.
type Engine struct {
	mu         sync.RWMutex
	data       map[string]string
	expireAt   map[string]time.Time
	aof        AOFWriter
	replicator Replicator
}

// NewEngine creates an empty engine with AOF journaling and replication
// fanout both disabled (no-op collaborators). Call SetAOF / SetReplicator
// to wire in real ones.
func NewEngine() *Engine {
	return &Engine{
		data:       make(map[string]string),
		expireAt:   make(map[string]time.Time),
		aof:        noopAOF{},
		replicator: noopReplicator{},
	}
}

// SetAOF installs the journal a mutation is logged to. Passing nil installs
// the no-op journal, disabling AOF.
func (e *Engine) SetAOF(a AOFWriter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if a == nil {
		a = noopAOF{}
	}
	e.aof = a
}

// SetReplicator installs the collaborator mutations are fanned out through.
// Passing nil installs the no-op replicator, matching a node with no
// replicas or one acting as a replica itself.
func (e *Engine) SetReplicator(r Replicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r == nil {
		r = noopReplicator{}
	}
	e.replicator = r
}

// Set upserts key's value, clears any prior TTL (a fresh Set always means
// "value replaced, expiration gone"), journals the mutation, and fans it
// out to replicas — all inside the same exclusive critical section, so the
// AOF/replication order matches the apply order.
func (e *Engine) Set(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.data[key] = value
	delete(e.expireAt, key)
	e.aof.LogSet(key, value)
	e.replicator.ReplicateSet(key, value)
}

// Get returns key's value, or ("", false) if key is absent or has expired.
// A key found to be expired is reaped opportunistically before returning.
func (e *Engine) Get(key string) (string, bool) {
	e.mu.RLock()
	value, ok := e.data[key]
	if !ok {
		e.mu.RUnlock()
		return "", false
	}
	expiry, hasExpiry := e.expireAt[key]
	e.mu.RUnlock()

	if hasExpiry && !expiry.After(time.Now()) {
		e.reapIfStillExpired(key, expiry)
		return "", false
	}
	return value, true
}

// Contains reports whether key exists and has not expired, reaping an
// expired key opportunistically.
func (e *Engine) Contains(key string) bool {
	_, ok := e.Get(key)
	return ok
}

// reapIfStillExpired upgrades to an exclusive lock and deletes key only if
// its expiration timestamp still matches observedExpiry. Comparing the
// timestamp, not mere presence, closes the race where a writer issues a
// fresh Set or Expire on key between the shared read that observed the
// expiry and this exclusive recheck; in that case the entry must survive.
func (e *Engine) reapIfStillExpired(key string, observedExpiry time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, ok := e.expireAt[key]
	if !ok || !current.Equal(observedExpiry) {
		return
	}
	if current.After(time.Now()) {
		return
	}
	delete(e.data, key)
	delete(e.expireAt, key)
}

// Delete removes key from both maps atomically and reports whether it
// previously existed in the value map. Journals/replicates only when the
// key existed. A not-yet-reaped expired key still counts as "existed" for
// Delete's return value — Delete checks presence, not TTL status.
func (e *Engine) Delete(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, existed := e.data[key]
	if !existed {
		return false
	}
	delete(e.data, key)
	delete(e.expireAt, key)
	e.aof.LogDelete(key)
	e.replicator.ReplicateDelete(key)
	return true
}

// Expire sets key's TTL to seconds from now, replacing any prior TTL.
// Returns false without effect if key does not exist. Callers at the edge
// (the service facade) are responsible for rejecting seconds <= 0 before
// calling Expire; the engine itself trusts its caller.
func (e *Engine) Expire(key string, seconds int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.data[key]; !ok {
		return false
	}
	e.expireAt[key] = time.Now().Add(time.Duration(seconds) * time.Second)
	e.aof.LogExpire(key, seconds)
	e.replicator.ReplicateExpire(key, seconds)
	return true
}

// TTL returns -2 if key is missing, -1 if key exists with no TTL, 0 if key
// exists but has expired and not yet been reaped, or the whole number of
// seconds remaining otherwise. An expired key is reaped opportunistically.
func (e *Engine) TTL(key string) int {
	e.mu.RLock()
	_, ok := e.data[key]
	if !ok {
		e.mu.RUnlock()
		return -2
	}
	expiry, hasExpiry := e.expireAt[key]
	e.mu.RUnlock()

	if !hasExpiry {
		return -1
	}

	remaining := expiry.Sub(time.Now())
	if remaining <= 0 {
		e.reapIfStillExpired(key, expiry)
		return 0
	}
	return int(remaining.Seconds())
}

// Size returns the number of entries in the value map, which may include
// keys that have expired but not yet been reaped.
func (e *Engine) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.data)
}

// SetFromReplication applies an inbound replicated Set without journaling
// to AOF or forwarding to further replicas.
func (e *Engine) SetFromReplication(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data[key] = value
	delete(e.expireAt, key)
}

// DeleteFromReplication applies an inbound replicated Delete without
// journaling or forwarding, and reports whether the key previously existed.
func (e *Engine) DeleteFromReplication(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, existed := e.data[key]
	delete(e.data, key)
	delete(e.expireAt, key)
	return existed
}

// ExpireFromReplication applies an inbound replicated Expire without
// journaling or forwarding, and reports whether key existed.
func (e *Engine) ExpireFromReplication(key string, seconds int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.data[key]; !ok {
		return false
	}
	e.expireAt[key] = time.Now().Add(time.Duration(seconds) * time.Second)
	return true
}

// SnapshotCopy returns independent copies of the value map and expiration
// index, taken under a shared lock, so the background snapshotter can
// serialize them without holding the engine lock for the duration of the
// write.
func (e *Engine) SnapshotCopy() (map[string]string, map[string]time.Time) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	data := make(map[string]string, len(e.data))
	for k, v := range e.data {
		data[k] = v
	}
	expireAt := make(map[string]time.Time, len(e.expireAt))
	for k, v := range e.expireAt {
		expireAt[k] = v
	}
	return data, expireAt
}

// LoadOnStartup seeds the engine from rdbPath (a no-op if the file is
// absent or malformed) and then replays aofPath in order, applying each
// command through the *FromReplication paths so startup never re-journals
// or re-replicates history. It does not open aofPath for append; callers
// should do that afterward via SetAOF, so loading always finishes before
// new writes start landing in the journal.
func (e *Engine) LoadOnStartup(rdbPath, aofPath string) error {
	data, expireAt, err := LoadSnapshot(rdbPath)
	if err == nil {
		e.mu.Lock()
		for k, v := range data {
			e.data[k] = v
		}
		for k, t := range expireAt {
			e.expireAt[k] = t
		}
		e.mu.Unlock()
	}

	return ReplayAOF(aofPath, func(cmd aofCommand) {
		switch cmd.op {
		case opSet:
			e.SetFromReplication(cmd.key, cmd.value)
		case opDelete:
			e.DeleteFromReplication(cmd.key)
		case opExpire:
			e.ExpireFromReplication(cmd.key, cmd.seconds)
		}
	})
}

package storage

import (
	"fmt"
	"sync"
	"testing"
)

func TestEngineSetGet(t *testing.T) {
	t.Run("new engine is empty", func(t *testing.T) {
		e := NewEngine()
		if _, ok := e.Get("missing"); ok {
			t.Error("expected no value for missing key")
		}
		if e.Size() != 0 {
			t.Errorf("expected size 0, got %d", e.Size())
		}
	})

	t.Run("set then get returns the value", func(t *testing.T) {
		e := NewEngine()
		e.Set("k1", "v1")
		v, ok := e.Get("k1")
		if !ok || v != "v1" {
			t.Errorf("expected (v1, true), got (%q, %v)", v, ok)
		}
	})

	t.Run("set overwrites and clears prior TTL", func(t *testing.T) {
		e := NewEngine()
		e.Set("k1", "v1")
		e.Expire("k1", 100)
		e.Set("k1", "v2")

		v, ok := e.Get("k1")
		if !ok || v != "v2" {
			t.Errorf("expected (v2, true), got (%q, %v)", v, ok)
		}
		if ttl := e.TTL("k1"); ttl != -1 {
			t.Errorf("expected TTL -1 after overwrite, got %d", ttl)
		}
	})
}

func TestEngineContains(t *testing.T) {
	e := NewEngine()
	e.Set("k1", "v1")
	if !e.Contains("k1") {
		t.Error("expected Contains true for existing key")
	}
	if e.Contains("missing") {
		t.Error("expected Contains false for missing key")
	}
}

func TestEngineDelete(t *testing.T) {
	t.Run("deletes an existing key", func(t *testing.T) {
		e := NewEngine()
		e.Set("k1", "v1")
		if !e.Delete("k1") {
			t.Error("expected Delete to report true for an existing key")
		}
		if _, ok := e.Get("k1"); ok {
			t.Error("expected key to be gone after Delete")
		}
	})

	t.Run("deleting a missing key reports false", func(t *testing.T) {
		e := NewEngine()
		if e.Delete("missing") {
			t.Error("expected Delete to report false for a missing key")
		}
	})

	t.Run("delete clears a pending TTL", func(t *testing.T) {
		e := NewEngine()
		e.Set("k1", "v1")
		e.Expire("k1", 100)
		e.Delete("k1")
		e.Set("k1", "v2")
		if ttl := e.TTL("k1"); ttl != -1 {
			t.Errorf("expected no TTL to survive delete+re-set, got %d", ttl)
		}
	})
}

func TestEngineExpireAndTTL(t *testing.T) {
	t.Run("TTL on a missing key is -2", func(t *testing.T) {
		e := NewEngine()
		if ttl := e.TTL("missing"); ttl != -2 {
			t.Errorf("expected -2, got %d", ttl)
		}
	})

	t.Run("TTL on a key with no expiration is -1", func(t *testing.T) {
		e := NewEngine()
		e.Set("k1", "v1")
		if ttl := e.TTL("k1"); ttl != -1 {
			t.Errorf("expected -1, got %d", ttl)
		}
	})

	t.Run("Expire on a missing key reports false", func(t *testing.T) {
		e := NewEngine()
		if e.Expire("missing", 10) {
			t.Error("expected Expire to report false for a missing key")
		}
	})

	t.Run("Expire on an existing key sets a TTL near the requested value", func(t *testing.T) {
		e := NewEngine()
		e.Set("k1", "v1")
		if !e.Expire("k1", 10) {
			t.Fatal("expected Expire to report true")
		}
		ttl := e.TTL("k1")
		if ttl != 9 && ttl != 10 {
			t.Errorf("expected TTL in {9, 10}, got %d", ttl)
		}
	})

	t.Run("a key with an elapsed TTL reads as absent", func(t *testing.T) {
		e := NewEngine()
		e.Set("k1", "v1")
		e.Expire("k1", -1) // already in the past

		if _, ok := e.Get("k1"); ok {
			t.Error("expected Get to treat an elapsed TTL key as absent")
		}
		if e.Contains("k1") {
			t.Error("expected Contains to treat an elapsed TTL key as absent")
		}
	})

	t.Run("Get reaps an elapsed key opportunistically", func(t *testing.T) {
		e := NewEngine()
		e.Set("k1", "v1")
		e.Expire("k1", -1)

		e.Get("k1") // triggers the reap

		e.mu.RLock()
		_, stillPresent := e.data["k1"]
		e.mu.RUnlock()
		if stillPresent {
			t.Error("expected reaping to remove the key from the underlying map")
		}
	})

	t.Run("a concurrent Set wins the race against a pending reap", func(t *testing.T) {
		e := NewEngine()
		e.Set("k1", "v1")
		e.Expire("k1", -1)

		observedExpiry := e.expireAt["k1"]
		e.Set("k1", "fresh") // simulates a writer racing the reap

		e.reapIfStillExpired("k1", observedExpiry)

		v, ok := e.Get("k1")
		if !ok || v != "fresh" {
			t.Errorf("expected the fresh value to survive the stale reap, got (%q, %v)", v, ok)
		}
	})
}

func TestEngineSize(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 5; i++ {
		e.Set(fmt.Sprintf("k%d", i), "v")
	}
	if e.Size() != 5 {
		t.Errorf("expected size 5, got %d", e.Size())
	}
	e.Delete("k0")
	if e.Size() != 4 {
		t.Errorf("expected size 4 after delete, got %d", e.Size())
	}
}

func TestEngineFromReplicationPathsSkipCollaborators(t *testing.T) {
	journal := &recordingAOF{}
	repl := &recordingReplicator{}
	e := NewEngine()
	e.SetAOF(journal)
	e.SetReplicator(repl)

	e.SetFromReplication("k1", "v1")
	e.DeleteFromReplication("missing")
	e.ExpireFromReplication("k1", 10)

	if len(journal.lines) != 0 {
		t.Errorf("expected no AOF writes from replication-origin mutations, got %v", journal.lines)
	}
	if repl.calls != 0 {
		t.Errorf("expected no outbound replication calls, got %d", repl.calls)
	}

	v, ok := e.Get("k1")
	if !ok || v != "v1" {
		t.Errorf("expected replicated value to be visible, got (%q, %v)", v, ok)
	}
}

func TestEngineJournalsAndReplicatesLocalMutations(t *testing.T) {
	journal := &recordingAOF{}
	repl := &recordingReplicator{}
	e := NewEngine()
	e.SetAOF(journal)
	e.SetReplicator(repl)

	e.Set("k1", "v1")
	e.Expire("k1", 10)
	e.Delete("k1")

	if len(journal.lines) != 3 {
		t.Fatalf("expected 3 journal entries, got %d: %v", len(journal.lines), journal.lines)
	}
	if repl.calls != 3 {
		t.Errorf("expected 3 replication calls, got %d", repl.calls)
	}
}

func TestEngineSnapshotCopyIsIndependent(t *testing.T) {
	e := NewEngine()
	e.Set("k1", "v1")
	e.Expire("k1", 100)

	data, expireAt := e.SnapshotCopy()
	data["k1"] = "mutated"
	delete(expireAt, "k1")

	v, _ := e.Get("k1")
	if v != "v1" {
		t.Errorf("expected engine state to be unaffected by mutating the snapshot copy, got %q", v)
	}
	if e.TTL("k1") <= 0 {
		t.Error("expected engine TTL to be unaffected by mutating the snapshot copy")
	}
}

func TestEngineConcurrentSetGetDelete(t *testing.T) {
	e := NewEngine()
	const goroutines = 50
	const perGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				key := fmt.Sprintf("g%d-k%d", id, i%10)
				e.Set(key, "v")
				e.Get(key)
				if i%7 == 0 {
					e.Delete(key)
				}
				if i%11 == 0 {
					e.Expire(key, 30)
				}
			}
		}(g)
	}
	wg.Wait()

	e.Set("final", "value")
	if v, ok := e.Get("final"); !ok || v != "value" {
		t.Error("engine not functional after concurrent access")
	}
}

type recordingAOF struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingAOF) LogSet(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, "SET "+key+" "+value)
}

func (r *recordingAOF) LogDelete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, "DELETE "+key)
}

func (r *recordingAOF) LogExpire(key string, seconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf("EXPIRE %s %d", key, seconds))
}

func (r *recordingAOF) Close() error { return nil }

type recordingReplicator struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingReplicator) ReplicateSet(string, string) { r.inc() }
func (r *recordingReplicator) ReplicateDelete(string)      { r.inc() }
func (r *recordingReplicator) ReplicateExpire(string, int) { r.inc() }

func (r *recordingReplicator) inc() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
}

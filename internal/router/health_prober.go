package router

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nicolaskjh/distributed-key-value-store/internal/ring"
	"github.com/nicolaskjh/distributed-key-value-store/internal/wire"
)

// DefaultProbeInterval is used when NewHealthProber is given a
// non-positive interval.
const DefaultProbeInterval = 10 * time.Second

// healthCheckTimeout bounds a single probe RPC.
const healthCheckTimeout = 2 * time.Second

// defaultMaxFailures is how many consecutive failed probes mark a shard
// unavailable.
const defaultMaxFailures = 3

// HealthProber periodically checks every shard's /health endpoint and
// flips ring.ShardDescriptor.Available accordingly. It is purely an
// introspection signal: it never removes a shard from the ring, triggers
// rebalancing, or redirects traffic away from an unavailable shard on its
// own — callers (the service facade, an operator dashboard) decide what to
// do with the flag.
type HealthProber struct {
	ring        *ring.Ring
	interval    time.Duration
	maxFailures int

	mu        sync.Mutex
	checkFunc func(ctx context.Context, address string) error
	fails     map[string]int

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewHealthProber creates a prober for r with the given check interval. A
// non-positive interval falls back to DefaultProbeInterval.
func NewHealthProber(r *ring.Ring, interval time.Duration) *HealthProber {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &HealthProber{
		ring:        r,
		interval:    interval,
		maxFailures: defaultMaxFailures,
		checkFunc:   defaultHealthCheck,
		fails:       make(map[string]int),
	}
}

func defaultHealthCheck(ctx context.Context, address string) error {
	return wire.NewClient(address).Health(ctx)
}

// SetCheckFunction overrides how a single shard is probed. Intended for
// tests; production callers rely on the default, which GETs /health.
func (p *HealthProber) SetCheckFunction(f func(ctx context.Context, address string) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkFunc = f
}

// Start launches the background probing goroutine. A no-op if already running.
func (p *HealthProber) Start() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan struct{})

	p.wg.Add(1)
	go p.run(p.stop)
}

func (p *HealthProber) run(stop chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.probeAll()
		case <-stop:
			return
		}
	}
}

func (p *HealthProber) probeAll() {
	for _, desc := range p.ring.GetAllShards() {
		p.probeShard(desc.ShardID, desc.PrimaryAddress)
	}
}

func (p *HealthProber) probeShard(shardID, address string) {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	p.mu.Lock()
	checkFunc := p.checkFunc
	p.mu.Unlock()

	err := checkFunc(ctx, address)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.fails[shardID]++
		log.Printf("router: health check failed for shard %s (attempt %d/%d): %v",
			shardID, p.fails[shardID], p.maxFailures, err)
		if p.fails[shardID] >= p.maxFailures {
			p.ring.SetAvailable(shardID, false)
		}
		return
	}

	if p.fails[shardID] > 0 {
		log.Printf("router: shard %s recovered", shardID)
	}
	p.fails[shardID] = 0
	p.ring.SetAvailable(shardID, true)
}

// Stop signals the background goroutine to exit and blocks until it has.
// A no-op if not running.
func (p *HealthProber) Stop() {
	p.runMu.Lock()
	if !p.running {
		p.runMu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	p.runMu.Unlock()

	p.wg.Wait()
}

// Command kvnode runs one shard of the distributed key-value store: an
// in-memory storage engine durable through an AOF command log and periodic
// RDB snapshots, served over the internal/wire JSON-over-HTTP RPC surface,
// acting as either a master (accepting writes, fanning mutations out to
// replicas) or a replica (accepting only ReplicateCommand calls from its
// master).
//
// Architecture:
//
//	┌──────────────────────────────────────────────┐
//	│                   kvnode                      │
//	├──────────────────────────────────────────────┤
//	│  HTTP API (internal/wire routes):             │
//	│    /health            - liveness              │
//	│    /rpc/get,set,...   - point/TTL operations   │
//	│    /rpc/replicate     - inbound ReplicateCommand│
//	│    /rpc/replicate/stream - UNIMPLEMENTED       │
//	├──────────────────────────────────────────────┤
//	│  Components:                                  │
//	│    storage.Engine      - map + TTL + AOF/RDB  │
//	│    replication.Manager - master fanout only   │
//	│    storage.Snapshotter - periodic RDB dump    │
//	│    service.Facade      - edge validation      │
//	└──────────────────────────────────────────────┘
//
// Persisted state lives in the working directory as kvstore.rdb and
// kvstore.aof (spec §6); startup loads the RDB, replays the AOF tail on
// top of it, then opens the AOF for further appends.
//
// Example usage:
//
//	# Master with two replicas
//	./kvnode --address 0.0.0.0:50051 --replicas 127.0.0.1:50052,127.0.0.1:50053
//
//	# Replica of that master
//	./kvnode --address 0.0.0.0:50052 --replica --master-address 127.0.0.1:50051
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nicolaskjh/distributed-key-value-store/internal/replication"
	"github.com/nicolaskjh/distributed-key-value-store/internal/service"
	"github.com/nicolaskjh/distributed-key-value-store/internal/storage"
	"github.com/nicolaskjh/distributed-key-value-store/internal/wire"
)

// rdbFileName and aofFileName are the fixed persisted-state file names in
// the node's working directory, per spec §6.
const (
	rdbFileName = "kvstore.rdb"
	aofFileName = "kvstore.aof"
)

// config holds the parsed CLI flags, validated by parseConfig.
type config struct {
	address       string
	isReplica     bool
	masterAddress string
	replicas      []string
}

// parseConfig parses and validates the CLI flags of spec.md §6: --master
// (default), --replica, --address, --master-address (required iff
// --replica), --replicas (comma-separated, master only). Returns an error
// for any configuration spec.md rules out, e.g. --replica without
// --master-address, or --replicas combined with --replica.
func parseConfig(args []string) (config, error) {
	fs := flag.NewFlagSet("kvnode", flag.ContinueOnError)
	master := fs.Bool("master", true, "run as master (default; mutually exclusive with --replica)")
	replicaFlag := fs.Bool("replica", false, "run as replica of --master-address")
	address := fs.String("address", "0.0.0.0:50051", "address to listen on")
	masterAddress := fs.String("master-address", "", "master's address (required iff --replica)")
	replicasFlag := fs.String("replicas", "", "comma-separated replica addresses (master only)")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	_ = master // --master is the absence of --replica; kept as a flag for CLI symmetry with --replica.

	cfg := config{address: *address, isReplica: *replicaFlag, masterAddress: *masterAddress}

	if cfg.isReplica {
		if cfg.masterAddress == "" {
			return config{}, errors.New("--master-address is required when --replica is set")
		}
		if *replicasFlag != "" {
			return config{}, errors.New("--replicas is not valid for a replica node")
		}
		return cfg, nil
	}

	if *replicasFlag != "" {
		for _, addr := range strings.Split(*replicasFlag, ",") {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				cfg.replicas = append(cfg.replicas, addr)
			}
		}
	}
	return cfg, nil
}

// node bundles the components one kvnode wires together: the storage
// engine, an optional snapshotter, and the facade HTTP handlers dispatch
// through.
type node struct {
	engine      *storage.Engine
	facade      *service.Facade
	snapshotter *storage.Snapshotter
	repl        *replication.Manager // nil unless this node is a replica
	aof         *storage.FileAOF     // nil if AOF failed to open at startup
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		log.Printf("configuration error: %v", err)
		os.Exit(1)
	}

	n, err := newNode(cfg)
	if err != nil {
		log.Printf("startup error: %v", err)
		os.Exit(1)
	}
	defer n.shutdown()

	mux := http.NewServeMux()
	n.registerRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	role := "MASTER"
	if cfg.isReplica {
		role = "REPLICA"
	}
	log.Printf("kvnode[%s] initialized as %s", cfg.address, role)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("kvnode listening on %s", cfg.address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutdown signal received")
	case err := <-errCh:
		log.Printf("listen: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	log.Println("kvnode stopped")
}

// newNode constructs a node from cfg: it creates the storage engine, loads
// RDB+AOF state from the working directory, opens the AOF for further
// appends (falling back to in-memory-only if that fails, per spec.md §7's
// "AOFPersistence::Enable failure... current behavior is the latter"),
// wires a replication.Manager for a master's --replicas list, and starts
// the background snapshotter (every role runs it — see SPEC_FULL.md's
// server.cpp-grounded note that a replica also snapshots its own state).
func newNode(cfg config) (*node, error) {
	engine := storage.NewEngine()

	if err := engine.LoadOnStartup(rdbFileName, aofFileName); err != nil {
		log.Printf("warning: error replaying %s: %v", aofFileName, err)
	}

	aof, err := storage.OpenAOF(aofFileName)
	if err != nil {
		log.Printf("warning: failed to open AOF at %s, continuing in-memory-only: %v", aofFileName, err)
	} else {
		engine.SetAOF(aof)
	}

	n := &node{engine: engine, facade: service.NewFacade(engine), aof: aof}

	if cfg.isReplica {
		n.repl = replication.NewManager(replication.RoleReplica)
	} else {
		mgr := replication.NewManager(replication.RoleMaster)
		for _, addr := range cfg.replicas {
			mgr.AddReplica(addr)
		}
		engine.SetReplicator(mgr)
	}

	n.snapshotter = storage.NewSnapshotter(engine, rdbFileName, storage.DefaultSnapshotInterval)
	n.snapshotter.Start()

	return n, nil
}

func (n *node) shutdown() {
	n.snapshotter.Stop()
	if n.aof != nil {
		_ = n.aof.Close()
	}
}

// registerRoutes wires internal/wire's fixed routes to n's HTTP handlers.
func (n *node) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc(wire.RouteHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(wire.RouteGet, n.handleGet)
	mux.HandleFunc(wire.RouteSet, n.handleSet)
	mux.HandleFunc(wire.RouteContains, n.handleContains)
	mux.HandleFunc(wire.RouteDelete, n.handleDelete)
	mux.HandleFunc(wire.RouteExpire, n.handleExpire)
	mux.HandleFunc(wire.RouteTTL, n.handleTTL)
	mux.HandleFunc(wire.RouteReplicate, n.handleReplicate)
	mux.HandleFunc(wire.RouteStreamReplication, n.handleStreamReplication)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a service error to an HTTP status: ErrInvalidArgument
// becomes 400, anything else is an internal error (500), per spec.md §7's
// propagation policy ("internal exceptions in mutation paths are fatal to
// the mutation only" — the transport layer, here, turns that into a status
// code rather than crashing the process).
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrInvalidArgument) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (n *node) handleGet(w http.ResponseWriter, r *http.Request) {
	var req wire.GetRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	value, found, err := n.facade.Get(req.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, wire.GetResponse{Found: found, Value: value})
}

func (n *node) handleSet(w http.ResponseWriter, r *http.Request) {
	var req wire.SetRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := n.facade.Set(req.Key, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, wire.SetResponse{Success: true})
}

func (n *node) handleContains(w http.ResponseWriter, r *http.Request) {
	var req wire.ContainsRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	exists, err := n.facade.Contains(req.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, wire.ContainsResponse{Exists: exists})
}

func (n *node) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req wire.DeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	found, err := n.facade.Delete(req.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, wire.DeleteResponse{Success: true, Found: found})
}

func (n *node) handleExpire(w http.ResponseWriter, r *http.Request) {
	var req wire.ExpireRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	success, err := n.facade.Expire(req.Key, req.Seconds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, wire.ExpireResponse{Success: success})
}

func (n *node) handleTTL(w http.ResponseWriter, r *http.Request) {
	var req wire.TTLRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	seconds, err := n.facade.TTL(req.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, wire.TTLResponse{Seconds: seconds})
}

// handleReplicate applies an inbound ReplicateCommand and, when this node
// is a replica, records the sequence id for introspection via
// replication.Manager.LastAppliedSequence.
func (n *node) handleReplicate(w http.ResponseWriter, r *http.Request) {
	var cmd wire.ReplicationCommand
	if err := decodeJSON(r, &cmd); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	resp, err := n.facade.ReplicateCommand(cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	if n.repl != nil {
		n.repl.RecordApplied(cmd.SequenceID)
	}
	writeJSON(w, resp)
}

func (n *node) handleStreamReplication(w http.ResponseWriter, r *http.Request) {
	err := n.facade.StreamReplication(r.Context(), 0, func(wire.ReplicationCommand) error { return nil })
	http.Error(w, fmt.Sprintf("%v", err), http.StatusNotImplemented)
}

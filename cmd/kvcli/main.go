// Command kvcli is a minimal demo client for the distributed key-value
// store: it builds a hash ring from a comma-separated shard address list,
// routes one operation to the shard that owns the given key, and prints
// the result. Per spec.md §1 it "carries no design subtlety" — it is kept
// to the same thinness as the original project's client.cpp, which issues
// a handful of hardcoded RPCs and prints their results.
//
// Example usage:
//
//	kvcli -shards 127.0.0.1:50051,127.0.0.1:50052 -cmd set -key name -value Alice
//	kvcli -shards 127.0.0.1:50051,127.0.0.1:50052 -cmd get -key name
//	kvcli -shards 127.0.0.1:50051,127.0.0.1:50052 -cmd expire -key name -seconds 30
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/nicolaskjh/distributed-key-value-store/internal/ring"
	"github.com/nicolaskjh/distributed-key-value-store/internal/router"
)

func main() {
	shardsFlag := flag.String("shards", "", "comma-separated shard addresses (required)")
	cmd := flag.String("cmd", "", "one of get|set|contains|delete|expire|ttl (required)")
	key := flag.String("key", "", "key to operate on (required)")
	value := flag.String("value", "", "value for set")
	seconds := flag.Int("seconds", 0, "TTL seconds for expire")
	flag.Parse()

	if *shardsFlag == "" || *cmd == "" || *key == "" {
		log.Fatal("usage: kvcli -shards host:port,... -cmd get|set|contains|delete|expire|ttl -key KEY [-value VALUE] [-seconds N]")
	}

	r := ring.NewRing(ring.DefaultVirtualNodes)
	for i, addr := range strings.Split(*shardsFlag, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		shardID := "shard-" + strconv.Itoa(i)
		if err := r.AddShard(shardID, addr); err != nil {
			log.Fatalf("AddShard(%s, %s): %v", shardID, addr, err)
		}
	}
	if r.IsEmpty() {
		log.Fatal("no shards parsed from -shards")
	}

	rt := router.NewRouter(r)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch *cmd {
	case "set":
		ok := rt.Set(ctx, *key, *value)
		fmt.Printf("SET %s=%s -> %v\n", *key, *value, ok)
	case "get":
		v, found := rt.Get(ctx, *key)
		if found {
			fmt.Printf("GET %s -> %s\n", *key, v)
		} else {
			fmt.Printf("GET %s -> NOT FOUND\n", *key)
		}
	case "contains":
		fmt.Printf("CONTAINS %s -> %v\n", *key, rt.Contains(ctx, *key))
	case "delete":
		found := rt.Delete(ctx, *key)
		if found {
			fmt.Printf("DELETE %s -> deleted\n", *key)
		} else {
			fmt.Printf("DELETE %s -> not found\n", *key)
		}
	case "expire":
		if *seconds <= 0 {
			log.Fatal("-seconds must be positive for expire")
		}
		ok := rt.Expire(ctx, *key, *seconds)
		fmt.Printf("EXPIRE %s %d -> %v\n", *key, *seconds, ok)
	case "ttl":
		fmt.Printf("TTL %s -> %d\n", *key, rt.TTL(ctx, *key))
	default:
		log.Fatalf("unknown -cmd %q", *cmd)
	}

	stats := rt.Stats()
	fmt.Printf("stats: total=%d successful=%d failed=%d\n", stats.Total, stats.Successful, stats.Failed)
}

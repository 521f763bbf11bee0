package wire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// defaultTimeout bounds every RPC issued by a Client, matching the teacher's
// internal/cluster package's shared http.Client{Timeout: 5 * time.Second}.
const defaultTimeout = 5 * time.Second

// Client is a durable, pooled transport entry bound to one shard's address:
// a thin wrapper over *http.Client that knows how to marshal each of the
// six point/TTL RPCs plus ReplicateCommand to this module's fixed routes.
// A Client is safe for concurrent use; http.Client already pools and
// reuses TCP connections internally.
type Client struct {
	Address    string
	httpClient *http.Client
}

// NewClient creates a Client bound to address (e.g. "127.0.0.1:50051" or a
// full "http://host:port" URL; the scheme is added if missing).
func NewClient(address string) *Client {
	return &Client{
		Address:    address,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) url(path string) string {
	addr := c.Address
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/") + path
}

// do posts body as JSON to path and decodes the JSON response into out.
// Modeled directly on internal/cluster.PostJSON from the teacher repo.
func (c *Client) do(ctx context.Context, path string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("wire: %s %s: status %d", http.MethodPost, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Get issues the Get RPC.
func (c *Client) Get(ctx context.Context, key string) (GetResponse, error) {
	var resp GetResponse
	err := c.do(ctx, RouteGet, GetRequest{Key: key}, &resp)
	return resp, err
}

// Set issues the Set RPC.
func (c *Client) Set(ctx context.Context, key, value string) (SetResponse, error) {
	var resp SetResponse
	err := c.do(ctx, RouteSet, SetRequest{Key: key, Value: value}, &resp)
	return resp, err
}

// Contains issues the Contains RPC.
func (c *Client) Contains(ctx context.Context, key string) (ContainsResponse, error) {
	var resp ContainsResponse
	err := c.do(ctx, RouteContains, ContainsRequest{Key: key}, &resp)
	return resp, err
}

// Delete issues the Delete RPC.
func (c *Client) Delete(ctx context.Context, key string) (DeleteResponse, error) {
	var resp DeleteResponse
	err := c.do(ctx, RouteDelete, DeleteRequest{Key: key}, &resp)
	return resp, err
}

// Expire issues the Expire RPC.
func (c *Client) Expire(ctx context.Context, key string, seconds int) (ExpireResponse, error) {
	var resp ExpireResponse
	err := c.do(ctx, RouteExpire, ExpireRequest{Key: key, Seconds: seconds}, &resp)
	return resp, err
}

// TTL issues the TTL RPC.
func (c *Client) TTL(ctx context.Context, key string) (TTLResponse, error) {
	var resp TTLResponse
	err := c.do(ctx, RouteTTL, TTLRequest{Key: key}, &resp)
	return resp, err
}

// ReplicateCommand issues the ReplicateCommand RPC, used by the replication
// manager on a master to push one mutation to one replica.
func (c *Client) ReplicateCommand(ctx context.Context, cmd ReplicationCommand) (ReplicationResponse, error) {
	var resp ReplicationResponse
	err := c.do(ctx, RouteReplicate, cmd, &resp)
	return resp, err
}

// Health issues a GET against RouteHealth and returns an error unless the
// node answers 200 OK. Used only by the router's optional health prober;
// no RPC in the core KeyValueStore surface depends on it.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(RouteHealth), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wire: health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wire: health check returned status %d", resp.StatusCode)
	}
	return nil
}

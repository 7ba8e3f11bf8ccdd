// Copyright © 2025 MCP Bridge Authors, All Rights reserved

// Package cache memoizes successful proxy responses for a bounded time, keyed
// by the request's method and a canonical serialization of its parameters.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/mcp-bridge/mcp-proxy-shim/pkg/protocol"
)

// mutationMarkers flags tool names whose invocations mutate state (files or a
// knowledge/memory graph) and must never be served from cache. Substring
// matching is kept for compatibility with the deployed behavior; Cacheable is
// the single place to swap in an explicit allow/deny list later.
var mutationMarkers = []string{
	"write",
	"edit",
	"create",
	"move",
	"delete",
	"add",
	"remove",
}

// Cacheable reports whether a request may be served from or stored into the
// cache. Only tool invocations carrying a mutation marker are excluded.
func Cacheable(req *protocol.Request) bool {
	name, _, ok := req.ToolCall()
	if !ok {
		return true
	}
	lower := strings.ToLower(name)
	for _, marker := range mutationMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

// Key derives the deterministic cache key for a request, or ok=false when the
// request is uncacheable. Structurally equal parameter sets yield the same key:
// params were decoded into generic maps, and encoding/json marshals map keys
// in sorted order.
func Key(req *protocol.Request) (string, bool) {
	if !Cacheable(req) {
		return "", false
	}
	params, err := json.Marshal(req.Params)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(append([]byte(req.Method+"\n"), params...))
	return hex.EncodeToString(sum[:]), true
}

// Cache is a TTL-bounded response store. Expiry is lazy: an expired entry is
// simply not returned, no background sweep runs.
type Cache struct {
	enabled bool
	store   *gocache.Cache
}

// New constructs a Cache. When disabled, Get always misses and Put is a no-op.
func New(enabled bool, ttl time.Duration) *Cache {
	return &Cache{
		enabled: enabled,
		// Cleanup interval 0 disables the janitor; expiry stays read-driven.
		store: gocache.New(ttl, 0),
	}
}

// Get returns a copy of the stored response with its id replaced by the
// querying request's id. Entries are shared across requests whose method and
// params match but whose ids differ.
func (c *Cache) Get(key string, id any) (*protocol.Response, bool) {
	if !c.enabled {
		return nil, false
	}
	val, found := c.store.Get(key)
	if !found {
		return nil, false
	}
	stored, ok := val.(*protocol.Response)
	if !ok {
		return nil, false
	}
	resp := *stored
	resp.ID = id
	return &resp, true
}

// Put stores a successful response under key. Error responses are never
// cached.
func (c *Cache) Put(key string, resp *protocol.Response) {
	if !c.enabled || resp == nil || resp.Error != nil {
		return
	}
	clone := *resp
	c.store.SetDefault(key, &clone)
}

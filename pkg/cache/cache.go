package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
)

// Cacher defines the caching interface. store.SQLiteStore implements it.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// Key builds a namespaced cache key from arbitrary parts. Parts are hashed
// so long inputs (embedding texts) stay within a sane key length.
func Key(namespace string, parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return namespace + ":" + hex.EncodeToString(h[:])
}

// GetJSON reads and decodes a cached value. Corrupt entries count as misses.
func GetJSON[T any](ctx context.Context, c Cacher, key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	data, ok := c.GetCache(ctx, key)
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		slog.Debug("cache entry undecodable", "key", key, "error", err)
		return zero, false
	}
	return v, true
}

// SetJSON encodes and stores v.
func SetJSON(ctx context.Context, c Cacher, key string, v any) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.SetCache(ctx, key, data)
}

// Memory is an in-process Cacher.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (c *Memory) GetCache(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *Memory) SetCache(_ context.Context, key string, val []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = append([]byte(nil), val...)
	return nil
}

// Len returns the number of entries.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

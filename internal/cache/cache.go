// Package cache reuses past step results for deterministic work. Only
// agent kinds on the configured allow-list and the pure transformers
// are eligible; anything real-time or stateful bypasses the cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bytedance/sonic"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/store"
)

const keyPrefix = "wfcache:"

// cacheKeyPayload is the canonical content identity of a step request.
type cacheKeyPayload struct {
	Kind   string         `json:"kind"`
	Input  map[string]any `json:"input"`
	Config map[string]any `json:"config"`
}

// Key derives the cache key for a step request. The input must already
// be sanitized; ConfigStd sorts map keys so logically equal requests
// hash identically.
func Key(kind string, input, config map[string]any) (string, error) {
	raw, err := sonic.ConfigStd.Marshal(cacheKeyPayload{
		Kind:   kind,
		Input:  input,
		Config: config,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return keyPrefix + hex.EncodeToString(sum[:]), nil
}

// ResultCache stores step outputs in a KeyedStore under content hashes.
type ResultCache struct {
	store           store.KeyedStore
	ttl             time.Duration
	cacheableAgents map[string]struct{}
}

// New creates a result cache. cacheableAgents is the allow-list of
// agent kinds whose results may be reused.
func New(s store.KeyedStore, ttl time.Duration, cacheableAgents []string) *ResultCache {
	allowed := make(map[string]struct{}, len(cacheableAgents))
	for _, kind := range cacheableAgents {
		allowed[kind] = struct{}{}
	}
	return &ResultCache{store: s, ttl: ttl, cacheableAgents: allowed}
}

// CacheableAgent reports whether results for the agent kind may be
// cached.
func (c *ResultCache) CacheableAgent(kind string) bool {
	_, ok := c.cacheableAgents[kind]
	return ok
}

// Get returns the cached output for key, if present.
func (c *ResultCache) Get(ctx context.Context, key string) (map[string]any, bool, error) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var out map[string]any
	if err := sonic.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Put stores output under key with the configured TTL.
func (c *ResultCache) Put(ctx context.Context, key string, output map[string]any) error {
	raw, err := sonic.Marshal(output)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, string(raw), c.ttl)
}

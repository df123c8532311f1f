package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/abdhe/specdecode-harness/pkg/engine"
)

// BaselineCache stores baseline token-id sequences keyed by a digest of the
// full generation input. Only exact-key matches are returned — the harness
// compares token sequences element-for-element, so approximate reuse would
// defeat its purpose.
type BaselineCache struct {
	store Store
}

// NewBaselineCache wraps a Store.
func NewBaselineCache(store Store) *BaselineCache {
	return &BaselineCache{store: store}
}

// keyInput is the canonical form hashed into a cache key. Config must carry
// everything that influences baseline output.
type keyInput struct {
	Config  engine.Config           `json:"config"`
	Prompts []string                `json:"prompts"`
	Params  []engine.SamplingParams `json:"params"`
}

// Key derives the cache key for one baseline run. Params must already be
// resolved to one entry per prompt.
func Key(cfg engine.Config, prompts []string, params []engine.SamplingParams) (string, error) {
	data, err := json.Marshal(keyInput{Config: cfg, Prompts: prompts, Params: params})
	if err != nil {
		return "", fmt.Errorf("cache: key: %w", err)
	}
	sum := sha256.Sum256(data)
	return "baseline:" + hex.EncodeToString(sum[:]), nil
}

// cachedRun is the stored representation of one baseline run.
type cachedRun struct {
	TokenIDs [][]int  `json:"token_ids"`
	Tokens   []string `json:"tokens"`
}

// Get retrieves a cached baseline run. The third return is false on a miss.
func (c *BaselineCache) Get(ctx context.Context, key string) ([][]int, []string, bool, error) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, nil, false, err
	}

	var run cachedRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, nil, false, fmt.Errorf("cache: unmarshal: %w", err)
	}
	return run.TokenIDs, run.Tokens, true, nil
}

// Put stores a baseline run.
func (c *BaselineCache) Put(ctx context.Context, key string, tokenIDs [][]int, tokens []string) error {
	data, err := json.Marshal(cachedRun{TokenIDs: tokenIDs, Tokens: tokens})
	if err != nil {
		return fmt.Errorf("cache: marshal: %w", err)
	}
	return c.store.Set(ctx, key, data)
}

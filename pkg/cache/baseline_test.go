package cache

import (
	"context"
	"reflect"
	"testing"

	"github.com/abdhe/specdecode-harness/pkg/engine"
)

type memStore struct {
	m map[string][]byte
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *memStore) Set(ctx context.Context, key string, val []byte) error {
	s.m[key] = val
	return nil
}

func TestKeyIsStable(t *testing.T) {
	cfg := engine.Config{Model: "facebook/opt-125m", Seed: 3}
	prompts := []string{"a", "b"}
	params := []engine.SamplingParams{{MaxTokens: 5}, {MaxTokens: 5}}

	k1, err := Key(cfg, prompts, params)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	k2, err := Key(cfg, prompts, params)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("same input produced different keys: %s vs %s", k1, k2)
	}
}

func TestKeyCoversEveryInput(t *testing.T) {
	cfg := engine.Config{Model: "facebook/opt-125m"}
	prompts := []string{"a"}
	params := []engine.SamplingParams{{MaxTokens: 5}}
	base, _ := Key(cfg, prompts, params)

	if k, _ := Key(engine.Config{Model: "facebook/opt-350m"}, prompts, params); k == base {
		t.Fatal("model change must change the key")
	}
	if k, _ := Key(cfg, []string{"b"}, params); k == base {
		t.Fatal("prompt change must change the key")
	}
	if k, _ := Key(cfg, prompts, []engine.SamplingParams{{MaxTokens: 6}}); k == base {
		t.Fatal("params change must change the key")
	}
	seed := int64(1)
	if k, _ := Key(cfg, prompts, []engine.SamplingParams{{MaxTokens: 5, Seed: &seed}}); k == base {
		t.Fatal("seed change must change the key")
	}
}

func TestBaselineCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	bc := NewBaselineCache(&memStore{m: make(map[string][]byte)})

	key := "baseline:test"
	ids := [][]int{{1, 2, 3}, {4, 5}}
	tokens := []string{" tok1 tok2 tok3", " tok4 tok5"}

	if _, _, hit, err := bc.Get(ctx, key); err != nil || hit {
		t.Fatalf("empty cache: hit=%v err=%v", hit, err)
	}

	if err := bc.Put(ctx, key, ids, tokens); err != nil {
		t.Fatalf("put: %v", err)
	}

	gotIDs, gotTokens, hit, err := bc.Get(ctx, key)
	if err != nil || !hit {
		t.Fatalf("get after put: hit=%v err=%v", hit, err)
	}
	if !reflect.DeepEqual(gotIDs, ids) {
		t.Fatalf("token ids %v, want %v", gotIDs, ids)
	}
	if !reflect.DeepEqual(gotTokens, tokens) {
		t.Fatalf("tokens %v, want %v", gotTokens, tokens)
	}
}

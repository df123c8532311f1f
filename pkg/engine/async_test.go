package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// scriptStreamer replays canned per-prompt results as incremental streams
// and records every request it sees.
type scriptStreamer struct {
	requests []string
	ids      map[string]bool
	closed   bool
}

func (s *scriptStreamer) GenerateStream(ctx context.Context, requestID, prompt string, p SamplingParams) (<-chan Result, error) {
	s.requests = append(s.requests, prompt)
	if s.ids == nil {
		s.ids = make(map[string]bool)
	}
	if s.ids[requestID] {
		return nil, fmt.Errorf("duplicate request id %s", requestID)
	}
	s.ids[requestID] = true

	out := make(chan Result, 3)
	// Partial result first, complete result last.
	out <- Result{Prompt: prompt, TokenIDs: []int{10}}
	out <- Result{Prompt: prompt, TokenIDs: []int{10, 11}}
	out <- Result{Prompt: prompt, TokenIDs: []int{10, 11, 12}, Text: prompt + " done"}
	close(out)
	return out, nil
}

func (s *scriptStreamer) Close() error {
	s.closed = true
	return nil
}

func TestAsyncEngineKeepsFinalResultOnly(t *testing.T) {
	a := NewAsyncEngine(&scriptStreamer{})
	results, err := a.Generate(context.Background(), []string{"p0"}, SharedParams(SamplingParams{MaxTokens: 3}))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("want 1 result, got %d", len(results))
	}
	if got := results[0].TokenIDs; len(got) != 3 || got[2] != 12 {
		t.Fatalf("want final result [10 11 12], got %v", got)
	}
	if results[0].Text != "p0 done" {
		t.Fatalf("final text missing: %q", results[0].Text)
	}
}

func TestAsyncEnginePreservesPromptOrder(t *testing.T) {
	s := &scriptStreamer{}
	a := NewAsyncEngine(s)

	prompts := []string{"a", "b", "c", "d", "e"}
	results, err := a.Generate(context.Background(), prompts, SharedParams(SamplingParams{MaxTokens: 3}))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(results) != len(prompts) {
		t.Fatalf("want %d results, got %d", len(prompts), len(results))
	}
	for i, r := range results {
		if r.Prompt != prompts[i] {
			t.Fatalf("results[%d].Prompt = %q, want %q", i, r.Prompt, prompts[i])
		}
	}
	// Requests were submitted sequentially in input order, each with a
	// fresh unique id.
	for i, p := range s.requests {
		if p != prompts[i] {
			t.Fatalf("request %d was %q, want %q", i, p, prompts[i])
		}
	}
	if len(s.ids) != len(prompts) {
		t.Fatalf("want %d distinct request ids, got %d", len(prompts), len(s.ids))
	}
}

func TestAsyncEngineEmptyPrompts(t *testing.T) {
	s := &scriptStreamer{}
	a := NewAsyncEngine(s)
	_, err := a.Generate(context.Background(), nil, SharedParams(SamplingParams{MaxTokens: 3}))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
	if len(s.requests) != 0 {
		t.Fatal("no request may be submitted when validation fails")
	}
}

func TestAsyncEngineParamsMismatchBeforeGeneration(t *testing.T) {
	s := &scriptStreamer{}
	a := NewAsyncEngine(s)
	params := PerPromptParams([]SamplingParams{{MaxTokens: 3}, {MaxTokens: 3}})
	_, err := a.Generate(context.Background(), []string{"a", "b", "c"}, params)
	if !errors.Is(err, ErrConfigurationMismatch) {
		t.Fatalf("want ErrConfigurationMismatch, got %v", err)
	}
	if len(s.requests) != 0 {
		t.Fatal("mismatch must be reported before any generation occurs")
	}
}

func TestAsyncEngineCloseDelegates(t *testing.T) {
	s := &scriptStreamer{}
	a := NewAsyncEngine(s)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !s.closed {
		t.Fatal("underlying streamer not closed")
	}
}

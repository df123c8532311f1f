package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AsyncEngine adapts a per-request streaming engine to the batch Generate
// contract. Each prompt is submitted as an independent logical request
// tagged with a fresh unique ID; the facade drains the request's result
// stream and keeps only the final (complete) result. Requests are
// submitted and awaited sequentially — the underlying engine may still
// batch internally.
type AsyncEngine struct {
	s Streamer
}

// NewAsyncEngine wraps a streaming engine in the batch facade.
func NewAsyncEngine(s Streamer) *AsyncEngine {
	return &AsyncEngine{s: s}
}

// Generate implements Engine. Result order matches input prompt order.
func (a *AsyncEngine) Generate(ctx context.Context, prompts []string, params ParamSet) ([]Result, error) {
	resolved, err := params.Resolve(len(prompts))
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(prompts))
	for i, prompt := range prompts {
		res, err := a.await(ctx, prompt, resolved[i])
		if err != nil {
			return nil, fmt.Errorf("async engine: request %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// await submits one request and consumes its stream to exhaustion.
func (a *AsyncEngine) await(ctx context.Context, prompt string, p SamplingParams) (Result, error) {
	requestID := uuid.NewString()

	stream, err := a.s.GenerateStream(ctx, requestID, prompt, p)
	if err != nil {
		return Result{}, err
	}

	var final *Result
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case res, ok := <-stream:
			if !ok {
				if final == nil {
					return Result{}, fmt.Errorf("stream %s closed without a result", requestID)
				}
				return *final, nil
			}
			final = &res
		}
	}
}

// Close releases the underlying streaming engine.
func (a *AsyncEngine) Close() error {
	return a.s.Close()
}

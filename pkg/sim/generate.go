package sim

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"

	"github.com/abdhe/specdecode-harness/pkg/engine"
)

const (
	vocabSize    = 1024
	eosTokenID   = 2
	firstTokenID = 3 // ids below this are reserved (pad, bos, eos)
	topKLogprobs = 5
)

// Generate implements engine.Engine.
func (e *Engine) Generate(ctx context.Context, prompts []string, params engine.ParamSet) ([]engine.Result, error) {
	resolved, err := params.Resolve(len(prompts))
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("sim: generate on closed engine")
	}

	results := make([]engine.Result, len(prompts))
	for i, prompt := range prompts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		results[i] = e.generateOne(prompt, resolved[i])
	}

	e.recordAcceptance()
	return results, nil
}

// GenerateStream implements engine.Streamer. The stream emits progressively
// complete results; the final element carries the full sequence.
func (e *Engine) GenerateStream(ctx context.Context, requestID, prompt string, p engine.SamplingParams) (<-chan engine.Result, error) {
	if prompt == "" {
		return nil, engine.ErrInvalidArgument
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("sim: stream %s on closed engine", requestID)
	}

	full := e.generateOne(prompt, p)
	e.recordAcceptance()

	out := make(chan engine.Result, len(full.TokenIDs))
	go func() {
		defer close(out)
		for n := 1; n <= len(full.TokenIDs); n++ {
			partial := engine.Result{
				Prompt:   full.Prompt,
				TokenIDs: full.TokenIDs[:n],
				Text:     decodeTokens(full.TokenIDs[:n]),
			}
			if n == len(full.TokenIDs) {
				partial = full
			}
			select {
			case <-ctx.Done():
				return
			case out <- partial:
			}
		}
	}()
	return out, nil
}

// generateOne produces the token sequence for a single prompt. Output
// depends only on (model, prompt, params).
func (e *Engine) generateOne(prompt string, p engine.SamplingParams) engine.Result {
	state := promptState(e.cfg.Model, prompt)
	eosAt := 3 + int(state%13)

	var draw func(pos int) int
	switch {
	case p.Temperature == 0:
		// Greedy: highest-probability token is a pure hash of the chain.
		draw = func(pos int) int { return tokenFromState(mix(state, uint64(pos))) }
	case p.Seeded():
		rng := rand.New(rand.NewSource(int64(state) ^ *p.Seed ^ int64(math.Float64bits(p.Temperature))))
		draw = func(int) int { return firstTokenID + rng.Intn(vocabSize-firstTokenID) }
	default:
		rng := rand.New(rand.NewSource(rand.Int63()))
		draw = func(int) int { return firstTokenID + rng.Intn(vocabSize-firstTokenID) }
	}

	var tokenIDs []int
	var logprobs []map[int]float64
	for pos := 0; pos < p.MaxTokens; pos++ {
		if !p.IgnoreEOS && pos == eosAt {
			tokenIDs = append(tokenIDs, eosTokenID)
			logprobs = append(logprobs, positionLogprobs(eosTokenID))
			break
		}
		tok := draw(pos)
		tokenIDs = append(tokenIDs, tok)
		logprobs = append(logprobs, positionLogprobs(tok))
	}

	return engine.Result{
		Prompt:   prompt,
		TokenIDs: tokenIDs,
		Text:     decodeTokens(tokenIDs),
		Logprobs: logprobs,
	}
}

// promptState seeds the deterministic token chain for one (model, prompt)
// pair.
func promptState(model, prompt string) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s", model, prompt)
	return h.Sum64()
}

// mix is a splitmix64 step over state and position.
func mix(state, pos uint64) uint64 {
	z := state + pos*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// tokenFromState maps a chain state into the non-reserved vocabulary range.
func tokenFromState(s uint64) int {
	return firstTokenID + int(s%(vocabSize-firstTokenID))
}

// positionLogprobs fabricates a top-k candidate map with the chosen token
// ranked first.
func positionLogprobs(chosen int) map[int]float64 {
	lp := make(map[int]float64, topKLogprobs)
	lp[chosen] = -0.05
	for rank := 1; rank < topKLogprobs; rank++ {
		alt := firstTokenID + (chosen-firstTokenID+rank)%(vocabSize-firstTokenID)
		lp[alt] = -0.05 - float64(rank)
	}
	return lp
}

// decodeTokens renders the pseudo-tokenizer text for a sequence.
func decodeTokens(ids []int) string {
	var b strings.Builder
	for _, id := range ids {
		if id == eosTokenID {
			b.WriteString("</s>")
			continue
		}
		fmt.Fprintf(&b, " tok%d", id)
	}
	return b.String()
}

package engine

import "fmt"

// SamplingParams holds the sampling configuration for a single request.
type SamplingParams struct {
	// MaxTokens caps the number of generated tokens. Must be positive.
	MaxTokens int `json:"max_tokens"`

	// IgnoreEOS forces generation past the end-of-sequence token, so the
	// output is always exactly MaxTokens long.
	IgnoreEOS bool `json:"ignore_eos"`

	// Temperature of 0 selects greedy (deterministic) decoding.
	Temperature float64 `json:"temperature"`

	// Seed pins the sampling draw for temperature > 0. Nil means unseeded.
	Seed *int64 `json:"seed,omitempty"`
}

// Validate checks field-level constraints.
func (p SamplingParams) Validate() error {
	if p.MaxTokens <= 0 {
		return fmt.Errorf("engine: max_tokens must be positive, got %d", p.MaxTokens)
	}
	if p.Temperature < 0 {
		return fmt.Errorf("engine: temperature must be non-negative, got %f", p.Temperature)
	}
	return nil
}

// Seeded reports whether the draw is pinned by a seed.
func (p SamplingParams) Seeded() bool { return p.Seed != nil }

// ParamSet carries either one shared sampling configuration for a whole
// batch, or one configuration per prompt. The two cases mirror the
// engine contract, where sampling params may be a single value or a
// sequence whose length must equal the number of prompts.
type ParamSet struct {
	shared *SamplingParams
	per    []SamplingParams
}

// SharedParams builds a ParamSet applying p to every prompt in the batch.
func SharedParams(p SamplingParams) ParamSet {
	return ParamSet{shared: &p}
}

// PerPromptParams builds a ParamSet with one configuration per prompt.
func PerPromptParams(ps []SamplingParams) ParamSet {
	return ParamSet{per: ps}
}

// Resolve expands the set into exactly one SamplingParams per prompt.
// A per-prompt set whose length differs from numPrompts fails with
// ErrConfigurationMismatch; an empty prompt list fails with
// ErrInvalidArgument. Engines call this before starting any generation.
func (ps ParamSet) Resolve(numPrompts int) ([]SamplingParams, error) {
	if numPrompts == 0 {
		return nil, ErrInvalidArgument
	}

	var out []SamplingParams
	switch {
	case ps.shared != nil:
		out = make([]SamplingParams, numPrompts)
		for i := range out {
			out[i] = *ps.shared
		}
	case ps.per != nil:
		if len(ps.per) != numPrompts {
			return nil, fmt.Errorf("%w: %d prompts, %d params",
				ErrConfigurationMismatch, numPrompts, len(ps.per))
		}
		out = append([]SamplingParams(nil), ps.per...)
	default:
		// No params supplied: fall back to defaults.
		out = make([]SamplingParams, numPrompts)
		for i := range out {
			out[i] = SamplingParams{MaxTokens: 16}
		}
	}

	for i, p := range out {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("params[%d]: %w", i, err)
		}
	}
	return out, nil
}

// Result is the outcome of generation for one prompt.
type Result struct {
	Prompt string

	// TokenIDs is the ordered sequence of generated token identifiers.
	TokenIDs []int

	// Text is the decoded form of TokenIDs.
	Text string

	// Logprobs maps, per generated position, candidate token id to
	// log-probability for the top-k candidates. Nil when the engine does
	// not report logprobs.
	Logprobs []map[int]float64
}

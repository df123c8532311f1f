// Package engine defines the inference-engine capability contract consumed
// by the verification harness, along with shared request/result types.
//
// The engine itself (scheduling, KV-cache management, model execution) is an
// external collaborator; the harness only depends on the surface below.
package engine

import "context"

// Engine is the generation surface every backend must implement.
// Generate is order-preserving: the i-th result corresponds to the
// i-th prompt.
type Engine interface {
	// Generate runs all prompts to completion and returns one result per
	// prompt, in input order. It validates the prompt/params pairing
	// before any generation starts.
	Generate(ctx context.Context, prompts []string, params ParamSet) ([]Result, error)

	// Close releases all device and process resources held by the engine.
	// It must be called exactly once, and must run even when the caller
	// fails mid-test.
	Close() error
}

// Factory constructs an engine from a configuration. Construction errors
// wrap ErrEngineConstruction.
type Factory func(cfg Config) (Engine, error)

// MetricDraftAcceptanceRate is the gauge name under which an engine reports
// the fraction of speculatively-proposed draft tokens accepted by the
// target model.
const MetricDraftAcceptanceRate = "spec_decode_draft_acceptance_rate"

// MetricsSource is an optional engine capability: a point-in-time snapshot
// of the engine's metrics registry. Engines constructed with stats logging
// disabled do not implement it (or gather an empty snapshot).
type MetricsSource interface {
	MetricsSnapshot() map[string]float64
}

// ProposerReporter is an optional engine capability reporting which
// speculative proposer the engine actually instantiated (e.g. "ngram",
// "draft_model"). Used to verify that prompt-lookup configs really select
// the ngram proposer.
type ProposerReporter interface {
	ProposerKind() string
}

// Streamer is the per-request streaming surface of an engine. Each request
// is identified by a caller-supplied unique ID; the returned channel emits
// progressively complete results and is closed after the final one.
type Streamer interface {
	GenerateStream(ctx context.Context, requestID, prompt string, params SamplingParams) (<-chan Result, error)
	Close() error
}

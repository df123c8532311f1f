package engine

import "fmt"

// Config is the flat engine construction configuration. All backend
// selection is explicit here — notably DistributedExecutorBackend, which
// replaces the environment flags the engine historically consulted. Fields
// are set once at construction and never mutated afterwards.
type Config struct {
	// Model is the target model identifier. Required.
	Model string `json:"model"`

	// Tokenizer overrides the tokenizer identifier; empty means the
	// model's own tokenizer.
	Tokenizer string `json:"tokenizer,omitempty"`

	// Seed is the engine-level determinism seed.
	Seed int64 `json:"seed"`

	// TensorParallelSize is the number of accelerators a single model's
	// computation is split across.
	TensorParallelSize int `json:"tensor_parallel_size,omitempty"`

	// DistributedExecutorBackend names the worker-communication mode
	// ("ray", "mp", ...). Empty selects the engine default.
	DistributedExecutorBackend string `json:"distributed_executor_backend,omitempty"`

	GPUMemoryUtilization float64 `json:"gpu_memory_utilization,omitempty"`
	SwapSpaceGiB         int     `json:"swap_space,omitempty"`
	EnforceEager         bool    `json:"enforce_eager,omitempty"`
	MaxSeqLenToCapture   int     `json:"max_seq_len_to_capture,omitempty"`

	// Chunked prefill settings.
	EnableChunkedPrefill bool `json:"enable_chunked_prefill,omitempty"`
	MaxNumBatchedTokens  int  `json:"max_num_batched_tokens,omitempty"`
	MaxNumSeqs           int  `json:"max_num_seqs,omitempty"`

	// Speculative decoding settings. Empty SpeculativeModel disables
	// speculation (the baseline configuration).
	SpeculativeModel     string `json:"speculative_model,omitempty"`
	NumSpeculativeTokens int    `json:"num_speculative_tokens,omitempty"`
	NgramPromptLookupMax int    `json:"ngram_prompt_lookup_max,omitempty"`

	// DisableLogStats turns off the engine's metrics registry; the
	// acceptance-rate gauge is then unavailable.
	DisableLogStats bool `json:"disable_log_stats,omitempty"`

	// UseAsync selects the per-request streaming executor instead of the
	// blocking call-per-batch one. The harness wraps such engines in the
	// async facade.
	UseAsync bool `json:"use_async,omitempty"`
}

// Validate checks construction-time constraints.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrEngineConstruction)
	}
	if c.NumSpeculativeTokens < 0 {
		return fmt.Errorf("%w: num_speculative_tokens must be non-negative", ErrEngineConstruction)
	}
	return nil
}

// Speculative reports whether a draft model is configured.
func (c Config) Speculative() bool { return c.SpeculativeModel != "" }

// SameDraftTargetModel reports whether the draft and target model are
// identical. In that configuration every proposed token must be
// verified-and-accepted, so the acceptance rate is expected to reach 1.0.
func (c Config) SameDraftTargetModel() bool {
	return c.SpeculativeModel != "" && c.SpeculativeModel == c.Model
}

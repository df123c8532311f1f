package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/abdhe/specdecode-harness/pkg/engine"
	"github.com/abdhe/specdecode-harness/pkg/metrics"
)

// AcceptanceUnavailable is the sentinel acceptance rate reported when the
// engine exposes no metrics registry (stats logging disabled) or the gauge
// is absent from the snapshot.
const AcceptanceUnavailable = -1.0

// BatchOutput collects one engine's generation pass over a prompt batch.
type BatchOutput struct {
	Tokens         []string
	TokenIDs       [][]int
	AcceptanceRate float64
}

// AcceptanceRate reads the draft acceptance rate from the engine's metrics
// snapshot, if it has one. This is a point-in-time read of whatever the
// engine last reported, not an aggregate recomputed by the harness.
func AcceptanceRate(e engine.Engine) float64 {
	ms, ok := e.(engine.MetricsSource)
	if !ok {
		return AcceptanceUnavailable
	}
	if v, ok := ms.MetricsSnapshot()[engine.MetricDraftAcceptanceRate]; ok {
		return v
	}
	return AcceptanceUnavailable
}

// CollectOutputs acquires an engine for cfg, runs one generation pass, and
// returns the decoded tokens, token-id sequences, and the engine's
// acceptance rate (sentinel -1.0 when unavailable). role labels the
// duration metric ("baseline" or "test").
func (p Provisioner) CollectOutputs(ctx context.Context, cfg engine.Config, role string, prompts []string, params engine.ParamSet) (BatchOutput, error) {
	out := BatchOutput{AcceptanceRate: AcceptanceUnavailable}

	err := p.With(ctx, cfg, func(e engine.Engine) error {
		if err := checkProposer(cfg, e); err != nil {
			return err
		}

		start := time.Now()
		results, err := e.Generate(ctx, prompts, params)
		if err != nil {
			return err
		}
		metrics.GenerationDuration.WithLabelValues(role).Observe(time.Since(start).Seconds())

		out.Tokens = make([]string, len(results))
		out.TokenIDs = make([][]int, len(results))
		for i, res := range results {
			out.Tokens[i] = res.Text
			out.TokenIDs[i] = res.TokenIDs
		}

		out.AcceptanceRate = AcceptanceRate(e)
		return nil
	})
	return out, err
}

// CollectLogprobs acquires an engine for cfg and returns the per-position
// top-k logprob maps for each sequence in the batch.
func (p Provisioner) CollectLogprobs(ctx context.Context, cfg engine.Config, prompts []string, params engine.ParamSet) ([][]map[int]float64, error) {
	var logprobs [][]map[int]float64

	err := p.With(ctx, cfg, func(e engine.Engine) error {
		results, err := e.Generate(ctx, prompts, params)
		if err != nil {
			return err
		}
		logprobs = make([][]map[int]float64, len(results))
		for i, res := range results {
			logprobs[i] = res.Logprobs
		}
		return nil
	})
	return logprobs, err
}

// checkProposer verifies that an ngram prompt-lookup configuration really
// selected the ngram proposer. Engines without the capability (the async
// facade among them) are skipped.
func checkProposer(cfg engine.Config, e engine.Engine) error {
	if cfg.NgramPromptLookupMax <= 0 {
		return nil
	}
	pr, ok := e.(engine.ProposerReporter)
	if !ok {
		return nil
	}
	if kind := pr.ProposerKind(); kind != "ngram" {
		return fmt.Errorf("harness: ngram_prompt_lookup_max set but proposer is %q", kind)
	}
	return nil
}

package harness

import (
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/abdhe/specdecode-harness/pkg/cache"
	"github.com/abdhe/specdecode-harness/pkg/engine"
	"github.com/abdhe/specdecode-harness/pkg/metrics"
)

// EqualityOptions configures one dual-engine comparison run.
type EqualityOptions struct {
	BatchSize    int
	MaxOutputLen int

	// ForceOutputLen makes generation ignore eos, so every sequence is
	// exactly MaxOutputLen tokens long.
	ForceOutputLen bool

	// Temperature 0 selects greedy decoding; exact equality is then
	// required. For Temperature > 0 exact equality is only required when
	// Seeded pins the draw (seed i for prompt i).
	Temperature float64
	Seeded      bool

	// PrintTokens logs decoded tokens alongside token ids.
	PrintTokens bool

	// EnsureAllAccepted requires the acceptance rate to be exactly 1.0,
	// for configurations where draft and target model are identical.
	EnsureAllAccepted bool

	// ExpectedAcceptanceRate, when non-nil, requires
	// rate >= *ExpectedAcceptanceRate - 0.01. One-sided, no upper bound.
	ExpectedAcceptanceRate *float64

	// BaselineCache, when non-nil, lets the harness reuse a stored baseline
	// run instead of constructing the baseline engine.
	BaselineCache *cache.BaselineCache
}

// RunGreedyEqualityTest compares baseline and test outputs under greedy
// decoding (temperature 0), requiring exact token-sequence equality.
func (p Provisioner) RunGreedyEqualityTest(ctx context.Context, pair ConfigPair, batchSize, maxOutputLen int, forceOutputLen, ensureAllAccepted bool) error {
	return p.RunEqualityTest(ctx, pair, EqualityOptions{
		BatchSize:         batchSize,
		MaxOutputLen:      maxOutputLen,
		ForceOutputLen:    forceOutputLen,
		Temperature:       0.0,
		EnsureAllAccepted: ensureAllAccepted,
	})
}

// RunEqualityTest drives the baseline and test engines with identical
// prompts and sampling configuration, then applies the decision rule:
// exact sequence equality for greedy or seeded decoding, followed by any
// requested acceptance-rate bound.
func (p Provisioner) RunEqualityTest(ctx context.Context, pair ConfigPair, opts EqualityOptions) error {
	prompts := CyclePrompts(TestPrompts, opts.BatchSize)
	params := buildParams(opts, len(prompts))

	testOut, err := p.CollectOutputs(ctx, pair.Test, "test", prompts, params)
	if err != nil {
		return err
	}

	baselineOut, err := p.collectBaseline(ctx, pair.Baseline, prompts, params, opts.BaselineCache)
	if err != nil {
		return err
	}

	if len(baselineOut.TokenIDs) != len(prompts) {
		return fmt.Errorf("harness: baseline returned %d results for %d prompts",
			len(baselineOut.TokenIDs), len(prompts))
	}
	if len(testOut.TokenIDs) != len(prompts) {
		return fmt.Errorf("harness: test engine returned %d results for %d prompts",
			len(testOut.TokenIDs), len(prompts))
	}

	if opts.Temperature == 0 || opts.Seeded {
		if err := compareSequences(prompts, baselineOut, testOut, opts.PrintTokens); err != nil {
			return err
		}
	}

	return checkAcceptance(testOut.AcceptanceRate, opts)
}

// collectBaseline runs the baseline engine, consulting the baseline cache
// first when one is configured.
func (p Provisioner) collectBaseline(ctx context.Context, cfg engine.Config, prompts []string, params engine.ParamSet, bc *cache.BaselineCache) (BatchOutput, error) {
	var key string
	if bc != nil {
		resolved, err := params.Resolve(len(prompts))
		if err != nil {
			return BatchOutput{}, err
		}
		key, err = cache.Key(cfg, prompts, resolved)
		if err != nil {
			return BatchOutput{}, err
		}

		ids, tokens, hit, err := bc.Get(ctx, key)
		if err != nil {
			// A broken cache is never a correctness failure.
			log.Printf("[harness] baseline cache lookup error (treating as miss): %v", err)
		}
		if hit {
			metrics.BaselineCacheLookupsTotal.WithLabelValues("hit").Inc()
			return BatchOutput{Tokens: tokens, TokenIDs: ids, AcceptanceRate: AcceptanceUnavailable}, nil
		}
		metrics.BaselineCacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	out, err := p.CollectOutputs(ctx, cfg, "baseline", prompts, params)
	if err != nil {
		return BatchOutput{}, err
	}

	if bc != nil {
		if err := bc.Put(ctx, key, out.TokenIDs, out.Tokens); err != nil {
			log.Printf("[harness] baseline cache store error: %v", err)
		}
	}
	return out, nil
}

// buildParams assembles the sampling configuration shared verbatim between
// the baseline and test runs. Seeded runs pin prompt i to seed i.
func buildParams(opts EqualityOptions, numPrompts int) engine.ParamSet {
	base := engine.SamplingParams{
		MaxTokens:   opts.MaxOutputLen,
		IgnoreEOS:   opts.ForceOutputLen,
		Temperature: opts.Temperature,
	}

	if !opts.Seeded {
		return engine.SharedParams(base)
	}

	per := make([]engine.SamplingParams, numPrompts)
	for i := range per {
		p := base
		seed := int64(i)
		p.Seed = &seed
		per[i] = p
	}
	return engine.PerPromptParams(per)
}

// compareSequences requires element-for-element equality at every prompt
// index. Any mismatch is a hard failure with no tolerance.
func compareSequences(prompts []string, baseline, test BatchOutput, printTokens bool) error {
	var firstErr *EqualityError
	mismatches := 0

	for i := range prompts {
		if printTokens {
			log.Printf("[harness] i=%d baseline_tokens=%q", i, baseline.Tokens[i])
			log.Printf("[harness] i=%d     test_tokens=%q", i, test.Tokens[i])
		}
		log.Printf("[harness] i=%d baseline_token_ids=%v", i, baseline.TokenIDs[i])
		log.Printf("[harness] i=%d     test_token_ids=%v", i, test.TokenIDs[i])

		if !slices.Equal(baseline.TokenIDs[i], test.TokenIDs[i]) {
			mismatches++
			if firstErr == nil {
				firstErr = &EqualityError{
					Index:    i,
					Prompt:   prompts[i],
					Baseline: baseline.TokenIDs[i],
					Test:     test.TokenIDs[i],
				}
			}
		}
	}

	metrics.RecordComparison(mismatches)
	if firstErr != nil {
		return firstErr
	}
	return nil
}

// checkAcceptance applies the acceptance-rate bounds of the decision rule.
func checkAcceptance(rate float64, opts EqualityOptions) error {
	metrics.ObservedAcceptanceRate.Set(rate)
	log.Printf("[harness] acceptance_rate=%v", rate)

	if opts.EnsureAllAccepted && rate != 1.0 {
		return &AcceptanceRateError{Measured: rate, Required: 1.0, ExactlyOne: true}
	}
	if opts.ExpectedAcceptanceRate != nil {
		required := *opts.ExpectedAcceptanceRate
		if rate < required-0.01 {
			return &AcceptanceRateError{Measured: rate, Required: required}
		}
	}
	return nil
}

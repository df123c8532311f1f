// Package harness implements the dual-engine equality and acceptance-rate
// verification protocol: construct a baseline and a test engine with
// identical configuration except the speculative axis, drive both with the
// same prompts and sampling configuration, and require exact token-sequence
// equality plus any requested acceptance-rate bound.
package harness

import (
	"context"
	"fmt"
	"log"

	"github.com/abdhe/specdecode-harness/pkg/engine"
	"github.com/abdhe/specdecode-harness/pkg/gpu"
)

// Provisioner owns scoped engine acquisition: wait for device memory to
// clear, construct, run the caller's body, and guarantee teardown even when
// the body fails.
type Provisioner struct {
	Factory engine.Factory
	Waiter  gpu.Waiter
}

// With acquires one engine for the duration of fn. Construction is blocked
// until prior allocations are released; if memory does not clear within the
// waiter's timeout the error wraps gpu.ErrResourceUnavailable and the run
// aborts without retry. Teardown runs regardless of fn's outcome.
func (p Provisioner) With(ctx context.Context, cfg engine.Config, fn func(engine.Engine) error) (err error) {
	if err := p.Waiter.WaitForMemoryToClear(ctx); err != nil {
		return fmt.Errorf("harness: pre-construction wait: %w", err)
	}

	eng, err := p.Factory(cfg)
	if err != nil {
		return fmt.Errorf("harness: construct engine for %q: %w", cfg.Model, err)
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			log.Printf("[harness] engine teardown error: %v", cerr)
			if err == nil {
				err = fmt.Errorf("harness: teardown: %w", cerr)
			}
		}
	}()

	var run engine.Engine = eng
	if cfg.UseAsync {
		s, ok := eng.(engine.Streamer)
		if !ok {
			return fmt.Errorf("%w: use_async requested but engine for %q does not stream",
				engine.ErrEngineConstruction, cfg.Model)
		}
		run = engine.NewAsyncEngine(s)
	}

	return fn(run)
}

// ConfigPair is the baseline/test configuration split for one comparison.
type ConfigPair struct {
	Baseline engine.Config
	Test     engine.Config

	// SameDraftTargetModel is derived from the test configuration and
	// decides downstream whether the acceptance rate is expected to reach
	// exactly 1.0.
	SameDraftTargetModel bool
}

// PairConfigs builds the two engine configurations from a shared common
// config plus per-side mutations. Both sides see identical effective
// configuration except the axis under test: the baseline side must not
// carry speculative settings.
func PairConfigs(common engine.Config, baselineMut, testMut func(*engine.Config)) ConfigPair {
	baseline, test := common, common
	if baselineMut != nil {
		baselineMut(&baseline)
	}
	if testMut != nil {
		testMut(&test)
	}

	// The baseline axis is "no speculation" regardless of common settings.
	baseline.SpeculativeModel = ""
	baseline.NumSpeculativeTokens = 0
	baseline.NgramPromptLookupMax = 0

	return ConfigPair{
		Baseline:             baseline,
		Test:                 test,
		SameDraftTargetModel: test.SameDraftTargetModel(),
	}
}

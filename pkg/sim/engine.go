// Package sim implements a deterministic in-process inference engine that
// satisfies the full engine capability contract: greedy and seeded
// sampling, eos handling, logprobs, a speculative-decode acceptance-rate
// gauge, and simulated device-memory accounting.
//
// Token output is a pure function of (model, prompt, sampling params) and
// never depends on the speculative configuration — draft proposals are
// always verified against the target model, so enabling speculation changes
// throughput and acceptance statistics but not the produced sequence.
package sim

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abdhe/specdecode-harness/pkg/engine"
)

// ModelFootprintBytes is the simulated device allocation held by one live
// engine instance.
const ModelFootprintBytes uint64 = 1 << 30 // 1 GiB

// allocated tracks simulated device memory across all live engines in this
// process, so the gpu wait collaborator has something real to observe.
var allocated atomic.Uint64

// MemoryInUse reports the simulated allocated bytes. It satisfies
// gpu.UsageFunc; all simulated engines share one device.
func MemoryInUse(device int) (uint64, error) {
	return allocated.Load(), nil
}

// Engine is a deterministic simulator backend.
type Engine struct {
	cfg engine.Config

	mu     sync.Mutex
	closed bool

	// Metrics registry; nil when stats logging is disabled.
	reg            *prometheus.Registry
	acceptanceRate prometheus.Gauge
}

// New constructs a simulator engine. It satisfies engine.Factory.
func New(cfg engine.Config) (engine.Engine, error) {
	return newEngine(cfg)
}

func newEngine(cfg engine.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg}
	if !cfg.DisableLogStats {
		e.reg = prometheus.NewRegistry()
		e.acceptanceRate = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: engine.MetricDraftAcceptanceRate,
			Help: "Fraction of draft-proposed tokens accepted by the target model.",
		})
		e.reg.MustRegister(e.acceptanceRate)
	}

	allocated.Add(ModelFootprintBytes)
	return e, nil
}

// Close releases the simulated device allocation. Idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	// Uint64 subtraction via two's complement add.
	allocated.Add(^(ModelFootprintBytes - 1))
	return nil
}

// MetricsSnapshot gathers the engine's metrics registry into a flat
// name → value map. With stats logging disabled the snapshot is empty and
// the acceptance-rate gauge is unavailable.
func (e *Engine) MetricsSnapshot() map[string]float64 {
	snap := make(map[string]float64)
	if e.reg == nil {
		return snap
	}

	families, err := e.reg.Gather()
	if err != nil {
		return snap
	}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			if g := m.GetGauge(); g != nil {
				snap[fam.GetName()] = g.GetValue()
			}
		}
	}
	return snap
}

// ProposerKind reports which speculative proposer this configuration
// selects.
func (e *Engine) ProposerKind() string {
	switch {
	case !e.cfg.Speculative():
		return ""
	case e.cfg.NgramPromptLookupMax > 0:
		return "ngram"
	default:
		return "draft_model"
	}
}

// recordAcceptance updates the acceptance gauge after a generation pass.
func (e *Engine) recordAcceptance() {
	if e.acceptanceRate == nil || !e.cfg.Speculative() {
		return
	}
	e.acceptanceRate.Set(SimulatedAcceptanceRate(e.cfg.Model, e.cfg.SpeculativeModel))
}

// SimulatedAcceptanceRate is the acceptance rate the simulator reports for
// a target/draft model pair. Identical models accept every proposal; for
// distinct pairs the rate is a stable pseudo-random value in [0.60, 0.89].
func SimulatedAcceptanceRate(target, draft string) float64 {
	if draft == target {
		return 1.0
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s", target, draft)
	return 0.60 + float64(h.Sum64()%30)/100.0
}

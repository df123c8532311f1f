// specverify — dual-engine speculative-decoding verification runner.
//
// Runs one equality-verification scenario against a baseline/test engine
// pair and exits 0 on pass, 1 on any violation.
//
// Environment variables (optional; flags take precedence):
//   METRICS_PORT   — Prometheus metrics HTTP port during the run (default: 9090)
//   REDIS_ADDR     — Redis address for the baseline-result cache (default: disabled)
//   REDIS_PASSWORD — Redis password (default: "")
//   REDIS_DB       — Redis database (default: 0)
//   CACHE_TTL      — Baseline cache TTL duration (default: 24h)
//
// Defaults may also be placed in a .specverify.env file in the working
// directory.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/abdhe/specdecode-harness/pkg/cache"
	"github.com/abdhe/specdecode-harness/pkg/engine"
	"github.com/abdhe/specdecode-harness/pkg/gpu"
	"github.com/abdhe/specdecode-harness/pkg/harness"
	"github.com/abdhe/specdecode-harness/pkg/sim"
)

const envFile = ".specverify.env"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if info, err := os.Stat(envFile); err == nil && info.Mode().IsRegular() {
		if err := godotenv.Load(envFile); err != nil {
			log.Fatalf("Failed to load configuration from %s: %v", envFile, err)
		}
	}

	// -------------------------------------------------------------------------
	// Flags
	// -------------------------------------------------------------------------
	flags := pflag.NewFlagSet(filepath.Base(os.Args[0]), pflag.ExitOnError)

	model := flags.StringP("model", "m", "facebook/opt-125m", "Target model identifier")
	draftModel := flags.StringP("draft-model", "d", "", "Draft model identifier (empty uses the target model)")
	numSpecTokens := flags.Int("num-speculative-tokens", 5, "Speculative tokens proposed per step")
	ngramLookupMax := flags.Int("ngram-prompt-lookup-max", 0, "Ngram prompt-lookup window (0 disables the ngram proposer)")
	tensorParallel := flags.Int("tensor-parallel-size", 1, "Accelerators per model")
	backend := flags.String("distributed-executor-backend", "", "Worker-communication mode (e.g. ray, mp)")
	useAsync := flags.Bool("use-async", false, "Drive engines through the streaming facade")
	seed := flags.Int64("seed", 0, "Engine-level determinism seed")

	batchSize := flags.IntP("batch-size", "b", 8, "Number of prompts (fixed set, cycled)")
	maxOutputLen := flags.IntP("max-output-len", "n", 32, "Maximum generated tokens per prompt")
	forceOutputLen := flags.Bool("force-output-len", true, "Ignore eos so every sequence is exactly max-output-len tokens")
	temperature := flags.Float64P("temperature", "t", 0.0, "Sampling temperature (0 = greedy)")
	seeded := flags.Bool("seeded", false, "Pin per-prompt seeds for temperature > 0")
	printTokens := flags.Bool("print-tokens", false, "Log decoded tokens alongside token ids")
	ensureAllAccepted := flags.Bool("ensure-all-accepted", false, "Require acceptance rate exactly 1.0")
	expectedRate := flags.Float64("expected-acceptance-rate", -1, "Require acceptance rate >= value - 0.01 (negative disables)")

	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	if *draftModel == "" {
		*draftModel = *model
	}

	// -------------------------------------------------------------------------
	// Metrics server for the duration of the run
	// -------------------------------------------------------------------------
	metricsPort := envOrDefault("METRICS_PORT", "9090")
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:         ":" + metricsPort,
		Handler:      metricsMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Metrics server listening on :%s/metrics", metricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Baseline-result cache (optional)
	// -------------------------------------------------------------------------
	var baselineCache *cache.BaselineCache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		store := cache.NewRedisStore(
			redisAddr,
			os.Getenv("REDIS_PASSWORD"),
			envIntOrDefault("REDIS_DB", 0),
			envDurationOrDefault("CACHE_TTL", 24*time.Hour),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.Ping(ctx); err != nil {
			log.Printf("WARNING: Redis connection failed: %v (baseline cache disabled)", err)
		} else {
			baselineCache = cache.NewBaselineCache(store)
			log.Printf("Baseline cache enabled (redis %s)", redisAddr)
		}
		cancel()
	}

	// -------------------------------------------------------------------------
	// Engine pair and provisioner
	// -------------------------------------------------------------------------
	common := engine.Config{
		Model:                      *model,
		Seed:                       *seed,
		TensorParallelSize:         *tensorParallel,
		DistributedExecutorBackend: *backend,
		UseAsync:                   *useAsync,
	}

	pair := harness.PairConfigs(common, nil, func(c *engine.Config) {
		c.SpeculativeModel = *draftModel
		c.NumSpeculativeTokens = *numSpecTokens
		c.NgramPromptLookupMax = *ngramLookupMax
	})

	prov := harness.Provisioner{
		Factory: sim.New,
		Waiter:  gpu.NewWaiter(sim.MemoryInUse, 0),
	}

	opts := harness.EqualityOptions{
		BatchSize:         *batchSize,
		MaxOutputLen:      *maxOutputLen,
		ForceOutputLen:    *forceOutputLen,
		Temperature:       *temperature,
		Seeded:            *seeded,
		PrintTokens:       *printTokens,
		EnsureAllAccepted: *ensureAllAccepted,
		BaselineCache:     baselineCache,
	}
	if *expectedRate >= 0 {
		opts.ExpectedAcceptanceRate = expectedRate
	}

	log.Printf("Verifying model=%q draft=%q batch=%d max_output_len=%d temperature=%v seeded=%v",
		*model, *draftModel, *batchSize, *maxOutputLen, *temperature, *seeded)

	runErr := prov.RunEqualityTest(context.Background(), pair, opts)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}
	shutdownCancel()

	if runErr != nil {
		log.Printf("FAIL: %v", runErr)
		os.Exit(1)
	}
	fmt.Println("PASS")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

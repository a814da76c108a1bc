package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"tollgate-hq/tollgate/pkg/cli"
	"tollgate-hq/tollgate/pkg/limiter"
)

var benchFlags struct {
	resource    string
	account     string
	requests    int
	concurrency int
	limit       int64
	window      time.Duration
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure admission throughput against the configured store",
	Long: `Measure admission decision throughput against the configured store.

The bench command hammers a fungible limit with concurrent Acquire calls
and reports decision throughput and latency. Both granted and limited
decisions count as successes; an exhausted bucket answering "limited"
fast is the limiter working. Unavailable decisions mean the store could
not settle the conditional write within the retry budget, which is the
number to watch when sizing concurrency for a backend.

Examples:
  # Quick local check
  tollgate bench

  # Contention against a shared backend
  tollgate bench --requests 5000 --concurrency 16

  # A bucket large enough that most decisions grant
  tollgate bench --limit 100000 --window 1s`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVar(&benchFlags.resource, "resource", "bench", "resource name to acquire against")
	benchCmd.Flags().StringVar(&benchFlags.account, "account", "bench-account", "account to acquire for")
	benchCmd.Flags().IntVar(&benchFlags.requests, "requests", 1000, "total acquire calls")
	benchCmd.Flags().IntVar(&benchFlags.concurrency, "concurrency", 4, "concurrent workers")
	benchCmd.Flags().Int64Var(&benchFlags.limit, "limit", 1000, "bucket size used for the run")
	benchCmd.Flags().DurationVar(&benchFlags.window, "window", time.Second, "refill window used for the run")
}

type benchResults struct {
	total       int
	granted     int64
	limited     int64
	unavailable int64
	failed      int64
	duration    time.Duration
	latencies   []time.Duration
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if _, err := newLogger(cfg); err != nil {
		return cli.NewConfigError("logging", err.Error())
	}

	st, _, err := openStore(cfg)
	if err != nil {
		return cli.NewCommandError("bench", err)
	}
	defer st.Close()

	lim, err := limiter.NewFungible(limiter.FungibleConfig{
		Store:         st,
		Resource:      benchFlags.resource,
		DefaultLimit:  benchFlags.limit,
		DefaultWindow: benchFlags.window,
	})
	if err != nil {
		return cli.NewCommandError("bench", err)
	}

	fmt.Println("Tollgate Bench")
	fmt.Println("==============")
	fmt.Printf("Backend:     %s\n", cfg.Store.Backend)
	fmt.Printf("Resource:    %s / %s\n", benchFlags.resource, benchFlags.account)
	fmt.Printf("Requests:    %d\n", benchFlags.requests)
	fmt.Printf("Concurrency: %d\n", benchFlags.concurrency)
	fmt.Printf("Bucket:      %d per %s\n", benchFlags.limit, benchFlags.window)
	fmt.Println()

	results := runAcquireLoad(lim)
	displayBenchResults(results)
	return nil
}

func runAcquireLoad(lim *limiter.Fungible) *benchResults {
	results := &benchResults{
		total:     benchFlags.requests,
		latencies: make([]time.Duration, 0, benchFlags.requests),
	}

	var (
		granted     atomic.Int64
		limited     atomic.Int64
		unavailable atomic.Int64
		failed      atomic.Int64
		done        atomic.Int64
		mu          sync.Mutex
	)

	progress := cli.NewProgressReporter(nil)
	progress.Start(int64(results.total))

	perWorker := results.total / benchFlags.concurrency
	remainder := results.total % benchFlags.concurrency

	ctx := context.Background()
	start := time.Now()

	var wg sync.WaitGroup
	for w := 0; w < benchFlags.concurrency; w++ {
		n := perWorker
		if w < remainder {
			n++
		}

		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				opStart := time.Now()
				err := lim.Acquire(ctx, benchFlags.account)
				latency := time.Since(opStart)

				mu.Lock()
				results.latencies = append(results.latencies, latency)
				mu.Unlock()

				switch {
				case err == nil:
					granted.Add(1)
				case errors.Is(err, limiter.ErrRateLimited):
					limited.Add(1)
				case errors.Is(err, limiter.ErrUnavailable):
					unavailable.Add(1)
				default:
					failed.Add(1)
				}
				progress.Update(done.Add(1))
			}
		}(n)
	}

	wg.Wait()
	progress.Finish()

	results.duration = time.Since(start)
	results.granted = granted.Load()
	results.limited = limited.Load()
	results.unavailable = unavailable.Load()
	results.failed = failed.Load()
	return results
}

func displayBenchResults(results *benchResults) {
	fmt.Println()
	fmt.Println("Results:")
	fmt.Println("--------")
	fmt.Printf("Decisions:   %d total, %d granted, %d limited, %d unavailable, %d failed\n",
		results.total, results.granted, results.limited, results.unavailable, results.failed)
	fmt.Printf("Duration:    %.1fs\n", results.duration.Seconds())

	if results.duration > 0 {
		throughput := float64(results.total) / results.duration.Seconds()
		fmt.Printf("Throughput:  %.2f decisions/s\n", throughput)
	}

	if len(results.latencies) > 0 {
		min, mean, median, p95, p99, max := latencyPercentiles(results.latencies)

		fmt.Println()
		fmt.Println("Latency:")
		fmt.Printf("  Min:     %.2fms\n", float64(min.Microseconds())/1000)
		fmt.Printf("  Mean:    %.2fms\n", float64(mean.Microseconds())/1000)
		fmt.Printf("  Median:  %.2fms\n", float64(median.Microseconds())/1000)
		fmt.Printf("  p95:     %.2fms\n", float64(p95.Microseconds())/1000)
		fmt.Printf("  p99:     %.2fms\n", float64(p99.Microseconds())/1000)
		fmt.Printf("  Max:     %.2fms\n", float64(max.Microseconds())/1000)
	}
}

func latencyPercentiles(latencies []time.Duration) (min, mean, median, p95, p99, max time.Duration) {
	if len(latencies) == 0 {
		return
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	min = sorted[0]
	max = sorted[len(sorted)-1]

	var sum time.Duration
	for _, lat := range sorted {
		sum += lat
	}
	mean = sum / time.Duration(len(sorted))

	median = sorted[len(sorted)/2]
	p95 = sorted[percentileIndex(len(sorted), 0.95)]
	p99 = sorted[percentileIndex(len(sorted), 0.99)]
	return
}

func percentileIndex(n int, p float64) int {
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return idx
}

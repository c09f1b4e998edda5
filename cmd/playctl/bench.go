package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var defaultBenchQueries = map[string][]string{
	"users": {"alice", "bob", "leanne", "graham", "ervin", "clementine", "patricia", "dennis", "kurtis", "nicholas"},
	"posts": {"sunt", "qui est", "ea molestias", "eum et", "nesciunt", "dolorem", "magnam facilis", "dolorem dolore"},
	"tasks": {"delectus", "quis ut", "fugiat", "et porro", "laboriosam", "qui ullam", "illo expedita"},
}

type benchConfig struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Collection  string
	Queries     []string
	Limit       int
}

type benchStats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func newBenchStats() *benchStats {
	return &benchStats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *benchStats) record(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func newBenchCmd(opts *rootOptions) *cobra.Command {
	cfg := benchConfig{}
	var queries string
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load test the search endpoint",
		Long: `Runs concurrent workers against GET /api/v1/search for a fixed duration
and prints throughput, latency percentiles and status codes. Each worker
uses its own session so latest-wins sequencing never discards its queries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.BaseURL = strings.TrimRight(opts.baseURL, "/")
			if cfg.Concurrency < 1 {
				return fmt.Errorf("--concurrency must be at least 1")
			}
			if queries != "" {
				cfg.Queries = strings.Split(queries, ",")
			} else {
				cfg.Queries = defaultBenchQueries[cfg.Collection]
			}
			if len(cfg.Queries) == 0 {
				return fmt.Errorf("no queries for collection %q; pass --queries", cfg.Collection)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== Search Playground Load Test ===")
			fmt.Fprintf(out, "Target:      %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "Collection:  %s\n", cfg.Collection)
			fmt.Fprintf(out, "Concurrency: %d\n", cfg.Concurrency)
			fmt.Fprintf(out, "Duration:    %s\n", cfg.Duration)
			fmt.Fprintf(out, "Queries:     %d unique\n\n", len(cfg.Queries))

			stats := runBench(cmd.Context(), cfg, out)
			return printBenchReport(out, stats, cfg.Duration)
		},
	}
	f := cmd.Flags()
	f.IntVarP(&cfg.Concurrency, "concurrency", "c", 10, "number of concurrent workers")
	f.DurationVarP(&cfg.Duration, "duration", "d", 30*time.Second, "test duration")
	f.StringVar(&cfg.Collection, "collection", "users", "collection to query")
	f.StringVar(&queries, "queries", "", "comma-separated queries (defaults to a built-in set per collection)")
	f.IntVar(&cfg.Limit, "limit", 10, "hits per query")
	return cmd
}

func runBench(parent context.Context, cfg benchConfig, out io.Writer) *benchStats {
	stats := newBenchStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(parent, cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Fprint(out, "Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			session := "bench-" + uuid.NewString()
			queryIdx := workerID

			for ctx.Err() == nil {
				q := cfg.Queries[queryIdx%len(cfg.Queries)]
				queryIdx++

				searchURL := fmt.Sprintf("%s/api/v1/search?collection=%s&q=%s&limit=%d",
					cfg.BaseURL, url.QueryEscape(cfg.Collection), url.QueryEscape(q), cfg.Limit)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
				if err != nil {
					stats.record(0, 0, err)
					return
				}
				req.Header.Set("X-Session-ID", session)

				start := time.Now()
				resp, err := client.Do(req)
				duration := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.record(duration, 0, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(duration, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprint(out, ".")
			}
		}
	}()

	wg.Wait()
	fmt.Fprintln(out, " done!")
	fmt.Fprintln(out)
	return stats
}

func printBenchReport(out io.Writer, stats *benchStats, duration time.Duration) error {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	failed := stats.errorCount.Load()

	fmt.Fprintln(out, "=== Results ===")
	fmt.Fprintf(out, "Total Requests:  %d\n", total)
	fmt.Fprintf(out, "Successful:      %d\n", success)
	fmt.Fprintf(out, "Errors:          %d\n", failed)
	if total > 0 {
		fmt.Fprintf(out, "Error Rate:      %.2f%%\n", float64(failed)/float64(total)*100)
		fmt.Fprintf(out, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Fprintln(out)
		fmt.Fprintln(out, "=== Latency ===")
		fmt.Fprintf(out, "Min:    %s\n", latencies[0])
		fmt.Fprintf(out, "Avg:    %s\n", avg)
		fmt.Fprintf(out, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(out, "P90:    %s\n", percentile(latencies, 90))
		fmt.Fprintf(out, "P95:    %s\n", percentile(latencies, 95))
		fmt.Fprintf(out, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(out, "Max:    %s\n", latencies[len(latencies)-1])

		var sumSquared float64
		for _, l := range latencies {
			diff := float64(l) - float64(avg)
			sumSquared += diff * diff
		}
		fmt.Fprintf(out, "StdDev: %s\n", time.Duration(math.Sqrt(sumSquared/float64(len(latencies)))))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(out, "  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		return fmt.Errorf("no requests completed; is the playground running at the target URL?")
	}
	return nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

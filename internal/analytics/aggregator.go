package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/kafka"
)

const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches        int64            `json:"total_searches"`
	FailedSearches       int64            `json:"failed_searches"`
	StaleSearches        int64            `json:"stale_searches"`
	ZeroResultCount      int64            `json:"zero_result_count"`
	AvgLatencyMs         float64          `json:"avg_latency_ms"`
	P50LatencyMs         int64            `json:"p50_latency_ms"`
	P95LatencyMs         int64            `json:"p95_latency_ms"`
	P99LatencyMs         int64            `json:"p99_latency_ms"`
	TopQueries           []QueryCount     `json:"top_queries"`
	ZeroResultQueries    []QueryCount     `json:"zero_result_queries"`
	SearchesByCollection map[string]int64 `json:"searches_by_collection"`
	SyncSucceeded        int64            `json:"sync_succeeded"`
	SyncFailed           int64            `json:"sync_failed"`
	DocumentsLoaded      int64            `json:"documents_loaded"`
	QueriesPerMinute     float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals over search and sync events. Latency
// percentiles are computed over the most recent samples only.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     int64
	failedSearches    int64
	staleSearches     int64
	zeroResults       int64
	latencies         []int64
	nextSample        int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	byCollection      map[string]int64
	syncSucceeded     int64
	syncFailed        int64
	documentsLoaded   int64
	startTime         time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		byCollection:      make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleMessage decodes an Envelope from a Kafka message. Undecodable
// messages are logged and acknowledged so they do not block the partition.
func (a *Aggregator) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[Envelope](value)
		if err != nil {
			a.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		a.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(e Envelope) {
	switch {
	case e.Type == EventSearch && e.Search != nil:
		a.recordSearch(*e.Search)
	case e.Type == EventSync && e.Sync != nil:
		a.recordSync(*e.Sync)
	default:
		a.logger.Warn("ignoring malformed analytics event", "type", e.Type)
	}
}

func (a *Aggregator) recordSearch(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches++
	a.byCollection[event.Collection]++
	switch {
	case event.Stale:
		a.staleSearches++
		return
	case event.Failed:
		a.failedSearches++
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.nextSample] = event.LatencyMs
		a.nextSample = (a.nextSample + 1) % maxLatencySamples
	}
	query := strings.TrimSpace(strings.ToLower(event.Query))
	a.queryCounts[query]++
	if !event.Failed && event.Hits == 0 {
		a.zeroResults++
		a.zeroResultQueries[query]++
	}
}

func (a *Aggregator) recordSync(event SyncEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if event.Failed {
		a.syncFailed++
		return
	}
	a.syncSucceeded++
	a.documentsLoaded += int64(event.Documents)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:        a.totalSearches,
		FailedSearches:       a.failedSearches,
		StaleSearches:        a.staleSearches,
		ZeroResultCount:      a.zeroResults,
		SearchesByCollection: make(map[string]int64, len(a.byCollection)),
		SyncSucceeded:        a.syncSucceeded,
		SyncFailed:           a.syncFailed,
		DocumentsLoaded:      a.documentsLoaded,
	}
	for k, v := range a.byCollection {
		stats.SearchesByCollection[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

package metrics

import (
	"sort"
	"sync"
	"time"
)

// Outcome is how a user-visible call ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeStale   Outcome = "stale"
	OutcomeFailure Outcome = "failure"
)

// CacheUse is what the cache contributed to a call. Bypass calls are not
// cacheable and do not count towards the hit rate.
type CacheUse string

const (
	CacheHit    CacheUse = "hit"
	CacheMiss   CacheUse = "miss"
	CacheBypass CacheUse = "bypass"
)

const maxSamples = 1000

type targetStats struct {
	attempts    int64
	failures    int64
	latencies   []time.Duration
	statusCodes map[int]int64
	health      string
}

// Metrics holds the process-lifetime aggregate. All counters only grow.
type Metrics struct {
	mutex             sync.RWMutex
	total             int64
	successful        int64
	failed            int64
	stale             int64
	cumulativeLatency time.Duration
	cacheHits         int64
	cacheMisses       int64
	targets           map[string]*targetStats
	startTime         time.Time
}

type Snapshot struct {
	TotalRequests      int64                    `json:"total_requests"`
	SuccessfulRequests int64                    `json:"successful_requests"`
	FailedRequests     int64                    `json:"failed_requests"`
	StaleResponses     int64                    `json:"stale_responses"`
	CumulativeLatency  time.Duration            `json:"cumulative_latency"`
	CacheHits          int64                    `json:"cache_hits"`
	CacheMisses        int64                    `json:"cache_misses"`
	SuccessRate        float64                  `json:"success_rate"`
	AverageLatency     time.Duration            `json:"average_latency"`
	CacheHitRate       float64                  `json:"cache_hit_rate"`
	Uptime             time.Duration            `json:"uptime"`
	Mode               string                   `json:"mode"`
	Backends           map[string]TargetMetrics `json:"backends"`
}

type TargetMetrics struct {
	Attempts    int64         `json:"attempts"`
	Failures    int64         `json:"failures"`
	Health      string        `json:"health,omitempty"`
	AvgLatency  time.Duration `json:"avg_latency"`
	P50Latency  time.Duration `json:"p50_latency"`
	P95Latency  time.Duration `json:"p95_latency"`
	P99Latency  time.Duration `json:"p99_latency"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		targets:   make(map[string]*targetStats),
		startTime: time.Now(),
	}
}

// Record counts one user-visible call. Stale responses count as successes
// for the success rate.
func (m *Metrics) Record(outcome Outcome, latency time.Duration, cacheUse CacheUse) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.total++
	m.cumulativeLatency += latency

	switch outcome {
	case OutcomeSuccess:
		m.successful++
	case OutcomeStale:
		m.successful++
		m.stale++
	default:
		m.failed++
	}

	switch cacheUse {
	case CacheHit:
		m.cacheHits++
	case CacheMiss:
		m.cacheMisses++
	}
}

// RecordAttempt counts one network attempt against a target. statusCode is
// zero when no response arrived.
func (m *Metrics) RecordAttempt(target string, latency time.Duration, statusCode int, failed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	ts := m.targetLocked(target)
	ts.attempts++
	if failed {
		ts.failures++
	}

	ts.latencies = append(ts.latencies, latency)
	if len(ts.latencies) > maxSamples {
		ts.latencies = ts.latencies[1:]
	}

	if statusCode != 0 {
		ts.statusCodes[statusCode]++
	}
}

func (m *Metrics) UpdateHealth(target, status string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.targetLocked(target).health = status
}

func (m *Metrics) Snapshot(mode string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		TotalRequests:      m.total,
		SuccessfulRequests: m.successful,
		FailedRequests:     m.failed,
		StaleResponses:     m.stale,
		CumulativeLatency:  m.cumulativeLatency,
		CacheHits:          m.cacheHits,
		CacheMisses:        m.cacheMisses,
		Uptime:             time.Since(m.startTime),
		Mode:               mode,
		Backends:           make(map[string]TargetMetrics, len(m.targets)),
	}

	if m.total > 0 {
		snap.SuccessRate = float64(m.successful) / float64(m.total)
		snap.AverageLatency = m.cumulativeLatency / time.Duration(m.total)
	}
	if lookups := m.cacheHits + m.cacheMisses; lookups > 0 {
		snap.CacheHitRate = float64(m.cacheHits) / float64(lookups)
	}

	for name, ts := range m.targets {
		tm := TargetMetrics{
			Attempts:    ts.attempts,
			Failures:    ts.failures,
			Health:      ts.health,
			StatusCodes: make(map[int]int64, len(ts.statusCodes)),
		}
		for code, n := range ts.statusCodes {
			tm.StatusCodes[code] = n
		}

		if len(ts.latencies) > 0 {
			sorted := make([]time.Duration, len(ts.latencies))
			copy(sorted, ts.latencies)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			tm.AvgLatency = average(sorted)
			tm.P50Latency = percentile(sorted, 0.50)
			tm.P95Latency = percentile(sorted, 0.95)
			tm.P99Latency = percentile(sorted, 0.99)
		}

		snap.Backends[name] = tm
	}

	return snap
}

func (m *Metrics) targetLocked(name string) *targetStats {
	ts, ok := m.targets[name]
	if !ok {
		ts = &targetStats{statusCodes: make(map[int]int64)}
		m.targets[name] = ts
	}
	return ts
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}

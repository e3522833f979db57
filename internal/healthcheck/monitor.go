package healthcheck

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/resilient-client/internal/backend"
	"github.com/angeloszaimis/resilient-client/internal/strategy"
)

const (
	DefaultInterval      = 15 * time.Second
	DefaultTimeout       = 3 * time.Second
	DefaultPath          = "/health"
	DefaultSlowThreshold = 1500 * time.Millisecond
	DefaultDegradedAfter = 3

	maxBodyBytes = 64 << 10
)

// Gate tells the monitor whether a target currently admits calls.
// *circuitbreaker.Registry satisfies it.
type Gate interface {
	Allows(name string) bool
}

type Settings struct {
	Interval      time.Duration
	Timeout       time.Duration
	Path          string
	SlowThreshold time.Duration
	DegradedAfter int

	Strategy strategy.Strategy
	Gate     Gate
	Client   *http.Client
	OnChange func(target backend.Target, from, to Status)
	Now      func() time.Time
}

func (s Settings) withDefaults() Settings {
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.Path == "" {
		s.Path = DefaultPath
	}
	if s.SlowThreshold <= 0 {
		s.SlowThreshold = DefaultSlowThreshold
	}
	if s.DegradedAfter <= 0 {
		s.DegradedAfter = DefaultDegradedAfter
	}
	if s.Strategy == nil {
		s.Strategy = strategy.NewPriorityStrategy()
	}
	if s.Client == nil {
		s.Client = &http.Client{Timeout: s.Timeout}
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

type signal int

const (
	signalHealthy signal = iota
	signalPartial
	signalFailure
)

// Monitor owns the health records of a fixed set of targets. Each record is
// written only by that target's probe.
type Monitor struct {
	targets  []backend.Target
	settings Settings
	logger   *slog.Logger

	mutex   sync.RWMutex
	records map[string]*Record
	cycles  atomic.Int64
}

func NewMonitor(targets []backend.Target, settings Settings, logger *slog.Logger) *Monitor {
	records := make(map[string]*Record, len(targets))
	for _, t := range targets {
		records[t.Name()] = &Record{
			Target: t.Name(),
			URL:    t.String(),
			Status: StatusUnknown,
		}
	}

	return &Monitor{
		targets:  backend.SortByPriority(targets),
		settings: settings.withDefaults(),
		logger:   logger,
		records:  records,
	}
}

// Start runs one probe cycle immediately and then one per interval until ctx
// is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	m.logger.Info("Health monitor started",
		slog.Int("targets", len(m.targets)),
		slog.Duration("interval", m.settings.Interval))
	defer m.logger.Info("Health monitor stopped")

	m.ProbeAll(ctx)

	ticker := time.NewTicker(m.settings.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ProbeAll(ctx)
		}
	}
}

// ProbeAll probes every target concurrently and waits for all of them.
func (m *Monitor) ProbeAll(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range m.targets {
		g.Go(func() error {
			m.Probe(gctx, t)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() == nil {
		m.cycles.Add(1)
	}
}

// Probe checks one target and updates its record. Failures are recorded as
// classifications, never returned. A probe cut short by ctx cancellation says
// nothing about the target and leaves its record untouched.
func (m *Monitor) Probe(ctx context.Context, target backend.Target) Record {
	sig, latency, reason := m.check(ctx, target)
	if ctx.Err() != nil {
		rec, _ := m.Record(target.Name())
		return rec
	}
	return m.apply(target, sig, latency, reason)
}

func (m *Monitor) check(ctx context.Context, target backend.Target) (signal, time.Duration, string) {
	pctx, cancel := context.WithTimeout(ctx, m.settings.Timeout)
	defer cancel()

	healthURL := target.Resolve(m.settings.Path, nil)
	req, err := http.NewRequestWithContext(pctx, http.MethodGet, healthURL.String(), nil)
	if err != nil {
		return signalFailure, 0, err.Error()
	}

	start := time.Now()
	res, err := m.settings.Client.Do(req)
	if err != nil {
		return signalFailure, 0, err.Error()
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	latency := time.Since(start)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return signalFailure, latency, fmt.Sprintf("status %d", res.StatusCode)
	}

	if len(body) > 0 {
		var payload Payload
		if err := sonic.Unmarshal(body, &payload); err == nil {
			if reason := payload.trouble(); reason != "" {
				return signalPartial, latency, reason
			}
		}
	}

	if latency > m.settings.SlowThreshold {
		return signalPartial, latency, fmt.Sprintf("slow response %s", latency)
	}

	return signalHealthy, latency, ""
}

func (m *Monitor) apply(target backend.Target, sig signal, latency time.Duration, reason string) Record {
	now := m.settings.Now()

	m.mutex.Lock()
	rec, ok := m.records[target.Name()]
	if !ok {
		rec = &Record{Target: target.Name(), URL: target.String(), Status: StatusUnknown}
		m.records[target.Name()] = rec
	}

	prev := rec.Status
	rec.LastProbe = now

	switch sig {
	case signalFailure:
		rec.ConsecutiveFailures++
		rec.ConsecutiveSuccesses = 0
		rec.ConsecutiveSlow = 0
		rec.LastFailure = now
		rec.LastError = reason
		rec.Status = StatusUnreachable

	default:
		if prev == StatusUnreachable {
			// Reconnected: earlier latency no longer describes this target.
			rec.Latency = 0
			rec.ConsecutiveSlow = 0
		}
		rec.ConsecutiveFailures = 0
		rec.ConsecutiveSuccesses++
		rec.observeLatency(latency)
		rec.LastError = reason

		if sig == signalPartial {
			rec.ConsecutiveSlow++
		} else {
			rec.ConsecutiveSlow = 0
		}

		if rec.ConsecutiveSlow >= m.settings.DegradedAfter {
			rec.Status = StatusDegraded
		} else {
			rec.Status = StatusHealthy
		}
	}

	snapshot := *rec
	m.mutex.Unlock()

	if prev != snapshot.Status {
		m.logTransition(target, prev, snapshot)
		if m.settings.OnChange != nil {
			m.settings.OnChange(target, prev, snapshot.Status)
		}
	}

	return snapshot
}

func (m *Monitor) logTransition(target backend.Target, prev Status, rec Record) {
	attrs := []any{
		slog.String("target", target.Name()),
		slog.String("from", string(prev)),
		slog.String("to", string(rec.Status)),
	}
	if rec.LastError != "" {
		attrs = append(attrs, slog.String("reason", rec.LastError))
	}

	switch rec.Status {
	case StatusHealthy:
		m.logger.Info("Backend is healthy", attrs...)
	case StatusDegraded:
		m.logger.Warn("Backend is degraded", attrs...)
	default:
		m.logger.Warn("Backend is unreachable", attrs...)
	}
}

// ActiveBackend returns the target requests should try first. When no target
// is healthy it still returns a best-effort choice; it reports false only
// when no targets are configured.
func (m *Monitor) ActiveBackend() (backend.Target, bool) {
	candidates := m.Candidates()
	if len(candidates) == 0 {
		return backend.Target{}, false
	}
	return candidates[0], true
}

// Candidates returns every target in fallback order: healthy, degraded, not
// yet probed, then the rest by least recent failure. Targets whose breaker
// rejects calls are only placed in the last group.
func (m *Monitor) Candidates() []backend.Target {
	records := m.recordMap()

	var healthy, degraded, unknown []strategy.Candidate
	var rest []backend.Target

	for _, t := range m.targets {
		rec := records[t.Name()]
		allowed := m.settings.Gate == nil || m.settings.Gate.Allows(t.Name())
		c := strategy.Candidate{Target: t, Latency: rec.Latency}

		switch {
		case allowed && rec.Status == StatusHealthy:
			healthy = append(healthy, c)
		case allowed && rec.Status == StatusDegraded:
			degraded = append(degraded, c)
		case allowed && rec.Status == StatusUnknown:
			unknown = append(unknown, c)
		default:
			rest = append(rest, t)
		}
	}

	sort.SliceStable(rest, func(i, j int) bool {
		return records[rest[i].Name()].LastFailure.Before(records[rest[j].Name()].LastFailure)
	})

	out := make([]backend.Target, 0, len(m.targets))
	for _, tier := range [][]strategy.Candidate{healthy, degraded, unknown} {
		for _, c := range m.settings.Strategy.Order(tier) {
			out = append(out, c.Target)
		}
	}
	return append(out, rest...)
}

// NetworkState summarises all records. It stays unknown until the first
// probe cycle completes.
func (m *Monitor) NetworkState() NetworkState {
	if m.cycles.Load() == 0 {
		return NetworkUnknown
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	state := NetworkOffline
	for _, rec := range m.records {
		switch rec.Status {
		case StatusHealthy:
			return NetworkOnline
		case StatusDegraded:
			state = NetworkDegraded
		}
	}
	return state
}

// Records returns copies of all records in target priority order.
func (m *Monitor) Records() []Record {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]Record, 0, len(m.targets))
	for _, t := range m.targets {
		if rec, ok := m.records[t.Name()]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

func (m *Monitor) Record(name string) (Record, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rec, ok := m.records[name]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

func (m *Monitor) Targets() []backend.Target {
	out := make([]backend.Target, len(m.targets))
	copy(out, m.targets)
	return out
}

func (m *Monitor) recordMap() map[string]Record {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make(map[string]Record, len(m.records))
	for name, rec := range m.records {
		out[name] = *rec
	}
	return out
}

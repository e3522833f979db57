package adapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/angeloszaimis/resilient-client/internal/apierror"
	"github.com/angeloszaimis/resilient-client/internal/backend"
	"github.com/angeloszaimis/resilient-client/internal/cache"
	"github.com/angeloszaimis/resilient-client/internal/circuitbreaker"
	"github.com/angeloszaimis/resilient-client/internal/healthcheck"
	"github.com/angeloszaimis/resilient-client/internal/metrics"
	"github.com/angeloszaimis/resilient-client/internal/transport"
)

const tracerName = "github.com/angeloszaimis/resilient-client/internal/adapter"

// Dependencies are the shared structures a Client routes through. Monitor,
// Breakers and Cache are only needed by the robust service.
type Dependencies struct {
	Targets   []backend.Target
	Monitor   *healthcheck.Monitor
	Breakers  *circuitbreaker.Registry
	Cache     *cache.Cache
	Collector *metrics.Collector
	Transport *transport.Transport
	Timeout   time.Duration
	// LogLevel is raised to debug while Options.DebugMode is set.
	LogLevel *slog.LevelVar
	Logger   *slog.Logger
}

type service interface {
	do(ctx context.Context, spec RequestSpec, req transport.Request) (Result, metrics.CacheUse, error)
	mode() Mode
}

type Client struct {
	deps      Dependencies
	baseLevel slog.Level
	tracer    trace.Tracer

	mutex   sync.RWMutex
	options Options
	service service
}

type HealthStatus struct {
	NetworkState     healthcheck.NetworkState  `json:"networkState"`
	ActiveBackendURL string                    `json:"activeBackendUrl"`
	CircuitBreakers  []circuitbreaker.Snapshot `json:"circuitBreakers"`
	Backends         []healthcheck.Record      `json:"backends"`
	Mode             Mode                      `json:"mode"`
}

// New builds a Client. When the robust service cannot be built and
// opts.FallbackToBasic is set, the client runs in basic mode instead.
func New(deps Dependencies, opts Options) (*Client, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Collector == nil {
		deps.Collector = metrics.NewCollector(0, deps.Logger)
	}
	if deps.Transport == nil {
		deps.Transport = transport.New(nil)
	}
	if deps.Timeout <= 0 {
		deps.Timeout = transport.DefaultTimeout
	}
	if len(deps.Targets) == 0 && deps.Monitor != nil {
		deps.Targets = deps.Monitor.Targets()
	}

	c := &Client{
		deps:   deps,
		tracer: otel.Tracer(tracerName),
	}
	if deps.LogLevel != nil {
		c.baseLevel = deps.LogLevel.Level()
	}

	svc, err := c.build(opts)
	if err != nil {
		return nil, err
	}
	c.options = opts
	c.service = svc
	c.applyDebug(opts.DebugMode)
	return c, nil
}

// UpdateConfig switches services at runtime following the same fallback rule
// as New. On error the previous configuration stays in effect.
func (c *Client) UpdateConfig(opts Options) error {
	svc, err := c.build(opts)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	prev := c.service.mode()
	c.options = opts
	c.service = svc
	c.mutex.Unlock()

	c.applyDebug(opts.DebugMode)

	if prev != svc.mode() {
		c.deps.Logger.Info("Client mode changed",
			slog.String("from", string(prev)),
			slog.String("to", string(svc.mode())))
	}
	return nil
}

func (c *Client) build(opts Options) (service, error) {
	if !opts.UseRobustService {
		return newBasicService(c.deps)
	}

	robust, err := newRobustService(c.deps)
	if err == nil {
		return robust, nil
	}
	if !opts.FallbackToBasic {
		return nil, err
	}

	c.deps.Logger.Warn("Robust service unavailable, falling back to basic", slog.Any("error", err))
	return newBasicService(c.deps)
}

func (c *Client) applyDebug(debug bool) {
	if c.deps.LogLevel == nil {
		return
	}
	if debug {
		c.deps.LogLevel.Set(slog.LevelDebug)
	} else {
		c.deps.LogLevel.Set(c.baseLevel)
	}
}

// Request performs one user-visible call and records it exactly once.
func (c *Client) Request(ctx context.Context, spec RequestSpec) (Result, error) {
	c.mutex.RLock()
	svc := c.service
	c.mutex.RUnlock()

	req := transport.Request{
		Method:  spec.method(),
		Path:    spec.Path,
		Params:  spec.Params,
		Body:    spec.Body,
		Headers: spec.Headers.Clone(),
	}
	if req.Headers == nil {
		req.Headers = http.Header{}
	}
	requestID := req.Headers.Get(transport.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		req.Headers.Set(transport.HeaderRequestID, requestID)
	}

	ctx, span := c.tracer.Start(ctx, "adapter.Request", trace.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.Path),
		attribute.String("client.mode", string(svc.mode())),
		attribute.String("request.id", requestID),
	))
	defer span.End()

	start := time.Now()
	res, cacheUse, err := svc.do(ctx, spec, req)
	res.Latency = time.Since(start)
	res.RequestID = requestID

	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = metrics.OutcomeFailure
	case res.Stale:
		outcome = metrics.OutcomeStale
	}
	c.deps.Collector.Record(outcome, res.Latency, cacheUse)

	span.SetAttributes(
		attribute.String("outcome", string(outcome)),
		attribute.String("cache", string(cacheUse)),
		attribute.String("backend", res.Target),
		attribute.Int("attempts", res.Attempts),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apierror.KindOf(err)))
	}

	c.logRequest(req, res, err)
	return res, err
}

func (c *Client) logRequest(req transport.Request, res Result, err error) {
	attrs := []any{
		slog.String("request_id", res.RequestID),
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Duration("latency", res.Latency),
	}

	switch {
	case err == nil && res.Stale:
		c.deps.Logger.Warn("Request served from stale cache", attrs...)
	case err == nil:
		attrs = append(attrs, slog.String("backend", res.Target), slog.Bool("from_cache", res.FromCache))
		c.deps.Logger.Debug("Request completed", attrs...)
	case errors.Is(err, apierror.ErrRequestRejected):
		attrs = append(attrs, slog.Any("error", err))
		c.deps.Logger.Debug("Request rejected by backend", attrs...)
	default:
		attrs = append(attrs, slog.Any("error", err))
		c.deps.Logger.Error("Request failed", attrs...)
	}
}

func (c *Client) HealthStatus() HealthStatus {
	c.mutex.RLock()
	svc := c.service
	c.mutex.RUnlock()

	status := HealthStatus{
		NetworkState: healthcheck.NetworkUnknown,
		Mode:         svc.mode(),
	}

	if basic, ok := svc.(*basicService); ok {
		status.ActiveBackendURL = basic.target.String()
	}

	if c.deps.Monitor != nil {
		status.NetworkState = c.deps.Monitor.NetworkState()
		status.Backends = c.deps.Monitor.Records()
		if status.ActiveBackendURL == "" {
			if active, ok := c.deps.Monitor.ActiveBackend(); ok {
				status.ActiveBackendURL = active.String()
			}
		}
	}
	if c.deps.Breakers != nil {
		status.CircuitBreakers = c.deps.Breakers.Snapshots()
	}
	return status
}

func (c *Client) PerformanceMetrics() metrics.Snapshot {
	return c.deps.Collector.Snapshot(string(c.Mode()))
}

func (c *Client) Options() Options {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.options
}

func (c *Client) Mode() Mode {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.service.mode()
}

package adapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/angeloszaimis/resilient-client/internal/apierror"
	"github.com/angeloszaimis/resilient-client/internal/cache"
	"github.com/angeloszaimis/resilient-client/internal/circuitbreaker"
	"github.com/angeloszaimis/resilient-client/internal/healthcheck"
	"github.com/angeloszaimis/resilient-client/internal/metrics"
	"github.com/angeloszaimis/resilient-client/internal/transport"
)

type robustService struct {
	monitor   *healthcheck.Monitor
	breakers  *circuitbreaker.Registry
	cache     *cache.Cache
	transport *transport.Transport
	collector *metrics.Collector
	timeout   time.Duration
	logger    *slog.Logger

	group singleflight.Group
}

func newRobustService(deps Dependencies) (*robustService, error) {
	switch {
	case deps.Monitor == nil:
		return nil, apierror.ConfigurationInvalid("robust service needs a health monitor", nil)
	case deps.Breakers == nil:
		return nil, apierror.ConfigurationInvalid("robust service needs a circuit breaker registry", nil)
	case deps.Cache == nil:
		return nil, apierror.ConfigurationInvalid("robust service needs a response cache", nil)
	case len(deps.Monitor.Targets()) == 0:
		return nil, apierror.ConfigurationInvalid("no backend targets configured", nil)
	}

	return &robustService{
		monitor:   deps.Monitor,
		breakers:  deps.Breakers,
		cache:     deps.Cache,
		transport: deps.Transport,
		collector: deps.Collector,
		timeout:   deps.Timeout,
		logger:    deps.Logger,
	}, nil
}

func (r *robustService) mode() Mode { return ModeRobust }

func (r *robustService) do(ctx context.Context, spec RequestSpec, req transport.Request) (Result, metrics.CacheUse, error) {
	if !spec.cacheable() {
		res, err := r.fetch(ctx, spec, req, "")
		return res, metrics.CacheBypass, err
	}

	key := cache.Fingerprint(req.Method, req.Path, req.Params)

	if spec.Policy == PolicyCacheFirst {
		if entry, ok := r.cache.Get(ctx, key); ok {
			return cachedResult(entry, false), metrics.CacheHit, nil
		}
	}

	res, err := r.fetchShared(ctx, spec, req, key)
	if err == nil {
		return res, metrics.CacheMiss, nil
	}
	if !errors.Is(err, apierror.ErrAllBackendsExhausted) {
		return res, metrics.CacheMiss, err
	}

	entry, ok := r.cache.Get(ctx, key)
	if !ok {
		return res, metrics.CacheMiss, err
	}

	r.logger.Warn("Serving stale cache entry",
		slog.String("path", req.Path),
		slog.Duration("age", time.Since(entry.StoredAt)),
		slog.Any("cause", err))

	stale := cachedResult(entry, true)
	stale.Attempts = res.Attempts
	stale.Warning = apierror.StaleCacheServed(key)
	return stale, metrics.CacheHit, nil
}

// fetchShared coalesces identical in-flight reads. Each caller still waits on
// its own context.
func (r *robustService) fetchShared(ctx context.Context, spec RequestSpec, req transport.Request, key string) (Result, error) {
	ch := r.group.DoChan(key, func() (any, error) {
		return r.fetch(context.WithoutCancel(ctx), spec, req, key)
	})

	select {
	case <-ctx.Done():
		return Result{}, apierror.NetworkUnreachable("", ctx.Err())
	case out := <-ch:
		res, _ := out.Val.(Result)
		if out.Shared {
			res.Header = res.Header.Clone()
		}
		return res, out.Err
	}
}

// fetch walks the health-ordered candidates until one answers. key is empty
// when the response must not be cached.
func (r *robustService) fetch(ctx context.Context, spec RequestSpec, req transport.Request, key string) (Result, error) {
	candidates := r.monitor.Candidates()
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}

	var last error
	attempts := 0
	for _, target := range candidates {
		if ctx.Err() != nil {
			return Result{Attempts: attempts}, apierror.NetworkUnreachable(target.Name(), ctx.Err())
		}

		var resp transport.Response
		err := r.breakers.GetBreaker(target.Name()).Call(ctx, func(cctx context.Context) error {
			var err error
			resp, err = r.transport.Do(cctx, target, req, timeout)
			return err
		})

		if errors.Is(err, apierror.ErrCircuitOpen) {
			r.logger.Debug("Skipping target with open circuit", slog.String("target", target.Name()))
			last = err
			continue
		}

		attempts++
		r.collector.EmitAttempt(target.Name(), resp.Latency, resp.StatusCode,
			err != nil && !errors.Is(err, apierror.ErrRequestRejected))

		if err == nil {
			res := Result{
				Payload:    resp.Body,
				StatusCode: resp.StatusCode,
				Header:     resp.Header,
				Target:     target.Name(),
				TargetURL:  target.String(),
				Attempts:   attempts,
			}
			if key != "" {
				r.cache.PutEntry(ctx, cache.Entry{
					Key:        key,
					Payload:    resp.Body,
					StatusCode: resp.StatusCode,
					Class:      spec.Class,
				})
			}
			return res, nil
		}

		if errors.Is(err, apierror.ErrRequestRejected) {
			return Result{
				Payload:    resp.Body,
				StatusCode: resp.StatusCode,
				Header:     resp.Header,
				Target:     target.Name(),
				TargetURL:  target.String(),
				Attempts:   attempts,
			}, err
		}

		if ctx.Err() != nil {
			return Result{Attempts: attempts}, err
		}

		r.logger.Warn("Backend attempt failed, trying next target",
			slog.String("target", target.Name()),
			slog.String("kind", string(apierror.KindOf(err))),
			slog.Any("error", err))
		last = err
	}

	return Result{Attempts: attempts}, apierror.AllBackendsExhausted(len(candidates), last)
}

func cachedResult(entry cache.Entry, stale bool) Result {
	status := entry.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	return Result{
		Payload:    entry.Payload,
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		FromCache:  true,
		Stale:      stale,
	}
}

// ClassifyOutcome decides how an attempt counts for the target's breaker. A
// 4xx means the backend answered, so it is not held against it.
func ClassifyOutcome(ctx context.Context, err error) circuitbreaker.Outcome {
	if errors.Is(err, apierror.ErrRequestRejected) {
		return circuitbreaker.OutcomeSuccess
	}
	return circuitbreaker.DefaultClassify(ctx, err)
}

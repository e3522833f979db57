package adapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/angeloszaimis/resilient-client/internal/apierror"
	"github.com/angeloszaimis/resilient-client/internal/backend"
	"github.com/angeloszaimis/resilient-client/internal/metrics"
	"github.com/angeloszaimis/resilient-client/internal/transport"
)

// basicService sends every request once to the highest-priority target.
type basicService struct {
	target    backend.Target
	transport *transport.Transport
	collector *metrics.Collector
	timeout   time.Duration
	logger    *slog.Logger
}

func newBasicService(deps Dependencies) (*basicService, error) {
	if len(deps.Targets) == 0 {
		return nil, apierror.ConfigurationInvalid("no backend targets configured", nil)
	}

	return &basicService{
		target:    backend.SortByPriority(deps.Targets)[0],
		transport: deps.Transport,
		collector: deps.Collector,
		timeout:   deps.Timeout,
		logger:    deps.Logger,
	}, nil
}

func (b *basicService) mode() Mode { return ModeBasic }

func (b *basicService) do(ctx context.Context, spec RequestSpec, req transport.Request) (Result, metrics.CacheUse, error) {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = b.timeout
	}

	resp, err := b.transport.Do(ctx, b.target, req, timeout)
	b.collector.EmitAttempt(b.target.Name(), resp.Latency, resp.StatusCode, err != nil)

	res := Result{
		Payload:    resp.Body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Target:     b.target.Name(),
		TargetURL:  b.target.String(),
		Attempts:   1,
	}
	if err != nil {
		b.logger.Debug("Passthrough request failed",
			slog.String("target", b.target.Name()),
			slog.Any("error", err))
	}
	return res, metrics.CacheBypass, err
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/resilient-client/config"
	"github.com/angeloszaimis/resilient-client/internal/adapter"
	"github.com/angeloszaimis/resilient-client/internal/backend"
	"github.com/angeloszaimis/resilient-client/internal/cache"
	"github.com/angeloszaimis/resilient-client/internal/catalog"
	"github.com/angeloszaimis/resilient-client/internal/circuitbreaker"
	"github.com/angeloszaimis/resilient-client/internal/handler"
	"github.com/angeloszaimis/resilient-client/internal/healthcheck"
	"github.com/angeloszaimis/resilient-client/internal/httpserver"
	"github.com/angeloszaimis/resilient-client/internal/metrics"
	"github.com/angeloszaimis/resilient-client/internal/strategy"
	"github.com/angeloszaimis/resilient-client/internal/transport"
	"github.com/angeloszaimis/resilient-client/pkg/logger"
)

const redisPingTimeout = 2 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log, level := logger.NewLeveled(os.Stdout, cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	targets, err := initializeTargets(cfg, log)
	if err != nil {
		log.Error("Failed to initialize backends", slog.Any("err", err))
		os.Exit(1)
	}

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)
	collector.Start(ctx)

	breakers := newBreakers(cfg, collector, log)
	monitor := newMonitor(cfg, targets, createStrategy(log, cfg.Selection.Strategy), breakers, collector, log)
	monitor.Start(ctx)

	respCache, closeCache := newCache(ctx, cfg, log)
	defer closeCache()
	if interval := cfg.Cache.SweepIntervalDuration(); interval > 0 {
		respCache.StartSweeper(ctx, interval)
	}

	client, err := adapter.New(adapter.Dependencies{
		Targets:   targets,
		Monitor:   monitor,
		Breakers:  breakers,
		Cache:     respCache,
		Collector: collector,
		Transport: transport.New(nil),
		Timeout:   cfg.Client.Timeout(),
		LogLevel:  level,
		Logger:    log,
	}, adapter.Options{
		UseRobustService: cfg.Client.UseRobustService,
		FallbackToBasic:  cfg.Client.FallbackToBasic,
		DebugMode:        cfg.Client.DebugMode,
	})
	if err != nil {
		log.Error("Failed to create client", slog.Any("err", err))
		os.Exit(1)
	}

	gateway := handler.NewGateway(log, client, catalog.New(client, adapter.Policy(cfg.Client.ReadPolicy)), collector)
	router := setupRouter(gateway, log, cfg.Server.Environment)

	srv, err := httpserver.New(cfg.Server.Address, router, httpserver.Settings{
		WriteTimeout: writeTimeout(cfg.Client.Timeout(), len(targets)),
	})
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Resilient client listening",
		slog.String("address", srv.Addr()),
		slog.String("mode", string(client.Mode())),
		slog.Int("backends", len(targets)))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func initializeTargets(cfg *config.Config, log *slog.Logger) ([]backend.Target, error) {
	var targets []backend.Target

	for _, bc := range cfg.Backends {
		target, err := backend.Parse(bc.Name, bc.URL, backend.Role(bc.Role), bc.Priority)
		if err != nil {
			log.Error("Failed to parse backend",
				slog.String("name", bc.Name),
				slog.String("url", bc.URL),
				slog.String("error", err.Error()))
			continue
		}
		targets = append(targets, target)
	}

	if len(targets) == 0 {
		return nil, errors.New("no usable backends configured")
	}

	return backend.SortByPriority(targets), nil
}

func createStrategy(log *slog.Logger, name string) strategy.Strategy {
	strat, err := strategy.New(name)
	if err != nil {
		log.Warn("Unknown strategy, defaulting to priority", slog.String("requested", name))
		return strategy.NewPriorityStrategy()
	}
	return strat
}

func newBreakers(cfg *config.Config, collector *metrics.Collector, log *slog.Logger) *circuitbreaker.Registry {
	return circuitbreaker.NewRegistry(circuitbreaker.Settings{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		Cooldown:         cfg.CircuitBreaker.CooldownDuration(),
		TrialRequests:    cfg.CircuitBreaker.TrialRequests,
		Classify:         adapter.ClassifyOutcome,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			log.Info("Circuit breaker changed state",
				slog.String("target", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			collector.EmitBreaker(name, to.String())
		},
	})
}

func newMonitor(cfg *config.Config, targets []backend.Target, strat strategy.Strategy, gate healthcheck.Gate, collector *metrics.Collector, log *slog.Logger) *healthcheck.Monitor {
	return healthcheck.NewMonitor(targets, healthcheck.Settings{
		Interval:      cfg.HealthCheck.IntervalDuration(),
		Timeout:       cfg.HealthCheck.TimeoutDuration(),
		Path:          cfg.HealthCheck.Path,
		SlowThreshold: cfg.HealthCheck.SlowDuration(),
		DegradedAfter: cfg.HealthCheck.DegradedAfter,
		Strategy:      strat,
		Gate:          gate,
		OnChange: func(target backend.Target, from, to healthcheck.Status) {
			collector.EmitHealth(target.Name(), string(to))
		},
	}, log)
}

// newCache builds the response cache. A Redis tier is added when enabled and
// reachable; otherwise the cache stays memory-only.
func newCache(ctx context.Context, cfg *config.Config, log *slog.Logger) (*cache.Cache, func()) {
	settings := cache.Settings{
		DefaultTTL: cfg.Cache.DefaultTTLDuration(),
		ClassTTLs:  cfg.Cache.ClassTTLs(),
		MaxEntries: cfg.Cache.MaxEntries,
	}
	if !cfg.Cache.Redis.Enabled {
		return cache.New(settings, nil, log), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Address,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unavailable, using in-memory cache only",
			slog.String("address", cfg.Cache.Redis.Address),
			slog.Any("error", err))
		_ = rdb.Close()
		return cache.New(settings, nil, log), func() {}
	}

	log.Info("Using Redis cache tier", slog.String("address", cfg.Cache.Redis.Address))
	store := cache.NewRedisStore(rdb, cfg.Cache.Redis.Prefix, nil)
	return cache.New(settings, store, log), func() { _ = rdb.Close() }
}

// writeTimeout leaves room for one attempt per target plus slack.
func writeTimeout(perAttempt time.Duration, targets int) time.Duration {
	d := perAttempt*time.Duration(targets) + httpserver.DefaultShutdownTimeout
	if d < httpserver.DefaultWriteTimeout {
		return httpserver.DefaultWriteTimeout
	}
	return d
}

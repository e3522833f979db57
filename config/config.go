package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/resilient-client/internal/apierror"
	"github.com/angeloszaimis/resilient-client/internal/backend"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	RolePrimary   = "primary"
	RoleSecondary = "secondary"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type ClientConfig struct {
	UseRobustService bool   `mapstructure:"use_robust_service"`
	FallbackToBasic  bool   `mapstructure:"fallback_to_basic"`
	DebugMode        bool   `mapstructure:"debug_mode"`
	RequestTimeout   string `mapstructure:"request_timeout"`
	ReadPolicy       string `mapstructure:"read_policy"`
}

type BackendConfig struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	Role     string `mapstructure:"role"`
	Priority int    `mapstructure:"priority"`
}

type CircuitBreakerConfig struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	Cooldown         string `mapstructure:"cooldown"`
	TrialRequests    int    `mapstructure:"trial_requests"`
}

type HealthCheckConfig struct {
	Interval      string `mapstructure:"interval"`
	Timeout       string `mapstructure:"timeout"`
	Path          string `mapstructure:"path"`
	SlowThreshold string `mapstructure:"slow_threshold"`
	DegradedAfter int    `mapstructure:"degraded_after"`
}

type SelectionConfig struct {
	Strategy string `mapstructure:"strategy"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type CacheConfig struct {
	DefaultTTL    string            `mapstructure:"default_ttl"`
	TTLs          map[string]string `mapstructure:"ttls"`
	SweepInterval string            `mapstructure:"sweep_interval"`
	MaxEntries    int               `mapstructure:"max_entries"`
	Redis         RedisConfig       `mapstructure:"redis"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Client         ClientConfig         `mapstructure:"client"`
	Backends       []BackendConfig      `mapstructure:"backends"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	HealthCheck    HealthCheckConfig    `mapstructure:"health_check"`
	Selection      SelectionConfig      `mapstructure:"selection"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")

	v.SetDefault("client.use_robust_service", true)
	v.SetDefault("client.fallback_to_basic", true)
	v.SetDefault("client.debug_mode", false)
	v.SetDefault("client.request_timeout", "10s")
	v.SetDefault("client.read_policy", "network-first")

	v.SetDefault("circuit_breaker.failure_threshold", 5)
	v.SetDefault("circuit_breaker.cooldown", "30s")
	v.SetDefault("circuit_breaker.trial_requests", 1)

	v.SetDefault("health_check.interval", "15s")
	v.SetDefault("health_check.timeout", "3s")
	v.SetDefault("health_check.path", "/health")
	v.SetDefault("health_check.slow_threshold", "1500ms")
	v.SetDefault("health_check.degraded_after", 3)

	v.SetDefault("selection.strategy", "priority")

	v.SetDefault("cache.default_ttl", "60s")
	v.SetDefault("cache.ttls", map[string]string{
		"health":     "5s",
		"videos":     "30s",
		"detections": "5m",
		"products":   "10m",
	})
	v.SetDefault("cache.sweep_interval", "1m")
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "rc:")

	v.SetDefault("metrics.buffer_size", 1000)
	v.SetDefault("logging.level", LogLevelInfo)
}

// Load reads .env, config.yaml (./config or .) and the environment, in
// increasing precedence, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", slog.String("error", err.Error()))
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, apierror.ConfigurationInvalid("read config file", err)
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, apierror.ConfigurationInvalid("decode config", err)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, apierror.ConfigurationInvalid("validate config", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Client,
			validation.By(func(value interface{}) error {
				cc, ok := value.(ClientConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ClientConfig")
				}
				return validation.ValidateStruct(&cc,
					validation.Field(&cc.RequestTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&cc.ReadPolicy, validation.In("network-first", "cache-first")),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval, validation.Required, validation.By(validateDuration)),
					validation.Field(&hc.Timeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&hc.SlowThreshold, validation.Required, validation.By(validateDuration)),
					validation.Field(&hc.Path, validation.Required, validation.By(validateAbsolutePath)),
					validation.Field(&hc.DegradedAfter, validation.Required, validation.Min(1)),
				)
			}),
		),
		validation.Field(&c.CircuitBreaker,
			validation.Required,
			validation.By(func(value interface{}) error {
				cb, ok := value.(CircuitBreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CircuitBreakerConfig")
				}
				return validation.ValidateStruct(&cb,
					validation.Field(&cb.FailureThreshold, validation.Required, validation.Min(1)),
					validation.Field(&cb.Cooldown, validation.Required, validation.By(validateDuration)),
					validation.Field(&cb.TrialRequests, validation.Required, validation.Min(1)),
				)
			}),
		),
		validation.Field(&c.Backends,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateBackendConfig)),
			validation.By(validateUniqueBackends),
		),
		validation.Field(&c.Selection,
			validation.By(func(value interface{}) error {
				sc, ok := value.(SelectionConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a SelectionConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Strategy,
						validation.Required,
						validation.In("priority", "least-latency", "round-robin"),
					),
				)
			}),
		),
		validation.Field(&c.Cache,
			validation.By(func(value interface{}) error {
				cc, ok := value.(CacheConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CacheConfig")
				}
				return validation.ValidateStruct(&cc,
					validation.Field(&cc.DefaultTTL, validation.Required, validation.By(validateDuration)),
					validation.Field(&cc.SweepInterval, validation.By(validateOptionalDuration)),
					validation.Field(&cc.MaxEntries, validation.Min(0)),
					validation.Field(&cc.TTLs, validation.Each(validation.By(validateDuration))),
					validation.Field(&cc.Redis, validation.By(validateRedisConfig)),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.BufferSize, validation.Required, validation.Min(1)),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}
	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}

	return nil
}

func validateOptionalDuration(value interface{}) error {
	if s, ok := value.(string); ok && (s == "" || s == "0" || s == "0s") {
		return nil
	}
	return validateDuration(value)
}

func validateAbsolutePath(value interface{}) error {
	p, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if !strings.HasPrefix(p, "/") {
		return validation.NewError("validation_invalid_path", "must start with /")
	}
	return nil
}

func validateBackendConfig(value interface{}) error {
	backend, ok := value.(BackendConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BackendConfig")
	}

	if backend.URL == "" {
		return validation.NewError("validation_empty_url", "backend URL cannot be empty")
	}

	parsedURL, err := url.Parse(backend.URL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	if backend.Role != "" && backend.Role != RolePrimary && backend.Role != RoleSecondary {
		return validation.NewError("validation_invalid_role", "role must be primary or secondary")
	}

	if backend.Priority < 0 {
		return validation.NewError("validation_invalid_priority", "priority cannot be negative")
	}

	return nil
}

func validateUniqueBackends(value interface{}) error {
	backends, ok := value.([]BackendConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a list of backends")
	}

	urls := make(map[string]bool, len(backends))
	names := make(map[string]bool, len(backends))
	for _, b := range backends {
		if urls[b.URL] {
			return validation.NewError("validation_duplicate_url", "backend URLs must be unique")
		}
		urls[b.URL] = true

		name := b.Name
		if name == "" {
			u, err := url.Parse(b.URL)
			if err != nil {
				continue
			}
			name = backend.DefaultName(u)
		}
		if names[name] {
			return validation.NewError("validation_duplicate_name", "backend names must be unique")
		}
		names[name] = true
	}

	return nil
}

func validateRedisConfig(value interface{}) error {
	rc, ok := value.(RedisConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a RedisConfig")
	}
	if !rc.Enabled {
		return nil
	}
	return validation.ValidateStruct(&rc,
		validation.Field(&rc.Address, validation.Required, validation.By(validateHostPort)),
		validation.Field(&rc.DB, validation.Min(0)),
	)
}

package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/resilient-client/config"
	"github.com/angeloszaimis/resilient-client/internal/apierror"
)

const validConfig = `
server:
  address: ":8080"
  environment: "dev"

client:
  use_robust_service: true
  fallback_to_basic: false
  request_timeout: "5s"

backends:
  - name: "railway"
    url: "https://api.example.com"
    role: "primary"
    priority: 1
  - name: "local"
    url: "http://localhost:8081"
    role: "secondary"
    priority: 2

circuit_breaker:
  failure_threshold: 3
  cooldown: "10s"
  trial_requests: 2

health_check:
  interval: "5s"
  timeout: "1s"
  slow_threshold: "800ms"

selection:
  strategy: "least-latency"

cache:
  default_ttl: "30s"
  ttls:
    products: "15m"

logging:
  level: "debug"
`

var _ = Describe("Config", func() {
	var (
		tempDir string
		origDir string
	)

	writeFile := func(name, content string) {
		Expect(os.WriteFile(filepath.Join(tempDir, name), []byte(content), 0644)).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tempDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tempDir)
		os.Unsetenv("CLIENT_USE_ROBUST_SERVICE")
		os.Unsetenv("SERVER_ADDRESS")
		os.Unsetenv("SELECTION_STRATEGY")
	})

	Describe("Load", func() {
		Context("with valid config file", func() {
			BeforeEach(func() {
				writeFile("config.yaml", validConfig)
			})

			It("should load configuration successfully", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())
			})

			It("should parse backends in order", func() {
				cfg, _ := config.Load()

				Expect(cfg.Backends).To(HaveLen(2))
				Expect(cfg.Backends[0]).To(Equal(config.BackendConfig{
					Name: "railway", URL: "https://api.example.com", Role: "primary", Priority: 1,
				}))
			})

			It("should parse client options and timings", func() {
				cfg, _ := config.Load()

				Expect(cfg.Client.UseRobustService).To(BeTrue())
				Expect(cfg.Client.FallbackToBasic).To(BeFalse())
				Expect(cfg.Client.Timeout()).To(Equal(5 * time.Second))
				Expect(cfg.CircuitBreaker.FailureThreshold).To(Equal(3))
				Expect(cfg.CircuitBreaker.CooldownDuration()).To(Equal(10 * time.Second))
				Expect(cfg.CircuitBreaker.TrialRequests).To(Equal(2))
				Expect(cfg.HealthCheck.IntervalDuration()).To(Equal(5 * time.Second))
				Expect(cfg.HealthCheck.TimeoutDuration()).To(Equal(time.Second))
				Expect(cfg.HealthCheck.SlowDuration()).To(Equal(800 * time.Millisecond))
				Expect(cfg.Selection.Strategy).To(Equal("least-latency"))
			})

			It("should keep defaults for keys the file omits", func() {
				cfg, _ := config.Load()

				Expect(cfg.HealthCheck.Path).To(Equal("/health"))
				Expect(cfg.HealthCheck.DegradedAfter).To(Equal(3))
				Expect(cfg.Cache.MaxEntries).To(Equal(1000))
				Expect(cfg.Cache.Redis.Enabled).To(BeFalse())
				Expect(cfg.Cache.Redis.Prefix).To(Equal("rc:"))
				Expect(cfg.Metrics.BufferSize).To(Equal(1000))
			})

			It("should parse per-class cache TTLs", func() {
				cfg, _ := config.Load()

				ttls := cfg.Cache.ClassTTLs()
				Expect(ttls).To(HaveKeyWithValue("products", 15*time.Minute))
				Expect(cfg.Cache.DefaultTTLDuration()).To(Equal(30 * time.Second))
			})

			It("should let environment variables override the file", func() {
				os.Setenv("CLIENT_USE_ROBUST_SERVICE", "false")
				os.Setenv("SELECTION_STRATEGY", "round-robin")

				cfg, err := config.Load()

				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Client.UseRobustService).To(BeFalse())
				Expect(cfg.Selection.Strategy).To(Equal("round-robin"))
			})

			It("should read a .env file", func() {
				writeFile(".env", "SERVER_ADDRESS=127.0.0.1:9090\n")

				cfg, err := config.Load()

				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal("127.0.0.1:9090"))
			})
		})

		Context("without a config file", func() {
			It("should fail validation because no backends are configured", func() {
				_, err := config.Load()

				Expect(errors.Is(err, apierror.ErrConfigurationInvalid)).To(BeTrue())
			})
		})

		Context("with an invalid config file", func() {
			It("should reject unknown selection strategies", func() {
				writeFile("config.yaml", validConfig+"\n")
				os.Setenv("SELECTION_STRATEGY", "random")

				_, err := config.Load()

				Expect(errors.Is(err, apierror.ErrConfigurationInvalid)).To(BeTrue())
			})

			It("should reject malformed YAML", func() {
				writeFile("config.yaml", "server: [")

				_, err := config.Load()

				Expect(errors.Is(err, apierror.ErrConfigurationInvalid)).To(BeTrue())
			})
		})
	})

	Describe("Validate", func() {
		var cfg config.Config

		BeforeEach(func() {
			writeFile("config.yaml", validConfig)
			loaded, err := config.Load()
			Expect(err).NotTo(HaveOccurred())
			cfg = *loaded
		})

		It("should accept the loaded configuration", func() {
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should reject duplicate backend URLs", func() {
			cfg.Backends[1].URL = cfg.Backends[0].URL
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject duplicate backend names", func() {
			cfg.Backends[1].Name = cfg.Backends[0].Name
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject an unnamed backend whose default name is taken", func() {
			cfg.Backends[0].Name = ""
			cfg.Backends[0].URL = "http://videos.internal:8080/api"
			cfg.Backends[1].Name = "videos.internal:8080/api"
			cfg.Backends[1].URL = "http://videos.internal:8080/api/"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should accept unnamed backends sharing a host under different paths", func() {
			cfg.Backends[0].Name = ""
			cfg.Backends[0].URL = "http://videos.internal:8080/a"
			cfg.Backends[1].Name = ""
			cfg.Backends[1].URL = "http://videos.internal:8080/b"
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should reject unknown roles", func() {
			cfg.Backends[0].Role = "tertiary"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject non-http backend URLs", func() {
			cfg.Backends[0].URL = "ftp://example.com"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject invalid durations", func() {
			cfg.CircuitBreaker.Cooldown = "soon"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject a zero failure threshold", func() {
			cfg.CircuitBreaker.FailureThreshold = 0
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject invalid class TTLs", func() {
			cfg.Cache.TTLs["videos"] = "-5s"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject a relative health path", func() {
			cfg.HealthCheck.Path = "health"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should check the Redis address only when Redis is enabled", func() {
			cfg.Cache.Redis.Address = "not an address"
			Expect(cfg.Validate()).To(Succeed())

			cfg.Cache.Redis.Enabled = true
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject unknown environments", func() {
			cfg.Server.Environment = "qa"
			Expect(cfg.Validate()).NotTo(Succeed())
		})
	})
})

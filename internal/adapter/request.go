package adapter

import (
	"net/http"
	"net/url"
	"time"
)

type Policy string

const (
	// PolicyNetworkFirst asks the backends first and uses the cache only as
	// a fallback.
	PolicyNetworkFirst Policy = "network-first"
	// PolicyCacheFirst answers from a fresh cache entry without a network
	// round trip.
	PolicyCacheFirst Policy = "cache-first"
)

type Mode string

const (
	ModeRobust Mode = "robust"
	ModeBasic  Mode = "basic"
)

type RequestSpec struct {
	Method  string
	Path    string
	Params  url.Values
	Body    []byte
	Headers http.Header
	// Class selects the cache TTL (videos, products, ...).
	Class string
	// Cacheable forces caching for methods other than GET and HEAD.
	Cacheable bool
	NoCache   bool
	Policy    Policy
	Timeout   time.Duration
}

func (s RequestSpec) method() string {
	if s.Method == "" {
		return http.MethodGet
	}
	return s.Method
}

// cacheable reports whether the response may be stored. GET and HEAD
// requests with a class are cacheable unless NoCache is set.
func (s RequestSpec) cacheable() bool {
	if s.NoCache {
		return false
	}
	if s.Cacheable {
		return true
	}
	m := s.method()
	return s.Class != "" && (m == http.MethodGet || m == http.MethodHead)
}

type Result struct {
	Payload    []byte
	StatusCode int
	Header     http.Header
	// Target is the name of the backend that answered, empty for cache hits.
	Target    string
	TargetURL string
	RequestID string
	Stale     bool
	FromCache bool
	Latency   time.Duration
	Attempts  int
	// Warning is set for non-fatal outcomes such as a stale cache answer.
	Warning error
}

type Options struct {
	UseRobustService bool `json:"useRobustService" mapstructure:"use_robust_service"`
	FallbackToBasic  bool `json:"fallbackToBasic" mapstructure:"fallback_to_basic"`
	DebugMode        bool `json:"debugMode" mapstructure:"debug_mode"`
}

func DefaultOptions() Options {
	return Options{UseRobustService: true, FallbackToBasic: true}
}

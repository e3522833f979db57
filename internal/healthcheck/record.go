package healthcheck

import (
	"strings"
	"time"
)

type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusHealthy     Status = "healthy"
	StatusDegraded    Status = "degraded"
	StatusUnreachable Status = "unreachable"
)

type NetworkState string

const (
	NetworkUnknown  NetworkState = "unknown"
	NetworkOnline   NetworkState = "online"
	NetworkDegraded NetworkState = "degraded"
	NetworkOffline  NetworkState = "offline"
)

// Record is the monitor's belief about one target. Callers always get copies.
type Record struct {
	Target               string        `json:"target"`
	URL                  string        `json:"url"`
	Status               Status        `json:"status"`
	LastProbe            time.Time     `json:"last_probe,omitempty"`
	LastFailure          time.Time     `json:"last_failure,omitempty"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	ConsecutiveSlow      int           `json:"consecutive_slow"`
	Latency              time.Duration `json:"latency"`
	LastError            string        `json:"last_error,omitempty"`
}

const ewmaAlpha = 0.2

func (r *Record) observeLatency(d time.Duration) {
	if r.Latency == 0 {
		r.Latency = d
		return
	}
	//ewma = (1 - α) * ewma + α * latest
	r.Latency = time.Duration((1-ewmaAlpha)*float64(r.Latency) + ewmaAlpha*float64(d))
}

// Payload is the body of a backend health endpoint.
type Payload struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

// trouble returns a reason when the backend reports a partial outage.
func (p Payload) trouble() string {
	switch strings.ToLower(p.Status) {
	case "", "ok", "healthy", "up", "pass":
	default:
		return "status " + p.Status
	}

	if failing(p.Database) {
		return "database " + p.Database
	}
	if failing(p.Cache) {
		return "cache " + p.Cache
	}
	return ""
}

func failing(component string) bool {
	switch strings.ToLower(component) {
	case "down", "error", "disconnected", "unhealthy", "fail":
		return true
	default:
		return false
	}
}

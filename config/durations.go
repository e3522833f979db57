package config

import "time"

// parseDuration is only used on validated values; invalid or empty input
// yields zero so component defaults apply.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func (c ClientConfig) Timeout() time.Duration { return parseDuration(c.RequestTimeout) }

func (c CircuitBreakerConfig) CooldownDuration() time.Duration { return parseDuration(c.Cooldown) }

func (c HealthCheckConfig) IntervalDuration() time.Duration { return parseDuration(c.Interval) }
func (c HealthCheckConfig) TimeoutDuration() time.Duration  { return parseDuration(c.Timeout) }
func (c HealthCheckConfig) SlowDuration() time.Duration     { return parseDuration(c.SlowThreshold) }

func (c CacheConfig) DefaultTTLDuration() time.Duration    { return parseDuration(c.DefaultTTL) }
func (c CacheConfig) SweepIntervalDuration() time.Duration { return parseDuration(c.SweepInterval) }

// ClassTTLs returns the per-class TTLs.
func (c CacheConfig) ClassTTLs() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.TTLs))
	for class, raw := range c.TTLs {
		if d := parseDuration(raw); d > 0 {
			out[class] = d
		}
	}
	return out
}

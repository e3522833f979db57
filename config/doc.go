// Package config loads the client configuration from an optional .env file,
// a YAML file and environment variables. It covers the listen address, the
// ordered backend targets, breaker thresholds, probe timing, per-class cache
// TTLs and the robust/basic client options.
package config

// Package healthcheck implements periodic health checking for backend targets.
// A Monitor probes every target's health endpoint on a fixed interval,
// classifies it as healthy, degraded or unreachable, and answers which target
// requests should go to first.
package healthcheck

// Package strategy orders backend targets that share the same health tier:
//
//   - Priority: lowest configured priority first, primaries before secondaries
//   - Least Latency: lowest exponentially weighted moving average (EWMA) probe latency first
//   - Round Robin: rotates among the targets sharing the best priority
//
// The health monitor decides the tiers; a strategy only orders inside one.
package strategy

// Package cache stores successful backend responses keyed by a request
// fingerprint.
//
// A Cache always keeps an in-memory tier and can be backed by a shared Redis
// tier. Entries live for the TTL of their request class and are evicted
// lazily when a lookup finds them expired. The same entries serve repeat
// reads and act as the last-known-good fallback when no backend answers.
package cache

// Package apierror defines the typed errors the client returns. Every error
// carries a Kind; use errors.Is with the package sentinels (ErrCircuitOpen,
// ErrAllBackendsExhausted, ...) to branch on it.
package apierror

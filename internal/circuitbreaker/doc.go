// Package circuitbreaker implements the circuit breaker pattern for backend failover.
//
// A circuit breaker prevents cascading failures by temporarily blocking calls
// to failing backends. It has three states:
//
//   - closed: normal operation, calls pass through
//   - open: backend failing, calls rejected with a circuit-open error
//   - half-open: cooldown elapsed, a bounded number of trial calls go through
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(circuitbreaker.Settings{
//	    FailureThreshold: 5,
//	    Cooldown:         30 * time.Second,
//	})
//	err := registry.GetBreaker("primary").Call(ctx, func(ctx context.Context) error {
//	    return doRequest(ctx)
//	})
package circuitbreaker

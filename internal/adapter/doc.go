// Package adapter is the client entry point. A Client routes each request
// through one of two services chosen by configuration:
//
//   - robust: health-ordered failover across targets, a circuit breaker per
//     target, response caching with stale fallback;
//   - basic: a single attempt against the highest-priority target.
//
// Both services record exactly one metrics entry per call and return typed
// errors from package apierror.
package adapter

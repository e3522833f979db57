// Package handler exposes the resilient client over HTTP with gin. The
// gateway relays /api requests through the client and reports which backend
// answered and whether the cache was used. The admin routes serve health,
// metrics and runtime configuration, and the catalog routes return typed
// domain records.
package handler

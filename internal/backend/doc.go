// Package backend describes the backend deployments the client can talk to.
// A Target is immutable once built from configuration.
package backend

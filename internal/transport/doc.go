// Package transport performs single HTTP attempts against a backend target
// and turns every failure into an apierror with the right kind.
package transport

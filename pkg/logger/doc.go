// Package logger builds the application's slog logger: JSON in prod, text
// elsewhere, tagged with the environment. NewLeveled also returns the
// LevelVar the client flips when debug mode is toggled.
package logger

// Package logging assembles the structured slog loggers used by the rdaemon
// CLI, registry, and daemon host.
//
// It owns the console and JSON handlers, output routing, standardized field
// keys, and context helpers that tag every line of a stop attempt with the
// same correlation ID. NewNop is provided for tests and wiring code that
// cannot fail.
package logging

// Package config loads, normalizes, and validates rdaemon configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// RDAEMON_REGISTRY_PORT. The registry endpoint, well-known lookup path, and
// daemon host settings are all resolved here so the CLI can pass them
// explicitly to the packages that need them.
package config

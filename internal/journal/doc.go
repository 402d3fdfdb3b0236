// Package journal records every remote stop attempt in a local SQLite
// database so operators can review what was stopped, when, and why an attempt
// failed.
package journal

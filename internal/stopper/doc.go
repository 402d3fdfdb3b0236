// Package stopper terminates a published daemon through its remote control
// handle.
//
// Stop resolves the registry on the given port, looks up the handle bound at
// the lookup path, calls Stop then Destroy on it, and finally removes the
// binding. The first failing step ends the sequence and is reported as one
// *Error whose Kind tells the operator whether the daemon was missing, would
// not shut down, or was shut down but left a stale binding behind. Steps that
// already ran are not rolled back and nothing is retried.
//
// The registry and handle are interfaces so the sequence can run against the
// JSON-RPC clients in the registry and remote packages or against local fakes.
package stopper

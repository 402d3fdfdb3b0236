// Package daemonctl provides the client-side orchestration behind the
// rdaemon CLI: stopping a published daemon through its registry binding,
// launching detached daemon hosts, and inspecting registry state.
package daemonctl

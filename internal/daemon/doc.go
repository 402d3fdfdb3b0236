// Package daemon hosts the managed workload behind an exported control
// object.
//
// A Host owns an exclusive lock for its lookup path, optionally supervises a
// child command in its own process group, and moves through the states
// running, stopped, and destroyed. Stop signals the child with SIGTERM and
// escalates to SIGKILL after the configured grace period. Destroy releases
// the lock and closes the channel returned by Destroyed so the hosting
// process can exit.
package daemon

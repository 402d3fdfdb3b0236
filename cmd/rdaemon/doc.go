// Command rdaemon starts daemons that publish a remote control object in a
// name registry and stops them again from any process that can reach the
// registry.
//
// The stop command resolves the registry on --port, looks up the binding at
// --path, asks the daemon to stop and then destroy itself, and finally removes
// the binding. Any failure halts the sequence and exits with status 1.
package main

// Package registry implements the name registry that daemon hosts publish
// their control objects into, together with the client used to look them up.
//
// A binding maps a lookup path such as "/DaemonLoader" to the network
// endpoint of an exported control object. The server keeps bindings in
// memory for the life of the process; the client dials per call and keeps no
// connection open between operations.
package registry

// Package ipc carries the JSON-RPC plumbing shared by the name registry and
// exported daemon control objects.
//
// Server owns listener lifecycle and per-connection codecs; Call dials,
// performs exactly one request, and closes the connection so callers never
// hold a connection between operations. Errors returned by a remote method
// arrive as rpc.ServerError; RemoteMessage extracts them so packages can map
// wire messages back to their sentinel errors.
package ipc

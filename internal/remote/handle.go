package remote

import (
	"context"
	"fmt"

	"rdaemon/internal/ipc"
)

// Handle is a reference to an exported daemon. It keeps no connection open.
type Handle struct {
	endpoint string
	opts     ipc.DialOptions
}

// Dial returns a handle for the object exported at endpoint.
func Dial(endpoint string, opts ipc.DialOptions) *Handle {
	return &Handle{endpoint: endpoint, opts: opts}
}

// Endpoint returns the exported object's address.
func (h *Handle) Endpoint() string { return h.endpoint }

// Stop invokes the remote stop operation once.
func (h *Handle) Stop(ctx context.Context) error {
	var resp StopResponse
	return h.call(ctx, "Stop", StopRequest{}, &resp)
}

// Destroy invokes the remote destroy operation once.
func (h *Handle) Destroy(ctx context.Context) error {
	var resp DestroyResponse
	return h.call(ctx, "Destroy", DestroyRequest{}, &resp)
}

// Status fetches the remote daemon status.
func (h *Handle) Status(ctx context.Context) (Status, error) {
	var resp StatusResponse
	if err := h.call(ctx, "Status", StatusRequest{}, &resp); err != nil {
		return Status{}, err
	}
	return resp.Status, nil
}

func (h *Handle) call(ctx context.Context, method string, args, reply any) error {
	if err := ipc.Call(ctx, h.endpoint, h.opts, ServiceName+"."+method, args, reply); err != nil {
		if msg, ok := ipc.RemoteMessage(err); ok {
			return fmt.Errorf("daemon at %s rejected %s: %s", h.endpoint, method, msg)
		}
		return fmt.Errorf("daemon at %s: %w", h.endpoint, err)
	}
	return nil
}

package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"rdaemon/internal/config"
	"rdaemon/internal/ipc"
)

// Client talks to a registry at a fixed address. It holds no connection;
// every method dials, calls once, and closes.
type Client struct {
	addr string
	opts ipc.DialOptions
}

// Locate returns a client for the registry on host:port. It validates the
// endpoint but does not contact the registry.
func Locate(host string, port int, opts ipc.DialOptions) (*Client, error) {
	if err := config.ValidatePort(port); err != nil {
		return nil, err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		host = "127.0.0.1"
	}
	return &Client{addr: net.JoinHostPort(host, strconv.Itoa(port)), opts: opts}, nil
}

// Addr returns the registry address.
func (c *Client) Addr() string {
	return c.addr
}

// Bind publishes b, failing with ErrAlreadyBound when the path is taken.
func (c *Client) Bind(ctx context.Context, b Binding) (Binding, error) {
	var resp BindResponse
	if err := c.call(ctx, "Bind", BindRequest{Binding: b}, &resp); err != nil {
		return Binding{}, err
	}
	return resp.Binding, nil
}

// Rebind publishes b, replacing any existing binding for the path.
func (c *Client) Rebind(ctx context.Context, b Binding) (Binding, error) {
	var resp BindResponse
	if err := c.call(ctx, "Rebind", BindRequest{Binding: b}, &resp); err != nil {
		return Binding{}, err
	}
	return resp.Binding, nil
}

// Lookup returns the binding for path.
func (c *Client) Lookup(ctx context.Context, path string) (Binding, error) {
	var resp LookupResponse
	if err := c.call(ctx, "Lookup", LookupRequest{Path: path}, &resp); err != nil {
		return Binding{}, err
	}
	return resp.Binding, nil
}

// Unbind removes the binding for path.
func (c *Client) Unbind(ctx context.Context, path string) error {
	var resp UnbindResponse
	return c.call(ctx, "Unbind", UnbindRequest{Path: path}, &resp)
}

// List returns every binding sorted by path.
func (c *Client) List(ctx context.Context) ([]Binding, error) {
	var resp ListResponse
	if err := c.call(ctx, "List", ListRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Bindings, nil
}

// Ping reports whether a registry answers at the address.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.List(ctx)
	return err
}

func (c *Client) call(ctx context.Context, method string, args, reply any) error {
	err := ipc.Call(ctx, c.addr, c.opts, ServiceName+"."+method, args, reply)
	if err == nil {
		return nil
	}
	return decodeError(c.addr, method, err)
}

// decodeError restores registry sentinels from remote error text.
func decodeError(addr, method string, err error) error {
	msg, remote := ipc.RemoteMessage(err)
	if !remote {
		return fmt.Errorf("registry %s %s: %w", addr, strings.ToLower(method), err)
	}
	for _, sentinel := range []error{ErrNotBound, ErrAlreadyBound, ErrInvalidPath} {
		prefix := sentinel.Error()
		if msg == prefix {
			return sentinel
		}
		if rest, ok := strings.CutPrefix(msg, prefix+": "); ok {
			return fmt.Errorf("%w: %s", sentinel, rest)
		}
	}
	return errors.New(msg)
}

package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"syscall"
	"time"
)

// DialOptions bounds how long a single call may take.
type DialOptions struct {
	DialTimeout time.Duration
	CallTimeout time.Duration
}

const defaultDialTimeout = 2 * time.Second

// Call dials addr, invokes method once, and closes the connection.
func Call(ctx context.Context, addr string, opts DialOptions, method string, args, reply any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.CallTimeout)
		defer cancel()
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	client := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	defer client.Close()

	pending := client.Go(method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case call := <-pending.Done:
		if call.Error != nil {
			return call.Error
		}
		return nil
	}
}

// RemoteMessage returns the message of an error raised by the remote method
// itself, as opposed to a transport failure.
func RemoteMessage(err error) (string, bool) {
	var serverErr rpc.ServerError
	if errors.As(err, &serverErr) {
		return string(serverErr), true
	}
	return "", false
}

// IsUnavailable reports whether err means nothing is listening at the address.
func IsUnavailable(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, rpc.ErrShutdown)
}

package ipc_test

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"rdaemon/internal/ipc"
	"rdaemon/internal/logging"
)

type EchoArgs struct {
	Text string `json:"text"`
}

type EchoReply struct {
	Text string `json:"text"`
}

type echoService struct {
	block chan struct{}
}

func (s *echoService) Echo(args EchoArgs, reply *EchoReply) error {
	if args.Text == "" {
		return errors.New("empty text")
	}
	reply.Text = strings.ToUpper(args.Text)
	return nil
}

func (s *echoService) Wait(_ EchoArgs, _ *EchoReply) error {
	<-s.block
	return nil
}

func startEcho(t *testing.T) (*ipc.Server, *echoService) {
	t.Helper()
	svc := &echoService{block: make(chan struct{})}
	srv, err := ipc.NewServer(context.Background(), "127.0.0.1:0", "Echo", svc, logging.NewNop())
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		close(svc.block)
		srv.Close()
	})
	return srv, svc
}

func TestCallRoundTrip(t *testing.T) {
	srv, _ := startEcho(t)

	var reply EchoReply
	if err := ipc.Call(context.Background(), srv.Addr().String(), ipc.DialOptions{}, "Echo.Echo", EchoArgs{Text: "hi"}, &reply); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if reply.Text != "HI" {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
}

func TestCallSurfacesRemoteError(t *testing.T) {
	srv, _ := startEcho(t)

	var reply EchoReply
	err := ipc.Call(context.Background(), srv.Addr().String(), ipc.DialOptions{}, "Echo.Echo", EchoArgs{}, &reply)
	msg, ok := ipc.RemoteMessage(err)
	if !ok {
		t.Fatalf("expected remote error, got %v", err)
	}
	if msg != "empty text" {
		t.Fatalf("unexpected remote message %q", msg)
	}
}

func TestCallHonoursCallTimeout(t *testing.T) {
	srv, _ := startEcho(t)

	var reply EchoReply
	start := time.Now()
	err := ipc.Call(context.Background(), srv.Addr().String(), ipc.DialOptions{CallTimeout: 100 * time.Millisecond}, "Echo.Wait", EchoArgs{}, &reply)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("call timeout not applied")
	}
}

func TestCallToClosedPortIsUnavailable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	var reply EchoReply
	err = ipc.Call(context.Background(), addr, ipc.DialOptions{DialTimeout: time.Second}, "Echo.Echo", EchoArgs{Text: "x"}, &reply)
	if err == nil {
		t.Fatal("expected dial error")
	}
	if !ipc.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if _, ok := ipc.RemoteMessage(err); ok {
		t.Fatal("transport failure must not look like a remote error")
	}
}

func TestServerPortAndClose(t *testing.T) {
	svc := &echoService{block: make(chan struct{})}
	defer close(svc.block)
	srv, err := ipc.NewServer(context.Background(), "127.0.0.1:0", "Echo", svc, nil)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	if srv.Port() == 0 {
		t.Fatal("expected bound port")
	}
	addr := srv.Addr().String()
	srv.Close()
	srv.Close()

	select {
	case <-srv.Done():
	default:
		t.Fatal("expected Done to be closed after Close")
	}
	var reply EchoReply
	if err := ipc.Call(context.Background(), addr, ipc.DialOptions{DialTimeout: time.Second}, "Echo.Echo", EchoArgs{Text: "x"}, &reply); err == nil {
		t.Fatal("expected call to fail after Close")
	}
}

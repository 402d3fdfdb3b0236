package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"time"

	"rdaemon/internal/logging"
)

// drainTimeout bounds how long Close waits for in-flight calls to finish
// writing their replies before connections are closed forcibly.
const drainTimeout = 2 * time.Second

// Server exposes a receiver's exported methods via JSON-RPC over TCP.
type Server struct {
	name      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	conns     map[net.Conn]struct{}
	closeOnce sync.Once
}

// NewServer listens on addr and registers receiver under name.
func NewServer(ctx context.Context, addr, name string, receiver any, logger *slog.Logger) (*Server, error) {
	if receiver == nil {
		return nil, errors.New("ipc server requires a receiver")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(name, receiver); err != nil {
		return nil, fmt.Errorf("register rpc service %s: %w", name, err)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		name:      name,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Port returns the bound TCP port.
func (s *Server) Port() int {
	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Serve starts accepting RPC connections until Close is called or the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("rpc server listening",
		logging.String("service", s.name),
		logging.String(logging.FieldEndpoint, s.listener.Addr().String()))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-s.ctx.Done()
		_ = s.listener.Close()
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "rpc_accept_failed",
					logging.Error(err),
					logging.String("service", s.name),
					logging.String(logging.FieldImpact, "clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check file descriptor limits and restart the process if needed"))
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

// Done is closed once the server has been asked to shut down.
func (s *Server) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Close stops accepting connections, lets in-flight calls drain, then closes
// whatever connections remain.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.listener.Close()

		drained := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(drained)
		}()
		select {
		case <-drained:
			return
		case <-time.After(drainTimeout):
		}

		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()
		<-drained
	})
}

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"rdaemon/internal/ipc"
	"rdaemon/internal/logging"
)

// ServerOption customizes a registry server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	lockPath string
}

// WithLockFile makes the server hold an exclusive flock on path while it runs,
// refusing to start when another process holds it.
func WithLockFile(path string) ServerOption {
	return func(o *serverOptions) {
		o.lockPath = strings.TrimSpace(path)
	}
}

// Server is a running name registry.
type Server struct {
	rpc    *ipc.Server
	table  *table
	lock   *flock.Flock
	logger *slog.Logger
}

// NewServer listens on addr and serves the registry protocol.
func NewServer(ctx context.Context, addr string, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger = logging.NewComponentLogger(logger, "registry")

	var lock *flock.Flock
	if o.lockPath != "" {
		lock = flock.New(o.lockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire registry lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("another registry already holds %s", o.lockPath)
		}
	}

	tbl := newTable()
	rpcServer, err := ipc.NewServer(ctx, addr, ServiceName, &service{table: tbl, logger: logger}, logger)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, err
	}
	return &Server{rpc: rpcServer, table: tbl, lock: lock, logger: logger}, nil
}

// Serve starts accepting clients.
func (s *Server) Serve() {
	s.logger.Info("registry listening",
		logging.String(logging.FieldEventType, "registry_listening"),
		logging.String(logging.FieldEndpoint, s.Addr()))
	s.rpc.Serve()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	return s.rpc.Addr().String()
}

// Port returns the listening port.
func (s *Server) Port() int {
	return s.rpc.Port()
}

// Bindings returns a snapshot of the current bindings.
func (s *Server) Bindings() []Binding {
	return s.table.list()
}

// Done is closed when the server shuts down.
func (s *Server) Done() <-chan struct{} {
	return s.rpc.Done()
}

// Close stops the server and releases its lock.
func (s *Server) Close() {
	s.rpc.Close()
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			logging.WarnWithContext(s.logger, "failed to release registry lock", "registry_lock_release_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "a new registry on this port may refuse to start"),
				logging.String(logging.FieldErrorHint, "remove the lock file manually"))
		}
	}
}

type table struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

func newTable() *table {
	return &table{bindings: make(map[string]Binding)}
}

func (t *table) bind(b Binding, replace bool) (Binding, error) {
	if strings.TrimSpace(b.Path) == "" {
		return Binding{}, ErrInvalidPath
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.bindings[b.Path]; exists && !replace {
		return Binding{}, fmt.Errorf("%w: %s", ErrAlreadyBound, b.Path)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.BoundAt.IsZero() {
		b.BoundAt = time.Now().UTC()
	}
	t.bindings[b.Path] = b
	return b, nil
}

func (t *table) lookup(path string) (Binding, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.bindings[path]
	if !ok {
		return Binding{}, fmt.Errorf("%w: %s", ErrNotBound, path)
	}
	return b, nil
}

func (t *table) unbind(path string) (Binding, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.bindings[path]
	if !ok {
		return Binding{}, fmt.Errorf("%w: %s", ErrNotBound, path)
	}
	delete(t.bindings, path)
	return b, nil
}

func (t *table) list() []Binding {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Binding, 0, len(t.bindings))
	for _, b := range t.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

type service struct {
	table  *table
	logger *slog.Logger
}

func (s *service) Bind(req BindRequest, resp *BindResponse) error {
	return s.bind(req, resp, false)
}

func (s *service) Rebind(req BindRequest, resp *BindResponse) error {
	return s.bind(req, resp, true)
}

func (s *service) bind(req BindRequest, resp *BindResponse, replace bool) error {
	stored, err := s.table.bind(req.Binding, replace)
	if err != nil {
		s.logger.Debug("bind rejected", logging.String(logging.FieldRegistryPath, req.Binding.Path), logging.Error(err))
		return err
	}
	resp.Binding = stored
	s.logger.Info("binding published",
		logging.String(logging.FieldEventType, "registry_bind"),
		logging.String(logging.FieldRegistryPath, stored.Path),
		logging.String(logging.FieldEndpoint, stored.Endpoint),
		logging.Bool("replaced", replace))
	return nil
}

func (s *service) Lookup(req LookupRequest, resp *LookupResponse) error {
	b, err := s.table.lookup(req.Path)
	if err != nil {
		return err
	}
	resp.Binding = b
	return nil
}

func (s *service) Unbind(req UnbindRequest, resp *UnbindResponse) error {
	b, err := s.table.unbind(req.Path)
	if err != nil {
		s.logger.Debug("unbind rejected", logging.String(logging.FieldRegistryPath, req.Path), logging.Error(err))
		return err
	}
	resp.Binding = b
	s.logger.Info("binding removed",
		logging.String(logging.FieldEventType, "registry_unbind"),
		logging.String(logging.FieldRegistryPath, b.Path))
	return nil
}

func (s *service) List(_ ListRequest, resp *ListResponse) error {
	resp.Bindings = s.table.list()
	return nil
}

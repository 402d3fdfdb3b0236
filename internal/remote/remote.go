// Package remote exports a daemon's lifecycle controls over the network and
// provides the handle used to invoke them from another process.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rdaemon/internal/ipc"
	"rdaemon/internal/logging"
)

// ServiceName is the RPC service exported control objects register under.
const ServiceName = "Daemon"

// Lifecycle is implemented by whatever the exported object controls.
type Lifecycle interface {
	Stop(ctx context.Context) error
	Destroy(ctx context.Context) error
	Status() Status
}

// Status describes the exported daemon.
type Status struct {
	Name      string    `json:"name"`
	State     string    `json:"state"`
	PID       int       `json:"pid"`
	ChildPID  int       `json:"child_pid"`
	StartedAt time.Time `json:"started_at"`
}

// StopRequest asks the daemon to stop its workload.
type StopRequest struct{}

// StopResponse acknowledges a stop.
type StopResponse struct {
	State string `json:"state"`
}

// DestroyRequest asks the daemon to tear itself down.
type DestroyRequest struct{}

// DestroyResponse acknowledges a destroy.
type DestroyResponse struct {
	State string `json:"state"`
}

// StatusRequest requests the daemon status.
type StatusRequest struct{}

// StatusResponse wraps the daemon status.
type StatusResponse struct {
	Status Status `json:"status"`
}

// Exporter serves a Lifecycle over JSON-RPC.
type Exporter struct {
	server *ipc.Server
}

// Export listens on addr and serves target. Call Serve to accept clients.
func Export(ctx context.Context, addr string, target Lifecycle, logger *slog.Logger) (*Exporter, error) {
	if target == nil {
		return nil, fmt.Errorf("export: target is required")
	}
	logger = logging.NewComponentLogger(logger, "remote")
	srv, err := ipc.NewServer(ctx, addr, ServiceName, &service{ctx: context.WithoutCancel(ctx), target: target, logger: logger}, logger)
	if err != nil {
		return nil, err
	}
	return &Exporter{server: srv}, nil
}

// Serve accepts clients in the background until Close.
func (e *Exporter) Serve() { e.server.Serve() }

// Endpoint returns the address clients should dial.
func (e *Exporter) Endpoint() string { return e.server.Addr().String() }

// Done is closed once the exporter stops.
func (e *Exporter) Done() <-chan struct{} { return e.server.Done() }

// Close stops serving after in-flight replies drain.
func (e *Exporter) Close() { e.server.Close() }

type service struct {
	ctx    context.Context
	target Lifecycle
	logger *slog.Logger
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("remote stop requested", logging.String(logging.FieldEventType, "remote_stop"))
	if err := s.target.Stop(s.ctx); err != nil {
		return err
	}
	resp.State = s.target.Status().State
	return nil
}

func (s *service) Destroy(_ DestroyRequest, resp *DestroyResponse) error {
	s.logger.Info("remote destroy requested", logging.String(logging.FieldEventType, "remote_destroy"))
	if err := s.target.Destroy(s.ctx); err != nil {
		return err
	}
	resp.State = s.target.Status().State
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.target.Status()
	return nil
}

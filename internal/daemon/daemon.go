package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"rdaemon/internal/config"
	"rdaemon/internal/logging"
	"rdaemon/internal/remote"
)

// State is the host lifecycle state.
type State string

const (
	// StateIdle is a host that has not been started.
	StateIdle State = "idle"
	// StateRunning is a host whose workload is running.
	StateRunning State = "running"
	// StateStopped is a host whose workload was stopped but which still answers.
	StateStopped State = "stopped"
	// StateDestroyed is terminal; the host rejects every further call.
	StateDestroyed State = "destroyed"
)

var (
	// ErrNotRunning is returned by Stop when the host is not running.
	ErrNotRunning = errors.New("daemon not running")
	// ErrDestroyed is returned by every lifecycle call after Destroy.
	ErrDestroyed = errors.New("daemon destroyed")
	// ErrAlreadyRunning is returned by Start when the host already runs.
	ErrAlreadyRunning = errors.New("daemon already running")
)

// Host runs the workload published under a single lookup path.
type Host struct {
	name       string
	lookupPath string
	lockPath   string
	command    string
	args       []string
	grace      time.Duration
	logger     *slog.Logger

	mu        sync.Mutex
	state     State
	lock      *flock.Flock
	child     *child
	startedAt time.Time
	destroyed chan struct{}
}

// New constructs a host for lookupPath from cfg.
func New(cfg *config.Config, lookupPath string, logger *slog.Logger) (*Host, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if err := config.ValidateLookupPath(lookupPath); err != nil {
		return nil, err
	}
	lockPath := cfg.LockPath(lookupPath)
	return &Host{
		name:       cfg.Daemon.Name,
		lookupPath: lookupPath,
		lockPath:   lockPath,
		command:    cfg.Daemon.Command,
		args:       append([]string(nil), cfg.Daemon.Args...),
		grace:      cfg.StopGrace(),
		logger:     logging.NewComponentLogger(logger, "daemon").With(logging.String(logging.FieldRegistryPath, lookupPath)),
		state:      StateIdle,
		lock:       flock.New(lockPath),
		destroyed:  make(chan struct{}),
	}, nil
}

// Start acquires the host lock and launches the configured command.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateDestroyed:
		return ErrDestroyed
	case StateRunning:
		return ErrAlreadyRunning
	}

	if h.state == StateIdle {
		ok, err := h.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("another daemon already serves %s (lock %s)", h.lookupPath, h.lockPath)
		}
	}

	if h.command != "" {
		c, err := startChild(h.command, h.args)
		if err != nil {
			if h.state == StateIdle {
				_ = h.lock.Unlock()
			}
			return fmt.Errorf("start workload: %w", err)
		}
		h.child = c
		go h.watchChild(c)
	}

	h.state = StateRunning
	h.startedAt = time.Now().UTC()
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", h.lockPath),
	}
	if h.child != nil {
		attrs = append(attrs, logging.Int("child_pid", h.child.pid()))
	}
	h.logger.InfoContext(ctx, "daemon started", logging.Args(attrs...)...)
	return nil
}

// Stop halts the workload. It fails unless the host is running.
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateDestroyed:
		return ErrDestroyed
	case StateRunning:
	default:
		return ErrNotRunning
	}

	if err := h.stopChildLocked(ctx); err != nil {
		return err
	}
	h.state = StateStopped
	h.logger.InfoContext(ctx, "daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	return nil
}

// Destroy tears the host down. A running workload is stopped first.
func (h *Host) Destroy(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateDestroyed {
		return ErrDestroyed
	}
	if h.state == StateRunning {
		if err := h.stopChildLocked(ctx); err != nil {
			return err
		}
	}
	if h.state != StateIdle {
		if err := h.lock.Unlock(); err != nil {
			logging.WarnWithContext(h.logger, "failed to release daemon lock", "daemon_lock_release_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "a new daemon for this path may refuse to start"),
				logging.String(logging.FieldErrorHint, "remove "+h.lockPath+" if no daemon is running"))
		}
	}
	h.state = StateDestroyed
	close(h.destroyed)
	h.logger.InfoContext(ctx, "daemon destroyed", logging.String(logging.FieldEventType, "daemon_destroyed"))
	return nil
}

// Status reports the current host state.
func (h *Host) Status() remote.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := remote.Status{
		Name:      h.name,
		State:     string(h.state),
		PID:       os.Getpid(),
		StartedAt: h.startedAt,
	}
	if h.child != nil {
		st.ChildPID = h.child.pid()
	}
	return st
}

// State returns the current lifecycle state.
func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Destroyed is closed once Destroy succeeds.
func (h *Host) Destroyed() <-chan struct{} {
	return h.destroyed
}

// LockPath returns the host lock file.
func (h *Host) LockPath() string {
	return h.lockPath
}

func (h *Host) stopChildLocked(ctx context.Context) error {
	if h.child == nil {
		return nil
	}
	c := h.child
	h.child = nil
	killed, err := c.terminate(h.grace)
	if err != nil {
		return fmt.Errorf("stop workload: %w", err)
	}
	if killed {
		logging.WarnWithContext(h.logger, "workload ignored SIGTERM", "daemon_child_killed",
			logging.Int("child_pid", c.pid()),
			logging.Duration("grace", h.grace),
			logging.String(logging.FieldImpact, "workload was killed without a clean shutdown"),
			logging.String(logging.FieldErrorHint, "raise stop_grace_seconds or fix the workload's signal handling"))
	}
	h.logger.DebugContext(ctx, "workload exited", logging.Int("child_pid", c.pid()), logging.Bool("killed", killed))
	return nil
}

func (h *Host) watchChild(c *child) {
	<-c.exited
	h.mu.Lock()
	current := h.child == c
	h.mu.Unlock()
	if !current {
		return
	}
	if err := c.exitErr(); err != nil {
		logging.WarnWithContext(h.logger, "workload exited unexpectedly", "daemon_child_exited",
			logging.Int("child_pid", c.pid()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "daemon remains bound but no workload is running"),
			logging.String(logging.FieldErrorHint, "check the configured command"))
		return
	}
	h.logger.Info("workload exited", logging.Int("child_pid", c.pid()))
}

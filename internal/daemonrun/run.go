package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"rdaemon/internal/config"
	"rdaemon/internal/daemon"
	"rdaemon/internal/ipc"
	"rdaemon/internal/logging"
	"rdaemon/internal/registry"
	"rdaemon/internal/remote"
)

// Options configures daemon process runtime behavior.
type Options struct {
	Port        int
	Path        string
	LogLevel    string
	Development bool
	// Logger overrides the file and console logger built from cfg.
	Logger *slog.Logger
	// Ready, when set, receives the published binding once the daemon is
	// reachable.
	Ready func(registry.Binding)
}

// Run hosts the daemon until it is destroyed remotely or the process is
// signalled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	port := opts.Port
	if port == 0 {
		port = cfg.Registry.Port
	}
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = cfg.Registry.Path
	}
	if err := config.ValidatePort(port); err != nil {
		return err
	}
	if err := config.ValidateLookupPath(path); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := opts.Logger
	if logger == nil {
		runID := time.Now().UTC().Format("20060102T150405.000Z")
		logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("rdaemon-%s.log", runID))
		built, err := logging.New(logging.Options{
			Level:       firstNonEmpty(opts.LogLevel, cfg.Logging.Level),
			Format:      cfg.Logging.Format,
			OutputPaths: []string{"stdout", logPath},
			Development: opts.Development,
		})
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = built
	}
	logger = logger.With(
		logging.Int(logging.FieldRegistryPort, port),
		logging.String(logging.FieldRegistryPath, path),
	)

	dialOpts := ipc.DialOptions{DialTimeout: cfg.DialTimeout(), CallTimeout: cfg.CallTimeout()}
	regClient, err := registry.Locate(cfg.Registry.Host, port, dialOpts)
	if err != nil {
		return err
	}
	embedded, err := ensureRegistry(signalCtx, cfg, regClient, port, logger)
	if err != nil {
		return err
	}
	if embedded != nil {
		defer embedded.Close()
	}

	host, err := daemon.New(cfg, path, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := host.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	defer func() {
		if host.State() != daemon.StateDestroyed {
			_ = host.Destroy(context.WithoutCancel(signalCtx))
		}
	}()

	pidPath := strings.TrimSuffix(cfg.LockPath(path), ".lock") + ".pid"
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	exporter, err := remote.Export(signalCtx, cfg.Daemon.Bind, host, logger)
	if err != nil {
		return fmt.Errorf("export daemon: %w", err)
	}
	defer exporter.Close()
	exporter.Serve()

	binding, err := regClient.Bind(signalCtx, registry.Binding{
		Path:     path,
		Endpoint: exporter.Endpoint(),
		Name:     cfg.Daemon.Name,
		PID:      os.Getpid(),
	})
	if err != nil {
		return fmt.Errorf("bind %s: %w", path, err)
	}
	logger.Info("daemon published",
		logging.String(logging.FieldEventType, "daemon_published"),
		logging.String(logging.FieldEndpoint, binding.Endpoint),
		logging.String("binding_id", binding.ID))
	if opts.Ready != nil {
		opts.Ready(binding)
	}

	select {
	case <-host.Destroyed():
		logger.Info("daemon destroyed remotely, exiting",
			logging.String(logging.FieldEventType, "daemon_exit_destroyed"))
		if embedded != nil {
			// The stopping client unbinds after destroy returns.
			waitForUnbind(embedded, path, cfg.CallTimeout())
		}
		return nil
	case <-signalCtx.Done():
	}

	logger.Info("daemon shutting down on signal",
		logging.String(logging.FieldEventType, "daemon_exit_signal"))
	unbindCtx, unbindCancel := context.WithTimeout(context.WithoutCancel(signalCtx), cfg.CallTimeout())
	defer unbindCancel()
	if err := regClient.Unbind(unbindCtx, path); err != nil && !errors.Is(err, registry.ErrNotBound) {
		logging.WarnWithContext(logger, "failed to remove binding on shutdown", "daemon_unbind_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "registry keeps a stale binding for this path"),
			logging.String(logging.FieldErrorHint, "run rdaemon stop to clear it or restart the registry"))
	}
	return nil
}

// ensureRegistry starts an embedded registry on port when none answers and
// cfg allows it.
func ensureRegistry(ctx context.Context, cfg *config.Config, client *registry.Client, port int, logger *slog.Logger) (*registry.Server, error) {
	err := client.Ping(ctx)
	if err == nil {
		return nil, nil
	}
	if !ipc.IsUnavailable(err) {
		return nil, fmt.Errorf("probe registry: %w", err)
	}
	if !cfg.Daemon.EmbeddedRegistry {
		return nil, fmt.Errorf("no registry at %s and embedded_registry is disabled: %w", client.Addr(), err)
	}
	addr := net.JoinHostPort(cfg.Registry.Host, strconv.Itoa(port))
	lockPath := filepath.Join(cfg.Paths.StateDir, fmt.Sprintf("registry-%d.lock", port))
	srv, err := registry.NewServer(ctx, addr, logger, registry.WithLockFile(lockPath))
	if err != nil {
		return nil, fmt.Errorf("start embedded registry: %w", err)
	}
	srv.Serve()
	logger.Info("embedded registry started",
		logging.String(logging.FieldEventType, "embedded_registry_started"),
		logging.String(logging.FieldEndpoint, srv.Addr()))
	return srv, nil
}

func waitForUnbind(srv *registry.Server, path string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		bound := false
		for _, b := range srv.Bindings() {
			if b.Path == path {
				bound = true
				break
			}
		}
		if !bound {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"rdaemon/internal/config"
	"rdaemon/internal/ipc"
	"rdaemon/internal/registry"
	"rdaemon/internal/remote"
)

// ErrRegistryUnavailable indicates nothing answers at the registry address.
var ErrRegistryUnavailable = errors.New("registry unavailable")

const pollInterval = 200 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	Port       int
	Path       string
}

// StartState reports what EnsureStarted found or did.
type StartState string

const (
	// StartStateStarted means a new host was launched and answered.
	StartStateStarted StartState = "started"
	// StartStateAlreadyRunning means a live daemon already held the path.
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	// ClearedStale is set when a binding whose endpoint no longer answered
	// was removed before launch.
	ClearedStale bool
	Binding      registry.Binding
	Status       remote.Status
}

// Launch starts a detached rdaemon host process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if opts.Port > 0 {
		args = append(args, "--port", strconv.Itoa(opts.Port))
	}
	if path := strings.TrimSpace(opts.Path); path != "" {
		args = append(args, "--path", path)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// LocateRegistry returns a client for the registry on port using cfg's host
// and timeouts.
func LocateRegistry(cfg *config.Config, port int) (*registry.Client, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	return registry.Locate(cfg.Registry.Host, port, DialOptions(cfg))
}

// WaitForBinding polls the registry until path is bound or timeout elapses.
// When accept is non-nil, bindings it rejects are treated as not yet bound.
func WaitForBinding(ctx context.Context, client *registry.Client, path string, timeout time.Duration, accept func(registry.Binding) bool) (registry.Binding, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		b, err := client.Lookup(ctx, path)
		switch {
		case err != nil:
			lastErr = err
		case accept == nil || accept(b):
			return b, nil
		default:
			lastErr = fmt.Errorf("binding %s at %s does not answer", b.ID, b.Endpoint)
		}
		if !time.Now().Add(pollInterval).Before(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return registry.Binding{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return registry.Binding{}, fmt.Errorf("daemon failed to publish %s: %w", path, lastErr)
}

// Probe returns the status of the daemon bound at path, if it answers.
func Probe(ctx context.Context, cfg *config.Config, port int, path string) (registry.Binding, remote.Status, error) {
	client, err := LocateRegistry(cfg, port)
	if err != nil {
		return registry.Binding{}, remote.Status{}, err
	}
	b, err := client.Lookup(ctx, path)
	if err != nil {
		return registry.Binding{}, remote.Status{}, mapUnavailable(err)
	}
	status, err := remote.Dial(b.Endpoint, DialOptions(cfg)).Status(ctx)
	if err != nil {
		return b, remote.Status{}, err
	}
	return b, status, nil
}

// EnsureStarted launches a daemon host for opts.Path unless one already
// answers, then waits for its registry binding.
func EnsureStarted(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if cfg == nil {
		return StartResult{}, errors.New("configuration not available")
	}
	if opts.Port == 0 {
		opts.Port = cfg.Registry.Port
	}
	if strings.TrimSpace(opts.Path) == "" {
		opts.Path = cfg.Registry.Path
	}

	b, status, err := Probe(ctx, cfg, opts.Port, opts.Path)
	if err == nil {
		return StartResult{State: StartStateAlreadyRunning, Binding: b, Status: status}, nil
	}
	var result StartResult
	staleID := ""
	if b.ID != "" {
		// Bound but silent: a destroyed daemon whose binding was never removed.
		if !ipc.IsUnavailable(err) {
			return StartResult{}, fmt.Errorf("daemon bound at %s (%s) does not answer: %w", opts.Path, b.Endpoint, err)
		}
		if err := clearStale(ctx, cfg, opts.Port, opts.Path, b.ID); err != nil {
			return StartResult{}, err
		}
		staleID = b.ID
		result.ClearedStale = true
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	client, err := LocateRegistry(cfg, opts.Port)
	if err != nil {
		return StartResult{}, err
	}
	dialOpts := DialOptions(cfg)
	answers := func(candidate registry.Binding) bool {
		if candidate.ID == staleID {
			return false
		}
		s, err := remote.Dial(candidate.Endpoint, dialOpts).Status(ctx)
		if err != nil {
			return false
		}
		status = s
		return true
	}
	b, err = WaitForBinding(ctx, client, opts.Path, waitTimeout, answers)
	if err != nil {
		return StartResult{}, err
	}
	result.State = StartStateStarted
	result.Launched = true
	result.Binding = b
	result.Status = status
	return result, nil
}

// clearStale unbinds path while it still carries the binding staleID.
func clearStale(ctx context.Context, cfg *config.Config, port int, path, staleID string) error {
	client, err := LocateRegistry(cfg, port)
	if err != nil {
		return err
	}
	current, err := client.Lookup(ctx, path)
	if errors.Is(err, registry.ErrNotBound) {
		return nil
	}
	if err != nil {
		return mapUnavailable(err)
	}
	if current.ID != staleID {
		return nil
	}
	if err := client.Unbind(ctx, path); err != nil && !errors.Is(err, registry.ErrNotBound) {
		return fmt.Errorf("remove stale binding for %s: %w", path, err)
	}
	return nil
}

// ListBindings returns every binding in the registry on port.
func ListBindings(ctx context.Context, cfg *config.Config, port int) ([]registry.Binding, error) {
	client, err := LocateRegistry(cfg, port)
	if err != nil {
		return nil, err
	}
	bindings, err := client.List(ctx)
	if err != nil {
		return nil, mapUnavailable(err)
	}
	return bindings, nil
}

func mapUnavailable(err error) error {
	if ipc.IsUnavailable(err) {
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	return err
}

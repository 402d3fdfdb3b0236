package daemon_test

import (
	"context"
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"rdaemon/internal/daemon"
	"rdaemon/internal/logging"
	"rdaemon/internal/testsupport"
)

const lookupPath = "/DaemonLoader"

func newHost(t *testing.T, opts ...testsupport.ConfigOption) *daemon.Host {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	h, err := daemon.New(cfg, lookupPath, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		if h.State() != daemon.StateDestroyed {
			_ = h.Destroy(context.Background())
		}
	})
	return h
}

func TestHostLifecycle(t *testing.T) {
	h := newHost(t)
	ctx := context.Background()

	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := h.Status().State; got != string(daemon.StateRunning) {
		t.Fatalf("expected running, got %q", got)
	}
	if err := h.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.State() != daemon.StateStopped {
		t.Fatalf("expected stopped, got %q", h.State())
	}
	if err := h.Destroy(ctx); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	select {
	case <-h.Destroyed():
	default:
		t.Fatal("expected Destroyed channel to be closed")
	}
}

func TestStopWhenNotRunningIsRejected(t *testing.T) {
	h := newHost(t)
	ctx := context.Background()

	if err := h.Stop(ctx); !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning before start, got %v", err)
	}
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := h.Stop(ctx); !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning on second stop, got %v", err)
	}
}

func TestCallsAfterDestroyAreRejected(t *testing.T) {
	h := newHost(t)
	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Destroy(ctx); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	for name, call := range map[string]func(context.Context) error{
		"start":   h.Start,
		"stop":    h.Stop,
		"destroy": h.Destroy,
	} {
		if err := call(ctx); !errors.Is(err, daemon.ErrDestroyed) {
			t.Fatalf("%s after destroy: expected ErrDestroyed, got %v", name, err)
		}
	}
}

func TestStartTwiceIsRejected(t *testing.T) {
	h := newHost(t)
	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestLockExcludesSecondHostForSamePath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	first, err := daemon.New(cfg, lookupPath, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second, err := daemon.New(cfg, lookupPath, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected second host to fail while lock is held")
	}

	if err := first.Destroy(ctx); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
	_ = second.Destroy(ctx)
}

func TestStopTerminatesChild(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	h := newHost(t, testsupport.WithCommand("sleep", "30"))
	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pid := h.Status().ChildPID
	if pid <= 0 {
		t.Fatalf("expected child pid, got %d", pid)
	}

	started := time.Now()
	if err := h.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if time.Since(started) > 900*time.Millisecond {
		t.Fatalf("expected SIGTERM to stop sleep promptly, took %s", time.Since(started))
	}
	if err := syscall.Kill(pid, 0); !errors.Is(err, syscall.ESRCH) {
		t.Fatalf("expected child %d to be gone, kill(0) returned %v", pid, err)
	}
}

func TestStopKillsChildIgnoringTerm(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	script := testsupport.WriteScript(t, testsupport.BaseDir(cfg), "stubborn.sh", "trap '' TERM\nwhile :; do sleep 1; done")

	h := newHost(t, testsupport.WithCommand(script))
	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Give the shell time to install its trap.
	time.Sleep(200 * time.Millisecond)
	pid := h.Status().ChildPID

	if err := h.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := syscall.Kill(pid, 0); !errors.Is(err, syscall.ESRCH) {
		t.Fatalf("expected child %d to be killed, kill(0) returned %v", pid, err)
	}
}

func TestDestroyWhileRunningStopsChild(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	h := newHost(t, testsupport.WithCommand("sleep", "30"))
	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pid := h.Status().ChildPID
	if err := h.Destroy(ctx); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := syscall.Kill(pid, 0); !errors.Is(err, syscall.ESRCH) {
		t.Fatalf("expected child %d to be gone, kill(0) returned %v", pid, err)
	}
}

func TestNewRejectsEmptyPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, "", logging.NewNop()); err == nil {
		t.Fatal("expected error for empty lookup path")
	}
}

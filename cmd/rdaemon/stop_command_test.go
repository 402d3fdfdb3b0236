package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"rdaemon/internal/stopper"
)

func TestStopCommandStopsPublishedDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	done := env.startDaemon(t, "/DaemonLoader")

	out, _, err := runCLI(t, []string{"stop"}, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon stopped")
	requireContains(t, out, "/DaemonLoader")

	select {
	case runErr := <-done:
		if runErr != nil {
			t.Fatalf("daemon Run: %v", runErr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not exit after stop")
	}
	if len(env.registry.Bindings()) != 0 {
		t.Fatalf("expected binding removed, got %+v", env.registry.Bindings())
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "/DaemonLoader")
	requireContains(t, out, "stopped")
}

func TestStopCommandMissingPath(t *testing.T) {
	env := setupCLITestEnv(t)

	_, stderr, err := runCLI(t, []string{"stop", "--path", "/Missing"}, env.configPath)
	if !errors.Is(err, stopper.ErrLookup) {
		t.Fatalf("expected lookup failure, got %v", err)
	}
	requireContains(t, err.Error(), "/Missing")
	requireContains(t, stderr, "Daemon not found")
	requireContains(t, stderr, "hint:")

	var exitOut bytes.Buffer
	reportError(&exitOut, err)
	if exitOut.Len() != 0 {
		t.Fatalf("expected stop failure not to be printed again, got %q", exitOut.String())
	}
	if n := strings.Count(stderr, "not bound: /Missing"); n != 1 {
		t.Fatalf("expected failure cause printed once, got %d times in:\n%s", n, stderr)
	}

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Lookup Failure (lookup)")
}

func TestStopCommandRejectsBadPort(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"stop", "--port", "70000"}, env.configPath); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestReportErrorPrintsUnreportedFailures(t *testing.T) {
	var out bytes.Buffer
	reportError(&out, errors.New("registry unavailable"))
	requireContains(t, out.String(), "registry unavailable")

	out.Reset()
	reportError(&out, reportedError{err: errors.New("already shown")})
	if out.Len() != 0 {
		t.Fatalf("expected no output for reported error, got %q", out.String())
	}
}

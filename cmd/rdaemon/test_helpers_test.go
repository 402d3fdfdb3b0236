package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rdaemon/internal/config"
	"rdaemon/internal/daemonrun"
	"rdaemon/internal/logging"
	"rdaemon/internal/registry"
	"rdaemon/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	registry   *registry.Server
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	srv := testsupport.StartRegistry(t, cfg)

	configPath := filepath.Join(homeDir, ".config", "rdaemon", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		registry:   srv,
		configPath: configPath,
		baseDir:    base,
	}
}

// startDaemon hosts a daemon in-process and waits for its binding.
func (e *cliTestEnv) startDaemon(t *testing.T, path string) <-chan error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		done <- daemonrun.Run(ctx, e.cfg, daemonrun.Options{
			Path:   path,
			Logger: logging.NewNop(),
			Ready:  func(registry.Binding) { close(ready) },
		})
	}()
	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("daemon exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for daemon")
	}
	return done
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[registry]
host = %q
port = %d
path = %q
dial_timeout = %d
call_timeout = %d

[daemon]
bind = %q
stop_grace_seconds = %d

[paths]
state_dir = %q
log_dir = %q

[journal]
enabled = %t
`,
		cfg.Registry.Host,
		cfg.Registry.Port,
		cfg.Registry.Path,
		cfg.Registry.DialTimeoutSeconds,
		cfg.Registry.CallTimeoutSeconds,
		cfg.Daemon.Bind,
		cfg.Daemon.StopGraceSeconds,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Journal.Enabled,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

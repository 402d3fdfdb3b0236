package testsupport

import (
	"path/filepath"
	"testing"

	"rdaemon/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Daemon.Bind = "127.0.0.1:0"
	cfgVal.Registry.DialTimeoutSeconds = 1
	cfgVal.Registry.CallTimeoutSeconds = 5
	cfgVal.Daemon.StopGraceSeconds = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithCommand sets the workload command supervised by the daemon host.
func WithCommand(command string, args ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Daemon.Command = command
		b.cfg.Daemon.Args = args
	}
}

// WithRegistryPort points the config at a registry port.
func WithRegistryPort(port int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Registry.Port = port
	}
}

// WithJournal toggles the stop journal.
func WithJournal(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

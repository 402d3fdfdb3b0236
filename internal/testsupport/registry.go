package testsupport

import (
	"context"
	"testing"

	"rdaemon/internal/config"
	"rdaemon/internal/logging"
	"rdaemon/internal/registry"
)

// StartRegistry serves an in-process registry on a free port, points cfg at
// it, and registers cleanup.
func StartRegistry(t testing.TB, cfg *config.Config) *registry.Server {
	t.Helper()

	srv, err := registry.NewServer(context.Background(), "127.0.0.1:0", logging.NewNop())
	if err != nil {
		t.Fatalf("registry.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)
	if cfg != nil {
		cfg.Registry.Host = "127.0.0.1"
		cfg.Registry.Port = srv.Port()
	}
	return srv
}

package daemonctl

import (
	"context"

	"rdaemon/internal/config"
	"rdaemon/internal/ipc"
	"rdaemon/internal/registry"
	"rdaemon/internal/remote"
	"rdaemon/internal/stopper"
)

// DialOptions derives per-call transport limits from cfg.
func DialOptions(cfg *config.Config) ipc.DialOptions {
	if cfg == nil {
		return ipc.DialOptions{}
	}
	return ipc.DialOptions{DialTimeout: cfg.DialTimeout(), CallTimeout: cfg.CallTimeout()}
}

// NewResolver returns a stopper resolver that locates registries on host and
// turns bindings into remote handles.
func NewResolver(host string, opts ipc.DialOptions) stopper.Resolver {
	return stopper.ResolverFunc(func(port int) (stopper.Registry, error) {
		client, err := registry.Locate(host, port, opts)
		if err != nil {
			return nil, err
		}
		return &registryAdapter{client: client, opts: opts}, nil
	})
}

type registryAdapter struct {
	client *registry.Client
	opts   ipc.DialOptions
}

func (r *registryAdapter) Lookup(ctx context.Context, path string) (stopper.Handle, error) {
	b, err := r.client.Lookup(ctx, path)
	if err != nil {
		return nil, err
	}
	return remote.Dial(b.Endpoint, r.opts), nil
}

func (r *registryAdapter) Unbind(ctx context.Context, path string) error {
	return r.client.Unbind(ctx, path)
}

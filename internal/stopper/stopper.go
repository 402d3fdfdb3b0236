package stopper

import (
	"context"
	"errors"
	"log/slog"

	"rdaemon/internal/logging"
)

// Handle is the remote control capability of a published daemon.
type Handle interface {
	Stop(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// Registry looks up and removes name bindings.
type Registry interface {
	Lookup(ctx context.Context, path string) (Handle, error)
	Unbind(ctx context.Context, path string) error
}

// Resolver produces a registry client for the registry listening on port.
type Resolver interface {
	Resolve(port int) (Registry, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(port int) (Registry, error)

func (f ResolverFunc) Resolve(port int) (Registry, error) { return f(port) }

// Stopper runs the terminate-and-unpublish sequence. It holds no per-call
// state and is safe for concurrent use; concurrent calls against the same
// path are not serialized.
type Stopper struct {
	resolver Resolver
	logger   *slog.Logger
}

// New constructs a Stopper. A nil logger discards output.
func New(resolver Resolver, logger *slog.Logger) (*Stopper, error) {
	if resolver == nil {
		return nil, errors.New("stopper requires a registry resolver")
	}
	return &Stopper{
		resolver: resolver,
		logger:   logging.NewComponentLogger(logger, "stopper"),
	}, nil
}

// Stop stops and destroys the daemon bound at path in the registry on port,
// then unbinds path. It returns nil only when all steps succeeded.
//
// Cancellation of ctx is ignored once Stop begins; timeouts belong to the
// registry and handle implementations. Context values are preserved.
func (s *Stopper) Stop(ctx context.Context, port int, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, s.logger).With(
		logging.Int(logging.FieldRegistryPort, port),
		logging.String(logging.FieldRegistryPath, path),
	)

	fail := func(op Op, err error) error {
		stopErr := &Error{Kind: kindFor(op), Op: op, Port: port, Path: path, Err: err}
		logger.Debug("stop sequence halted",
			logging.String("op", string(op)),
			logging.String(logging.FieldFailureKind, string(stopErr.Kind)),
			logging.Error(err))
		return stopErr
	}

	registry, err := s.resolver.Resolve(port)
	if err != nil {
		return fail(OpResolve, err)
	}
	if registry == nil {
		return fail(OpResolve, errors.New("resolver returned no registry"))
	}

	handle, err := registry.Lookup(ctx, path)
	if err != nil {
		return fail(OpLookup, err)
	}
	if handle == nil {
		return fail(OpLookup, errors.New("registry returned no handle"))
	}
	logger.Debug("daemon handle resolved")

	if err := handle.Stop(ctx); err != nil {
		return fail(OpStop, err)
	}
	logger.Debug("daemon stop acknowledged")

	if err := handle.Destroy(ctx); err != nil {
		return fail(OpDestroy, err)
	}
	logger.Debug("daemon destroy acknowledged")

	if err := registry.Unbind(ctx, path); err != nil {
		return fail(OpUnbind, err)
	}
	logger.Debug("daemon binding removed")
	return nil
}

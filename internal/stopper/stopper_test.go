package stopper_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"rdaemon/internal/stopper"
)

// fakeRegistry records every call in order so tests can assert sequencing.
type fakeRegistry struct {
	mu        sync.Mutex
	calls     []string
	bindings  map[string]*fakeHandle
	unbindErr error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{bindings: make(map[string]*fakeHandle)}
}

func (r *fakeRegistry) bind(path string, h *fakeHandle) {
	h.registry = r
	r.bindings[path] = h
}

func (r *fakeRegistry) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *fakeRegistry) Lookup(_ context.Context, path string) (stopper.Handle, error) {
	r.record("lookup " + path)
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.bindings[path]
	if !ok {
		return nil, errors.New("not bound: " + path)
	}
	return h, nil
}

func (r *fakeRegistry) Unbind(_ context.Context, path string) error {
	r.record("unbind " + path)
	if r.unbindErr != nil {
		return r.unbindErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bindings[path]; !ok {
		return errors.New("not bound: " + path)
	}
	delete(r.bindings, path)
	return nil
}

type fakeHandle struct {
	registry   *fakeRegistry
	stopErr    error
	destroyErr error
}

func (h *fakeHandle) Stop(context.Context) error {
	h.registry.record("stop")
	return h.stopErr
}

func (h *fakeHandle) Destroy(context.Context) error {
	h.registry.record("destroy")
	return h.destroyErr
}

func newStopper(t *testing.T, reg *fakeRegistry, wantPort int) *stopper.Stopper {
	t.Helper()
	s, err := stopper.New(stopper.ResolverFunc(func(port int) (stopper.Registry, error) {
		if port != wantPort {
			t.Fatalf("resolver got port %d, want %d", port, wantPort)
		}
		return reg, nil
	}), nil)
	if err != nil {
		t.Fatalf("stopper.New: %v", err)
	}
	return s
}

func assertCalls(t *testing.T, reg *fakeRegistry, want ...string) {
	t.Helper()
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if strings.Join(reg.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", reg.calls, want)
	}
}

func TestStopRunsSequenceInOrder(t *testing.T) {
	reg := newFakeRegistry()
	reg.bind("/DaemonLoader", &fakeHandle{})
	s := newStopper(t, reg, 1099)

	if err := s.Stop(context.Background(), 1099, "/DaemonLoader"); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	assertCalls(t, reg, "lookup /DaemonLoader", "stop", "destroy", "unbind /DaemonLoader")
}

func TestStopMissingBindingIsLookupFailure(t *testing.T) {
	reg := newFakeRegistry()
	s := newStopper(t, reg, 1099)

	err := s.Stop(context.Background(), 1099, "/Missing")
	if !errors.Is(err, stopper.ErrLookup) {
		t.Fatalf("expected lookup failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "/Missing") {
		t.Fatalf("expected message to include path, got %q", err.Error())
	}
	assertCalls(t, reg, "lookup /Missing")
}

func TestStopFailureHaltsBeforeDestroy(t *testing.T) {
	reg := newFakeRegistry()
	cause := errors.New("daemon refused")
	reg.bind("/DaemonLoader", &fakeHandle{stopErr: cause})
	s := newStopper(t, reg, 1099)

	err := s.Stop(context.Background(), 1099, "/DaemonLoader")
	if !errors.Is(err, stopper.ErrRemoteInvocation) {
		t.Fatalf("expected remote invocation failure, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}
	var stopErr *stopper.Error
	if !errors.As(err, &stopErr) || stopErr.Op != stopper.OpStop {
		t.Fatalf("expected stop op, got %#v", err)
	}
	assertCalls(t, reg, "lookup /DaemonLoader", "stop")
	if _, ok := reg.bindings["/DaemonLoader"]; !ok {
		t.Fatal("binding must remain after stop failure")
	}
}

func TestDestroyFailureLeavesBinding(t *testing.T) {
	reg := newFakeRegistry()
	reg.bind("/DaemonLoader", &fakeHandle{destroyErr: errors.New("resources busy")})
	s := newStopper(t, reg, 1099)

	err := s.Stop(context.Background(), 1099, "/DaemonLoader")
	if stopper.KindOf(err) != stopper.KindRemoteInvocation {
		t.Fatalf("expected remote invocation kind, got %v", err)
	}
	var stopErr *stopper.Error
	if !errors.As(err, &stopErr) || stopErr.Op != stopper.OpDestroy {
		t.Fatalf("expected destroy op, got %#v", err)
	}
	assertCalls(t, reg, "lookup /DaemonLoader", "stop", "destroy")
	if _, ok := reg.bindings["/DaemonLoader"]; !ok {
		t.Fatal("binding must remain after destroy failure")
	}
}

func TestUnbindFailureAfterTeardown(t *testing.T) {
	reg := newFakeRegistry()
	reg.bind("/DaemonLoader", &fakeHandle{})
	reg.unbindErr = errors.New("connection refused")
	s := newStopper(t, reg, 1099)

	err := s.Stop(context.Background(), 1099, "/DaemonLoader")
	if !errors.Is(err, stopper.ErrUnbind) {
		t.Fatalf("expected unbind failure, got %v", err)
	}
	if errors.Is(err, stopper.ErrLookup) || errors.Is(err, stopper.ErrRemoteInvocation) {
		t.Fatalf("unbind failure must not match other kinds: %v", err)
	}
	assertCalls(t, reg, "lookup /DaemonLoader", "stop", "destroy", "unbind /DaemonLoader")
}

func TestSecondStopIsLookupFailure(t *testing.T) {
	reg := newFakeRegistry()
	reg.bind("/DaemonLoader", &fakeHandle{})
	s := newStopper(t, reg, 1099)

	if err := s.Stop(context.Background(), 1099, "/DaemonLoader"); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	err := s.Stop(context.Background(), 1099, "/DaemonLoader")
	if !errors.Is(err, stopper.ErrLookup) {
		t.Fatalf("expected lookup failure on second stop, got %v", err)
	}
}

func TestResolveFailureIsLookupFailure(t *testing.T) {
	cause := errors.New("port 0 out of range")
	s, err := stopper.New(stopper.ResolverFunc(func(int) (stopper.Registry, error) {
		return nil, cause
	}), nil)
	if err != nil {
		t.Fatalf("stopper.New: %v", err)
	}
	err = s.Stop(context.Background(), 0, "/DaemonLoader")
	if !errors.Is(err, stopper.ErrLookup) || !errors.Is(err, cause) {
		t.Fatalf("expected lookup failure wrapping cause, got %v", err)
	}
	var stopErr *stopper.Error
	if !errors.As(err, &stopErr) || stopErr.Op != stopper.OpResolve {
		t.Fatalf("expected resolve op, got %#v", err)
	}
}

func TestStopIgnoresCancellationOnceStarted(t *testing.T) {
	reg := newFakeRegistry()
	reg.bind("/DaemonLoader", &fakeHandle{})
	s := newStopper(t, reg, 1099)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Stop(ctx, 1099, "/DaemonLoader"); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	assertCalls(t, reg, "lookup /DaemonLoader", "stop", "destroy", "unbind /DaemonLoader")
}

func TestNewRequiresResolver(t *testing.T) {
	if _, err := stopper.New(nil, nil); err == nil {
		t.Fatal("expected error for nil resolver")
	}
}

func TestKindOfNonStopError(t *testing.T) {
	if got := stopper.KindOf(errors.New("other")); got != "" {
		t.Fatalf("expected empty kind, got %q", got)
	}
	if got := stopper.KindOf(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}

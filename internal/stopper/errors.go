package stopper

import (
	"errors"
	"fmt"
)

// Kind classifies the step at which a stop sequence failed.
type Kind string

const (
	// KindLookup covers an unresolvable or unreachable registry and a missing binding.
	KindLookup Kind = "lookup_failure"
	// KindRemoteInvocation covers a Stop or Destroy call that errored or was rejected.
	KindRemoteInvocation Kind = "remote_invocation_failure"
	// KindUnbind covers a registry that could not remove the binding.
	KindUnbind Kind = "unbind_failure"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	// ErrLookup matches failures of the resolve and lookup steps.
	ErrLookup = errors.New("lookup failure")
	// ErrRemoteInvocation matches failures of the remote stop and destroy calls.
	ErrRemoteInvocation = errors.New("remote invocation failure")
	// ErrUnbind matches a failure to remove the binding after destroy.
	ErrUnbind = errors.New("unbind failure")
)

// Op names the operation that failed.
type Op string

const (
	// OpResolve locates the registry on the given port.
	OpResolve Op = "resolve"
	// OpLookup fetches the binding for the path.
	OpLookup Op = "lookup"
	// OpStop asks the remote daemon to stop its workload.
	OpStop Op = "stop"
	// OpDestroy asks the remote daemon to release itself.
	OpDestroy Op = "destroy"
	// OpUnbind removes the path from the registry.
	OpUnbind Op = "unbind"
)

// Error is the single failure reported by Stop.
type Error struct {
	Kind Kind
	Op   Op
	Port int
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %q on registry port %d failed", e.Op, e.Path, e.Port)
	}
	return fmt.Sprintf("%s %q on registry port %d: %v", e.Op, e.Path, e.Port, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind so callers can branch with errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrLookup:
		return e.Kind == KindLookup
	case ErrRemoteInvocation:
		return e.Kind == KindRemoteInvocation
	case ErrUnbind:
		return e.Kind == KindUnbind
	}
	return false
}

// KindOf returns the failure kind carried by err, or "" when err is nil or
// did not come from Stop.
func KindOf(err error) Kind {
	var stopErr *Error
	if errors.As(err, &stopErr) {
		return stopErr.Kind
	}
	return ""
}

func kindFor(op Op) Kind {
	switch op {
	case OpResolve, OpLookup:
		return KindLookup
	case OpStop, OpDestroy:
		return KindRemoteInvocation
	default:
		return KindUnbind
	}
}

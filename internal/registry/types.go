package registry

import (
	"errors"
	"time"
)

// ServiceName is the RPC service the registry registers under.
const ServiceName = "Registry"

var (
	// ErrNotBound indicates no binding exists for a path.
	ErrNotBound = errors.New("not bound")
	// ErrAlreadyBound indicates Bind found an existing binding.
	ErrAlreadyBound = errors.New("already bound")
	// ErrInvalidPath indicates an empty lookup path.
	ErrInvalidPath = errors.New("invalid lookup path")
)

// Binding associates a lookup path with an exported control object.
type Binding struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Endpoint string    `json:"endpoint"`
	Name     string    `json:"name"`
	PID      int       `json:"pid"`
	BoundAt  time.Time `json:"bound_at"`
}

// BindRequest publishes a binding.
type BindRequest struct {
	Binding Binding `json:"binding"`
}

// BindResponse echoes the stored binding.
type BindResponse struct {
	Binding Binding `json:"binding"`
}

// LookupRequest resolves a path.
type LookupRequest struct {
	Path string `json:"path"`
}

// LookupResponse carries the binding for the requested path.
type LookupResponse struct {
	Binding Binding `json:"binding"`
}

// UnbindRequest removes a path.
type UnbindRequest struct {
	Path string `json:"path"`
}

// UnbindResponse carries the binding that was removed.
type UnbindResponse struct {
	Binding Binding `json:"binding"`
}

// ListRequest fetches every binding.
type ListRequest struct{}

// ListResponse contains bindings sorted by path.
type ListResponse struct {
	Bindings []Binding `json:"bindings"`
}

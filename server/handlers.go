package server

import "context"

// Checks are the probes behind /healthz and /readyz. Nil probes pass.
type Checks struct {
	// Gateway reports whether the chat gateway session is connected.
	Gateway func() bool
	// Store performs a cheap read against the archive repository.
	Store func(ctx context.Context) error
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	checks Checks
}

// NewHandlers creates a new Handlers instance with the given checks.
func NewHandlers(checks Checks) *Handlers {
	return &Handlers{checks: checks}
}

func (h *Handlers) gatewayUp() bool {
	return h.checks.Gateway == nil || h.checks.Gateway()
}

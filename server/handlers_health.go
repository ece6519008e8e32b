package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// readyTimeout bounds the store probe of /readyz.
const readyTimeout = 3 * time.Second

// HandleHealthz responds to liveness probe requests by checking the gateway session.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if !h.gatewayUp() {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed system checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"gateway", func() error {
			if !h.gatewayUp() {
				return errors.New("gateway disconnected")
			}
			return nil
		}},
		{"store", func() error {
			if h.checks.Store == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			return h.checks.Store(ctx)
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			// Set headers before writing status code
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

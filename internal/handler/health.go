package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/segyhp/credit-engine/internal/clock"
	"github.com/segyhp/credit-engine/pkg/response"
)

// Check probes one dependency
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]Check
	timeout time.Duration
	clock   clock.Clock

	mu        sync.RWMutex
	lastSweep time.Time
	lastError string
}

func NewHealthHandler(checks map[string]Check, timeout time.Duration, clk clock.Clock) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		timeout: timeout,
		clock:   clk,
	}
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	LastSweep *time.Time        `json:"last_sweep,omitempty"`
	Checks    map[string]string `json:"checks"`
}

// RecordSweep stores the outcome of the latest statement sweep
func (h *HealthHandler) RecordSweep(at time.Time, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastSweep = at
	h.lastError = ""
	if err != nil {
		h.lastError = err.Error()
	}
}

// Health performs a basic liveness check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.status())
}

// Ready checks every registered dependency
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := h.status()

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status.Status = "error"
			status.Checks[name] = "failed: " + err.Error()
		} else {
			status.Checks[name] = "ok"
		}
	}

	if status.Status == "error" {
		response.ServiceUnavailable(w, "Service not ready", status)
		return
	}

	response.Success(w, status)
}

func (h *HealthHandler) status() HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: h.clock.Now(),
		Checks:    make(map[string]string),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.lastSweep.IsZero() {
		last := h.lastSweep
		status.LastSweep = &last
		status.Checks["sweep"] = "ok"
		if h.lastError != "" {
			status.Checks["sweep"] = "failed: " + h.lastError
		}
	}

	return status
}

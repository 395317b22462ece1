package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// DefaultCheckTimeout bounds a single health check.
const DefaultCheckTimeout = 5 * time.Second

// CheckFunc reports nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// HealthStatus is the /healthz response body.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one registered check.
type CheckResult struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// RegisterCheck adds a named check to /healthz. Checks may be registered
// after Start.
func (s *Server) RegisterCheck(name string, check CheckFunc) {
	if name == "" || check == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checks == nil {
		s.checks = make(map[string]CheckFunc)
	}
	s.checks[name] = check
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(s.checks))
	for name, c := range s.checks {
		checks[name] = c
	}
	s.mu.RUnlock()
	sort.Strings(names)

	status := HealthStatus{Status: "ok"}
	code := http.StatusOK
	if len(names) > 0 {
		status.Checks = make(map[string]CheckResult, len(names))
	}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), DefaultCheckTimeout)
		err := checks[name](ctx)
		cancel()

		res := CheckResult{Healthy: err == nil}
		if err != nil {
			res.Message = err.Error()
			status.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		status.Checks[name] = res
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

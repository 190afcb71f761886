package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"golang.org/x/sync/errgroup"
)

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	logging.FromContext(r.Context()).Debug("Health check requested")
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

// Ready runs every dependency check in parallel.
// Returns 200 if ready, 503 if not ready.
func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(names))
		ready  = true
	)
	// checks never return an error to the group so one failure does not
	// cancel the others
	var g errgroup.Group
	for _, name := range names {
		check := s.checks[name]
		g.Go(func() error {
			err := check(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("readiness check failed", "check", name, "error", err)
				checks[name] = "failed: " + err.Error()
				ready = false
				return nil
			}
			checks[name] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "not_ready", Timestamp: time.Now().UTC(), Checks: checks})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ready", Timestamp: time.Now().UTC(), Checks: checks})
}

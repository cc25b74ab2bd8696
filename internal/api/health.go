package api

import (
	"net/http"
)

type healthResponse struct {
	Status         string   `json:"status"`
	Bundles        []string `json:"bundles"`
	MountedViews   int      `json:"mounted_views"`
	ActiveSessions int      `json:"active_sessions"`
}

// handleHealthz reports "ok" while at least one engine bundle can run on this
// host and "degraded" with a 503 otherwise.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:         "ok",
		Bundles:        []string{},
		MountedViews:   s.views.Len(),
		ActiveSessions: s.sessions.Len(),
	}
	for _, info := range s.registry.List(r.Context()) {
		if info.Available {
			resp.Bundles = append(resp.Bundles, info.Name)
		}
	}

	status := http.StatusOK
	if len(resp.Bundles) == 0 {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

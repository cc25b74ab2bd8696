package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	TotalViews      int            `json:"total_views"`
	ViewsByState    map[string]int `json:"views_by_state"`
	ViewsByProfile  map[string]int `json:"views_by_profile"`
	TotalQueries    int            `json:"total_queries"`
	QueriesByStatus map[string]int `json:"queries_by_status"`
	AvgQueryMS      float64        `json:"avg_query_ms"`
	MountedViews    int            `json:"mounted_views"`
	ActiveSessions  int            `json:"active_sessions"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.logger.Error("get stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		TotalViews:      stats.TotalViews,
		ViewsByState:    stats.ViewsByState,
		ViewsByProfile:  stats.ViewsByProfile,
		TotalQueries:    stats.TotalQueries,
		QueriesByStatus: stats.QueriesByStatus,
		AvgQueryMS:      stats.AvgQueryMS,
		MountedViews:    s.views.Len(),
		ActiveSessions:  s.sessions.Len(),
	})
}

package api

import "net/http"

func (s *Server) handleListBundles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.List(r.Context()))
}

func (s *Server) handleListProfiles(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.views.Profiles())
}

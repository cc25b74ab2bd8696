package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/duckview/internal/model"
	"github.com/seantiz/duckview/internal/render"
	"github.com/seantiz/duckview/internal/store"
	"github.com/seantiz/duckview/internal/view"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// mountViewRequest is the JSON body for POST /v1/views.
type mountViewRequest struct {
	Profile    string `json:"profile"`
	DatasetURL string `json:"dataset_url"`
}

// executeQueryRequest is the JSON body for POST /v1/views/{id}/query.
type executeQueryRequest struct {
	SQL string `json:"sql"`
}

// snapshotResponse is a view snapshot whose rows keep column order.
type snapshotResponse struct {
	ID         string            `json:"id"`
	Profile    string            `json:"profile"`
	Title      string            `json:"title"`
	Editable   bool              `json:"editable"`
	Bundle     string            `json:"bundle,omitempty"`
	DatasetURL string            `json:"dataset_url"`
	State      string            `json:"state"`
	Message    string            `json:"message,omitempty"`
	Query      string            `json:"query"`
	Columns    []string          `json:"columns"`
	Rows       []json.RawMessage `json:"rows"`
	Seq        int64             `json:"seq"`
	DurationMS int64             `json:"duration_ms"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// viewResponse is the JSON response for GET /v1/views/{id}. Live is present
// while the view is mounted in this process.
type viewResponse struct {
	View *model.View       `json:"view"`
	Live *snapshotResponse `json:"live,omitempty"`
}

// listViewsResponse wraps the paginated list response.
type listViewsResponse struct {
	Views  []*model.View `json:"views"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// queryHistoryResponse is the JSON response for GET /v1/views/{id}/queries.
type queryHistoryResponse struct {
	ViewID  string              `json:"view_id"`
	Queries []model.QueryRecord `json:"queries"`
}

func newSnapshotResponse(snap view.Snapshot) (*snapshotResponse, error) {
	rows := make([]json.RawMessage, len(snap.Rows))
	for i, r := range snap.Rows {
		b, err := render.OrderedRow(snap.Columns, r)
		if err != nil {
			return nil, err
		}
		rows[i] = b
	}
	return &snapshotResponse{
		ID:         snap.ID,
		Profile:    snap.Profile,
		Title:      snap.Title,
		Editable:   snap.Editable,
		Bundle:     snap.Bundle,
		DatasetURL: snap.DatasetURL,
		State:      snap.State,
		Message:    snap.Message,
		Query:      snap.Query,
		Columns:    snap.Columns,
		Rows:       rows,
		Seq:        snap.Seq,
		DurationMS: snap.DurationMS,
		CreatedAt:  snap.CreatedAt,
		UpdatedAt:  snap.UpdatedAt,
	}, nil
}

func (s *Server) writeSnapshot(w http.ResponseWriter, status int, snap view.Snapshot) {
	resp, err := newSnapshotResponse(snap)
	if err != nil {
		s.logger.Error("encode snapshot", "view_id", snap.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to encode result")
		return
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleMountView(w http.ResponseWriter, r *http.Request) {
	var req mountViewRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Profile == "" {
		s.writeError(w, http.StatusBadRequest, "profile is required")
		return
	}

	v, err := s.views.Mount(r.Context(), req.Profile, req.DatasetURL)
	if errors.Is(err, view.ErrUnknownProfile) || errors.Is(err, view.ErrDatasetURL) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("mount view", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to mount view")
		return
	}

	s.writeSnapshot(w, http.StatusAccepted, v.Snapshot())
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.store.GetView(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "view not found")
		return
	}
	if err != nil {
		s.logger.Error("get view", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get view")
		return
	}

	resp := viewResponse{View: rec}
	if v, err := s.views.Get(id); err == nil {
		live, err := newSnapshotResponse(v.Snapshot())
		if err != nil {
			s.logger.Error("encode snapshot", "view_id", id, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to encode result")
			return
		}
		resp.Live = live
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListViews(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	views, total, err := s.store.ListViews(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list views", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list views")
		return
	}

	s.writeJSON(w, http.StatusOK, listViewsResponse{
		Views:  views,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleExecuteQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req executeQueryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	snap, err := s.views.Execute(r.Context(), id, req.SQL)
	if errors.Is(err, view.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "view not mounted")
		return
	}
	if err != nil {
		s.logger.Error("execute query", "view_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to execute query")
		return
	}

	s.writeSnapshot(w, http.StatusOK, snap)
}

func (s *Server) handleUnmountView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.views.Unmount(id); err != nil {
		if errors.Is(err, view.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "view not mounted")
			return
		}
		s.logger.Warn("unmount view", "view_id", id, "error", err)
	}

	rec, err := s.store.GetView(r.Context(), id)
	if err != nil {
		s.logger.Error("get unmounted view", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve view")
		return
	}

	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetQueryHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.store.GetView(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "view not found")
			return
		}
		s.logger.Error("get view for query history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get view")
		return
	}

	queries, err := s.store.ListQueries(r.Context(), id)
	if err != nil {
		s.logger.Error("list queries", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get query history")
		return
	}

	s.writeJSON(w, http.StatusOK, queryHistoryResponse{ViewID: id, Queries: queries})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

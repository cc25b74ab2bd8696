package api

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/duckview/internal/bundle"
	"github.com/seantiz/duckview/internal/config"
	"github.com/seantiz/duckview/internal/model"
	"github.com/seantiz/duckview/internal/render"
	"github.com/seantiz/duckview/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages struct {
	index *template.Template
	view  *template.Template
}

func newPages() *pages {
	parse := func(name string) *template.Template {
		return template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name))
	}
	return &pages{
		index: parse("index.html"),
		view:  parse("view.html"),
	}
}

type indexPage struct {
	Title    string
	Refresh  bool
	Profiles []config.Profile
	Views    []view.Snapshot
	Bundles  []bundle.Info
}

type viewPage struct {
	Title   string
	Refresh bool
	Snap    view.Snapshot
	Cells   [][]string
}

func newViewPage(snap view.Snapshot) viewPage {
	return viewPage{
		Title:   snap.Title,
		Refresh: snap.State == model.StateInitializing || snap.State == model.StateLoading,
		Snap:    snap,
		Cells:   render.Grid(snap.Columns, snap.Rows),
	}
}

func (s *Server) renderPage(w http.ResponseWriter, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("render page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, s.pages.index, indexPage{
		Title:    "Views",
		Profiles: s.views.Profiles(),
		Views:    s.views.Snapshots(),
		Bundles:  s.registry.List(r.Context()),
	})
}

func (s *Server) handleMountPage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	v, err := s.views.Mount(r.Context(), r.PostFormValue("profile"), r.PostFormValue("dataset_url"))
	if errors.Is(err, view.ErrUnknownProfile) || errors.Is(err, view.ErrDatasetURL) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.logger.Error("mount view", "error", err)
		http.Error(w, "failed to mount view", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/views/"+v.ID(), http.StatusSeeOther)
}

func (s *Server) handleViewPage(w http.ResponseWriter, r *http.Request) {
	v, err := s.views.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	s.renderPage(w, s.pages.view, newViewPage(v.Snapshot()))
}

func (s *Server) handleExecutePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	if _, err := s.views.Execute(r.Context(), id, r.PostFormValue("sql")); err != nil {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/views/"+id, http.StatusSeeOther)
}

func (s *Server) handleUnmountPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.views.Unmount(id); err != nil && !errors.Is(err, view.ErrNotFound) {
		s.logger.Warn("unmount view", "view_id", id, "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

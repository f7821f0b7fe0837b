package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jwulff/gridboard/internal/domain"
	"github.com/jwulff/gridboard/internal/storage"
)

// dashboardID returns the dashboardId query parameter, falling back to the
// default dashboard.
func (s *Server) dashboardID(r *http.Request) (string, error) {
	if id := r.URL.Query().Get("dashboardId"); id != "" {
		return id, nil
	}
	d, err := s.repos.Dashboards.GetDefault(r.Context())
	if err != nil {
		return "", err
	}
	return d.ID, nil
}

type layoutResponse struct {
	Dashboard *domain.Dashboard  `json:"dashboard"`
	Widgets   []domain.Placement `json:"widgets"`
	Groups    []*domain.Group    `json:"groups"`
}

func (s *Server) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	id, err := s.dashboardID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.repos.Dashboards.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	placements, err := s.repos.Layouts.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	groups, err := s.repos.Groups.List(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if groups == nil {
		groups = []*domain.Group{}
	}
	writeJSON(w, http.StatusOK, layoutResponse{Dashboard: d, Widgets: placements, Groups: groups})
}

func (s *Server) handleSetLayout(w http.ResponseWriter, r *http.Request) {
	var rect domain.Rect
	if err := decodeJSON(r, &rect, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := checkRect(rect); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.dashboardID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.repos.Layouts.Set(r.Context(), id, chi.URLParam(r, "widgetId"), rect); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

type batchLayoutsRequest struct {
	Layouts []domain.WidgetRect `json:"layouts"`
}

func (s *Server) handleBatchSetLayouts(w http.ResponseWriter, r *http.Request) {
	var req batchLayoutsRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := checkRects(req.Layouts); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.dashboardID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.repos.Layouts.BatchSet(r.Context(), id, req.Layouts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Updated: n})
}

// placeRequest names a widget and an optional rectangle.
type placeRequest struct {
	WidgetID string       `json:"widget_id"`
	Layout   *domain.Rect `json:"layout"`
}

type placeResponse struct {
	WidgetID string      `json:"widget_id"`
	Layout   domain.Rect `json:"layout"`
}

func decodePlaceRequest(r *http.Request) (placeRequest, error) {
	var req placeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		return req, err
	}
	if req.WidgetID == "" {
		return req, storage.Invalidf("widget_id is required")
	}
	if req.Layout != nil {
		if err := checkRect(*req.Layout); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (s *Server) handleAttachWidget(w http.ResponseWriter, r *http.Request) {
	req, err := decodePlaceRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.dashboardID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rect, err := s.repos.Layouts.Attach(r.Context(), id, req.WidgetID, req.Layout)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, placeResponse{WidgetID: req.WidgetID, Layout: rect})
}

func (s *Server) handleDetachWidget(w http.ResponseWriter, r *http.Request) {
	id, err := s.dashboardID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.repos.Layouts.Detach(r.Context(), id, chi.URLParam(r, "widgetId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

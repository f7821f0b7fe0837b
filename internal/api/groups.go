package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jwulff/gridboard/internal/domain"
)

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	id, err := s.dashboardID(r)
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
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) decodeGroupInput(r *http.Request) (domain.GroupInput, error) {
	var in domain.GroupInput
	if err := decodeJSON(r, &in, false); err != nil {
		return in, err
	}
	if in.Layout != nil {
		if err := checkRect(*in.Layout); err != nil {
			return in, err
		}
	}
	return in, checkRects(in.Members)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	in, err := s.decodeGroupInput(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.dashboardID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.repos.Groups.Create(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleCreateGroupWithMembers(w http.ResponseWriter, r *http.Request) {
	in, err := s.decodeGroupInput(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.dashboardID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.repos.Groups.CreateWithMembers(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// group loads the {id} group, which also tells which dashboard it is on.
func (s *Server) group(r *http.Request) (*domain.Group, error) {
	return s.repos.Groups.Get(r.Context(), chi.URLParam(r, "id"))
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.group(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var patch domain.GroupPatch
	if err := decodeJSON(r, &patch, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.repos.Groups.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.group(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.repos.Groups.Delete(r.Context(), g.DashboardID, g.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

func (s *Server) handleAddGroupMember(w http.ResponseWriter, r *http.Request) {
	req, err := decodePlaceRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.group(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rect, err := s.repos.Groups.AddMember(r.Context(), g.DashboardID, g.ID, req.WidgetID, req.Layout)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, placeResponse{WidgetID: req.WidgetID, Layout: rect})
}

func (s *Server) handleRemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	g, err := s.group(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	widgetID := chi.URLParam(r, "widgetId")
	rect, err := s.repos.Groups.RemoveMember(r.Context(), g.DashboardID, g.ID, widgetID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, placeResponse{WidgetID: widgetID, Layout: rect})
}

func (s *Server) handleSetGroupMemberLayouts(w http.ResponseWriter, r *http.Request) {
	var req batchLayoutsRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := checkRects(req.Layouts); err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.group(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.repos.Groups.SetMemberLayouts(r.Context(), g.DashboardID, g.ID, req.Layouts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Updated: n})
}

func (s *Server) handleSetGroupLayout(w http.ResponseWriter, r *http.Request) {
	var rect domain.Rect
	if err := decodeJSON(r, &rect, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := checkRect(rect); err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.group(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.repos.Groups.SetGroupLayout(r.Context(), g.DashboardID, g.ID, rect); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jwulff/gridboard/internal/domain"
	"github.com/jwulff/gridboard/internal/integration"
	"github.com/jwulff/gridboard/internal/storage"
)

func (s *Server) handleListWidgets(w http.ResponseWriter, r *http.Request) {
	widgets, err := s.repos.Widgets.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, widgets)
}

func (s *Server) handleCreateWidget(w http.ResponseWriter, r *http.Request) {
	var in domain.WidgetInput
	if err := decodeJSON(r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	widget, err := s.repos.Widgets.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, widget)
}

func (s *Server) handleGetWidget(w http.ResponseWriter, r *http.Request) {
	widget, err := s.repos.Widgets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, widget)
}

func (s *Server) handleUpdateWidget(w http.ResponseWriter, r *http.Request) {
	var patch domain.WidgetPatch
	if err := decodeJSON(r, &patch, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	widget, err := s.repos.Widgets.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, widget)
}

func (s *Server) handleDeleteWidget(w http.ResponseWriter, r *http.Request) {
	if err := s.repos.Widgets.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	integrations, err := s.repos.Integrations.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, integrations)
}

func (s *Server) handleCreateIntegration(w http.ResponseWriter, r *http.Request) {
	var in domain.IntegrationInput
	if err := decodeJSON(r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.repos.Integrations.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetIntegration(w http.ResponseWriter, r *http.Request) {
	in, err := s.repos.Integrations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleDeleteIntegration(w http.ResponseWriter, r *http.Request) {
	if err := s.repos.Integrations.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

type integrationType struct {
	Type         string                   `json:"type"`
	Capabilities []integration.Capability `json:"capabilities"`
}

func (s *Server) handleListIntegrationTypes(w http.ResponseWriter, r *http.Request) {
	types := []integrationType{}
	for _, t := range s.integrations.Types() {
		h, _ := s.integrations.Get(t)
		types = append(types, integrationType{Type: t, Capabilities: h.Capabilities()})
	}
	writeJSON(w, http.StatusOK, types)
}

// handler resolves the {id} integration and the handler for its type.
func (s *Server) handler(r *http.Request) (*domain.Integration, integration.Handler, error) {
	in, err := s.repos.Integrations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, nil, err
	}
	h, ok := s.integrations.Get(in.Type)
	if !ok {
		return nil, nil, storage.Invalidf("no handler for integration type %q", in.Type)
	}
	return in, h, nil
}

func (s *Server) handleTestIntegration(w http.ResponseWriter, r *http.Request) {
	in, h, err := s.handler(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := h.TestConnection(r.Context(), in.Config)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetIntegrationData(w http.ResponseWriter, r *http.Request) {
	in, h, err := s.handler(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !in.Enabled {
		s.writeError(w, r, storage.Invalidf("integration %s is disabled", in.ID))
		return
	}

	data, err := h.GetData(r.Context(), in.Config, r.URL.Query().Get("metric"))
	switch {
	case errors.Is(err, integration.ErrUnknownMetric), errors.Is(err, integration.ErrConfig):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case err != nil:
		s.log.WithError(err).WithField("integration_id", in.ID).Warn("integration request failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "integration request failed"})
	default:
		writeJSON(w, http.StatusOK, data)
	}
}

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/jwulff/gridboard/internal/domain"
	"github.com/jwulff/gridboard/internal/storage"
)

func (s *Server) handleListDashboards(w http.ResponseWriter, r *http.Request) {
	dashboards, err := s.repos.Dashboards.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if dashboards == nil {
		dashboards = []*domain.Dashboard{}
	}
	writeJSON(w, http.StatusOK, dashboards)
}

func (s *Server) handleCreateDashboard(w http.ResponseWriter, r *http.Request) {
	var in domain.DashboardInput
	if err := decodeJSON(r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.repos.Dashboards.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.repos.Dashboards.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleGetDefaultDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.repos.Dashboards.GetDefault(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleGetDashboardBySlug(w http.ResponseWriter, r *http.Request) {
	d, err := s.repos.Dashboards.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateDashboard(w http.ResponseWriter, r *http.Request) {
	var patch domain.DashboardPatch
	if err := decodeJSON(r, &patch, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.repos.Dashboards.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDashboard(w http.ResponseWriter, r *http.Request) {
	if err := s.repos.Dashboards.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

func (s *Server) handleSetDefaultDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.repos.Dashboards.SetDefault(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type duplicateRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleDuplicateDashboard(w http.ResponseWriter, r *http.Request) {
	var req duplicateRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.repos.Dashboards.Duplicate(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleExportDashboard(w http.ResponseWriter, r *http.Request) {
	doc, err := s.repos.Dashboards.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	filename := exportFilename(doc.Dashboard.Name)
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.json"`, filename))
		writeJSON(w, http.StatusOK, doc)
	case "yaml", "yml":
		data, err := yaml.Marshal(doc)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("failed to marshal yaml: %w", err))
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.yaml"`, filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		s.writeError(w, r, storage.Invalidf("unsupported export format %q", format))
	}
}

// exportFilename turns a dashboard name into a safe file stem.
func exportFilename(name string) string {
	stem := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, name)
	stem = strings.Trim(stem, "-")
	if stem == "" {
		stem = "dashboard"
	}
	return stem
}

// importRequest is the JSON import body. A bare document without the
// wrapper is accepted too.
type importRequest struct {
	Document       *domain.Document  `json:"document"`
	IntegrationMap map[string]string `json:"integration_map"`
}

func (s *Server) handleImportDashboard(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		s.writeError(w, r, storage.Invalidf("request body is required"))
		return
	}

	var req importRequest
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		var doc domain.Document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			s.writeError(w, r, storage.Invalidf("invalid YAML body: %v", err))
			return
		}
		req.Document = &doc
	} else {
		if err := json.Unmarshal(data, &req); err != nil {
			s.writeError(w, r, storage.Invalidf("invalid JSON body: %v", err))
			return
		}
		if req.Document == nil {
			var doc domain.Document
			if err := json.Unmarshal(data, &doc); err != nil {
				s.writeError(w, r, storage.Invalidf("invalid JSON body: %v", err))
				return
			}
			req.Document = &doc
		}
	}

	if err := checkDocument(req.Document); err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.IntegrationMap == nil {
		if req.IntegrationMap, err = s.repos.Integrations.TypeMap(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	result, err := s.repos.Dashboards.Import(r.Context(), req.Document, req.IntegrationMap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

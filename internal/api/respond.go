package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/jwulff/gridboard/internal/storage"
)

// maxBodyBytes caps request bodies, import documents included.
const maxBodyBytes = 8 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type okResponse struct {
	Success bool `json:"success"`
}

type countResponse struct {
	Updated int `json:"updated"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps repository errors onto status codes. Unclassified errors
// are logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound storage.ErrNotFound
	var invalid storage.ErrInvalid
	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: notFound.Error()})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalid.Error()})
	default:
		s.log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// readBody returns the request body, capped at maxBodyBytes.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return nil, storage.Invalidf("failed to read request body: %v", err)
	}
	return data, nil
}

// decodeJSON decodes the request body into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	data, err := readBody(r)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		if allowEmpty {
			return nil
		}
		return storage.Invalidf("request body is required")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return storage.Invalidf("invalid JSON body: %v", err)
	}
	return nil
}

// internal/server/respond.go
package server

import (
	"encoding/json"
	"net/http"

	stderrors "errors"

	apperrors "admission-orchestrator/internal/common/errors"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError translates StandardError codes into HTTP statuses and a
// consistent JSON envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var stdErr *apperrors.StandardError
	if !stderrors.As(err, &stdErr) {
		s.logger.Error("request failed", map[string]interface{}{
			"path":  r.URL.Path,
			"error": err,
		})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch stdErr.Code {
	case apperrors.ErrCodeApplicationNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeIntakeValidationFailed:
		status = http.StatusBadRequest
	case apperrors.ErrCodeInvalidTransition:
		status = http.StatusConflict
	case apperrors.ErrCodeCollaboratorUnavailable:
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"error":   stdErr.Code,
		"message": stdErr.Message,
		"details": stdErr.Details,
	})
}

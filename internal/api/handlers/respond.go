package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akarpov/docsync/internal/apperrors"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeAppError maps the error taxonomy onto HTTP codes, hiding internal
// details for anything unclassified.
func writeAppError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.Status(err), map[string]string{"error": apperrors.PublicMessage(err)})
}

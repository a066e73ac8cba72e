package server

import (
	"encoding/json"
	"net/http"

	mnerrors "github.com/otherjamesbrown/minutes/pkg/errors"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes err as {"error": message}. Errors that are not an
// *APIError become a generic 500.
func writeError(w http.ResponseWriter, err error) {
	ae, ok := mnerrors.As(err)
	if !ok {
		ae = mnerrors.Internal("Internal server error", err)
	}
	writeJSON(w, ae.HTTPStatus(), errorResponse{Error: ae.Message})
}

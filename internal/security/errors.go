package security

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorResponse is the uniform error body for every failed request.
type ErrorResponse struct {
	Timestamp     string `json:"timestamp"`
	Status        int    `json:"status"`
	Error         string `json:"error"`
	Message       string `json:"message"`
	Path          string `json:"path"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// WriteJSONError writes the uniform error body. The error field is the
// standard status text; message carries the human-readable detail.
func WriteJSONError(w http.ResponseWriter, r *http.Request, status int, message string) {
	cid := CorrelationIDFromContext(r.Context())
	if cid != "" {
		w.Header().Set(CorrelationIDHeader, cid)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Status:        status,
		Error:         http.StatusText(status),
		Message:       message,
		Path:          r.URL.Path,
		CorrelationID: cid,
	})
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/sells-group/leadgen/internal/leadgen"
	"github.com/sells-group/leadgen/internal/model"
)

const (
	maxBodyBytes = 1 << 20
	maxListLimit = 500
)

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Message: message})
}

// writeReason writes a pipeline-shaped failure outside the pipeline.
func writeReason(w http.ResponseWriter, status int, reason leadgen.Reason) {
	writeJSON(w, status, leadgen.Envelope{
		Data:    []model.Lead{},
		Reason:  reason,
		Message: reason.Message(),
	})
}

// envelopeStatus maps a generation outcome to its HTTP status. Empty
// results are a normal outcome and stay 200.
func envelopeStatus(env leadgen.Envelope) int {
	if env.Success {
		return http.StatusOK
	}
	switch env.Reason {
	case leadgen.ReasonUnauthorized:
		return http.StatusUnauthorized
	case leadgen.ReasonQuotaExceeded:
		return http.StatusForbidden
	case leadgen.ReasonMissingProviderKey:
		return http.StatusServiceUnavailable
	case leadgen.ReasonNoMatches, leadgen.ReasonTooStrict:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(dst)
}

package server

import (
	"net/http"

	json "github.com/goccy/go-json"
)

// errorResponse is the failure envelope shared by all endpoints.
type errorResponse struct {
	Error    string `json:"error"`
	Reason   string `json:"reason"`
	Required int    `json:"required,omitempty"`
	Current  int    `json:"current,omitempty"`
}

// writeJSON encodes v and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the failure envelope. counts, when non-nil, carries
// required/current for InsufficientData responses.
func writeError(w http.ResponseWriter, status int, code, reason string, counts *[2]int) {
	resp := errorResponse{Error: code, Reason: reason}
	if counts != nil {
		resp.Required = counts[0]
		resp.Current = counts[1]
	}
	writeJSON(w, status, resp)
}

// decodeJSON decodes the request body into v, enforcing a single JSON
// document with known types. Returns false (after responding 400) on
// malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

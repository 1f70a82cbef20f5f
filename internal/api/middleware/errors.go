package middleware

import (
	"encoding/json"
	"net/http"
)

// errorEnvelope is the error response shape shared with the api package,
// redeclared here so middleware does not import api.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeErrorEnvelope writes a JSON error envelope with a stable machine code.
func writeErrorEnvelope(w http.ResponseWriter, statusCode int, code, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	return json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

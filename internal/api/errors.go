package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lexhub-io/lexhub/internal/api/middleware"
)

// Stable machine-readable error codes. Clients dispatch on these, never on
// the human-readable message.
const (
	CodeInvalidNsid   = "INVALID_NSID"
	CodeInvalidDid    = "INVALID_DID"
	CodeInvalidLimit  = "INVALID_LIMIT"
	CodeInvalidOffset = "INVALID_OFFSET"
	CodeNotFound      = "NOT_FOUND"
	CodeInternal      = "INTERNAL"
)

type (
	// ErrorBody is the inner payload of an error response.
	ErrorBody struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	// ErrorResponse is the envelope every failed request carries.
	ErrorResponse struct {
		Error ErrorBody `json:"error"`
	}

	// Pagination describes the window of a paginated listing.
	Pagination struct {
		Total  int64 `json:"total"`
		Limit  int   `json:"limit"`
		Offset int   `json:"offset"`
	}

	// DataResponse is the envelope every successful request carries.
	// Pagination is present only on listing endpoints.
	DataResponse struct {
		Data       any         `json:"data"`
		Pagination *Pagination `json:"pagination,omitempty"`
	}
)

// writeError writes the standard error envelope with the given status and
// stable code.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorBody{Code: code, Message: message}}); err != nil {
		logger.Error("Failed to encode error response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("code", code),
			slog.Any("encode_error", err),
		)
	}
}

// writeData writes the standard success envelope. Headers are only written
// after the payload marshals, so an encode failure can still surface as a
// clean 500.
func writeData(w http.ResponseWriter, r *http.Request, logger *slog.Logger, data any, pagination *Pagination) {
	body, err := json.Marshal(DataResponse{Data: data, Pagination: pagination})
	if err != nil {
		logger.Error("Failed to encode response payload",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("encode_error", err),
		)
		writeError(w, r, logger, http.StatusInternalServerError, CodeInternal, "failed to encode response")

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(body); err != nil {
		logger.Error("Failed to write response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
}

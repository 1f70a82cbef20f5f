package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/lexhub-io/lexhub/internal/api/middleware"
	"github.com/lexhub-io/lexhub/internal/ingestion"
)

// handleIngest accepts one event envelope per request and drives it through
// the classification and validation pipeline.
//
// The transport redelivers anything that is not acknowledged, so the response
// policy is deliberately asymmetric: almost everything is acknowledged with
// 200, including undecodable payloads (retrying them cannot succeed),
// not-applicable events and events whose persistence failed in a way a retry
// will not fix. The single retriable signal is a store deadline, which maps
// to 500 so the transport redelivers once the store recovers.
//
// The response body is free-form diagnostic text, never machine-parsed.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize))
	if err != nil {
		s.logger.Warn("Failed to read ingest request body",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		// Oversized or truncated payloads are not retriable either
		s.writeText(w, correlationID, http.StatusOK, "discarded")

		return
	}

	event := ingestion.DecodeEvent(body)
	if event.Type == ingestion.EventUndecodable {
		s.logger.Warn("Discarding undecodable event envelope",
			slog.String("correlation_id", correlationID),
			slog.Int("body_bytes", len(body)),
		)

		s.writeText(w, correlationID, http.StatusOK, "discarded")

		return
	}

	commit, ok := ingestion.Classify(event)
	if !ok {
		s.writeText(w, correlationID, http.StatusOK, "skipped")

		return
	}

	outcome := s.validator.Validate(r.Context(), commit)

	var storeErr error
	if outcome.Valid() {
		storeErr = s.store.RecordValid(r.Context(), commit, outcome.Doc)
	} else {
		storeErr = s.store.RecordInvalid(r.Context(), commit, outcome.Reasons)
	}

	if storeErr != nil {
		if errors.Is(storeErr, context.DeadlineExceeded) {
			s.logger.Error("Store deadline exceeded, requesting redelivery",
				slog.String("correlation_id", correlationID),
				slog.String("nsid", commit.RecordID()),
				slog.String("repo_did", commit.Did),
				slog.String("error", storeErr.Error()),
			)

			writeError(w, r, s.logger, http.StatusInternalServerError, CodeInternal, "store timed out, retry")

			return
		}

		// Anything else is acknowledged: a redelivery would hit the same
		// failure, and the event is already logged for operator follow-up.
		s.logger.Error("Failed to persist validation outcome",
			slog.String("correlation_id", correlationID),
			slog.String("nsid", commit.RecordID()),
			slog.String("repo_did", commit.Did),
			slog.Bool("valid", outcome.Valid()),
			slog.String("error", storeErr.Error()),
		)

		s.writeText(w, correlationID, http.StatusOK, "acknowledged with store failure")

		return
	}

	if outcome.Valid() {
		s.writeText(w, correlationID, http.StatusOK, "recorded valid")
	} else {
		s.writeText(w, correlationID, http.StatusOK, "recorded invalid")
	}
}

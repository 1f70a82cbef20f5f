package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/lexhub-io/lexhub/internal/api/middleware"
	"github.com/lexhub-io/lexhub/internal/lexicon"
	"github.com/lexhub-io/lexhub/internal/storage"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
	didPartCount     = 3
)

// parsePagination reads limit and offset query parameters.
//
// A missing limit defaults to 50; numeric values are clamped to 1..100 so a
// client asking for too much silently gets the ceiling. Non-numeric values
// are a client error, not something to guess around.
func parsePagination(r *http.Request) (int, int, *ErrorBody) {
	limit := defaultPageLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, &ErrorBody{Code: CodeInvalidLimit, Message: "limit must be an integer"}
		}

		limit = min(max(parsed, 1), maxPageLimit)
	}

	offset := 0

	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, &ErrorBody{Code: CodeInvalidOffset, Message: "offset must be a non-negative integer"}
		}

		offset = parsed
	}

	return limit, offset, nil
}

// isValidDid checks the minimal "did:method:identifier" shape. Anything
// deeper (method registries, identifier alphabets) is the identity layer's
// business, not the router's.
func isValidDid(did string) bool {
	parts := strings.SplitN(did, ":", didPartCount)

	return len(parts) == didPartCount && parts[0] == "did" && parts[1] != "" && parts[2] != ""
}

// handleLexiconHistory serves GET /api/v1/lexicons/{nsid}: the full
// ingestion history for one NSID, newest first.
func (s *Server) handleLexiconHistory(w http.ResponseWriter, r *http.Request) {
	nsid := r.PathValue("nsid")
	if !lexicon.IsValidNSID(nsid) {
		writeError(w, r, s.logger, http.StatusBadRequest, CodeInvalidNsid, "not a valid NSID: "+nsid)

		return
	}

	limit, offset, errBody := parsePagination(r)
	if errBody != nil {
		writeError(w, r, s.logger, http.StatusBadRequest, errBody.Code, errBody.Message)

		return
	}

	records, total, err := s.store.GetLexiconHistory(r.Context(), nsid, limit, offset)
	if err != nil {
		if errors.Is(err, storage.ErrLexiconNotFound) {
			writeError(w, r, s.logger, http.StatusNotFound, CodeNotFound, "no ingested lexicon for "+nsid)

			return
		}

		s.writeStoreError(w, r, "lexicon history", err)

		return
	}

	writeData(w, r, s.logger, records, &Pagination{Total: total, Limit: limit, Offset: offset})
}

// handleRepoLexicons serves GET /api/v1/repos/{did}/lexicons: every row
// published by one repository. An unknown repo is an empty page, not a 404;
// "this repo has published nothing" is an ordinary answer.
func (s *Server) handleRepoLexicons(w http.ResponseWriter, r *http.Request) {
	did := r.PathValue("did")
	if !isValidDid(did) {
		writeError(w, r, s.logger, http.StatusBadRequest, CodeInvalidDid, "not a valid DID: "+did)

		return
	}

	limit, offset, errBody := parsePagination(r)
	if errBody != nil {
		writeError(w, r, s.logger, http.StatusBadRequest, errBody.Code, errBody.Message)

		return
	}

	records, total, err := s.store.ListRepoLexicons(r.Context(), did, limit, offset)
	if err != nil {
		s.writeStoreError(w, r, "repo lexicons", err)

		return
	}

	if records == nil {
		records = []storage.LexiconRecord{}
	}

	writeData(w, r, s.logger, records, &Pagination{Total: total, Limit: limit, Offset: offset})
}

// handleListLexicons serves GET /api/v1/lexicons: the global NSID listing.
func (s *Server) handleListLexicons(w http.ResponseWriter, r *http.Request) {
	limit, offset, errBody := parsePagination(r)
	if errBody != nil {
		writeError(w, r, s.logger, http.StatusBadRequest, errBody.Code, errBody.Message)

		return
	}

	summaries, total, err := s.store.ListLexicons(r.Context(), limit, offset)
	if err != nil {
		s.writeStoreError(w, r, "lexicon listing", err)

		return
	}

	if summaries == nil {
		summaries = []storage.LexiconSummary{}
	}

	writeData(w, r, s.logger, summaries, &Pagination{Total: total, Limit: limit, Offset: offset})
}

// handleSuggestNsids serves GET /api/v1/lexicons/suggest?q=: NSID typeahead,
// prefix matches first, substring matches after.
func (s *Server) handleSuggestNsids(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeData(w, r, s.logger, []string{}, nil)

		return
	}

	limit, _, errBody := parsePagination(r)
	if errBody != nil {
		writeError(w, r, s.logger, http.StatusBadRequest, errBody.Code, errBody.Message)

		return
	}

	suggestions, err := s.store.SuggestNsids(r.Context(), query, limit)
	if err != nil {
		s.writeStoreError(w, r, "nsid suggestions", err)

		return
	}

	if suggestions == nil {
		suggestions = []string{}
	}

	writeData(w, r, s.logger, suggestions, nil)
}

// handleStats serves GET /api/v1/stats: corpus-wide ingestion counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "stats", err)

		return
	}

	writeData(w, r, s.logger, stats, nil)
}

// writeStoreError logs a read-side store failure and answers with the
// generic internal error. The concrete failure stays in the log.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	s.logger.Error("Store query failed",
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("operation", operation),
		slog.Bool("connection_error", storage.IsConnectionError(err)),
		slog.String("error", err.Error()),
	)

	writeError(w, r, s.logger, http.StatusInternalServerError, CodeInternal, "query failed")
}

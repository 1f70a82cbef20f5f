package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/lexhub-io/lexhub/internal/config"
	"github.com/lexhub-io/lexhub/internal/ingestion"
	"github.com/lexhub-io/lexhub/internal/lexicon"
)

// Sentinel errors for lexicon storage operations.
var (
	// ErrLexiconStoreFailed is returned when a storage operation fails.
	ErrLexiconStoreFailed = errors.New("lexicon storage failed")

	// ErrLexiconNotFound is returned when a queried NSID has no rows at all.
	ErrLexiconNotFound = errors.New("lexicon not found")

	// ErrNoReasons is returned when an invalid outcome arrives without reasons.
	// The reasons list being non-empty on the invalid path is a pipeline
	// invariant, enforced again here and by a database CHECK constraint.
	ErrNoReasons = errors.New("invalid lexicon requires at least one reason")

	// Compile-time assertion: LexiconStore is the write side of the pipeline.
	_ ingestion.Store = (*LexiconStore)(nil)
)

type (
	// LexiconStore implements ingestion.Store with a PostgreSQL backend and
	// serves the read-side lexicon queries.
	//
	// Writes are append-only single-row inserts keyed by (nsid, cid, repo_did)
	// with ON CONFLICT DO NOTHING: redelivered events and cross-repo
	// republications are absorbed without errors and without mutation.
	LexiconStore struct {
		conn   *Connection
		logger *slog.Logger
	}

	// LexiconRecord is one ingested lexicon row, valid or invalid.
	//
	// Document is set only for valid rows; RawData and Reasons only for
	// invalid rows. Both are raw JSON: the document is re-served verbatim and
	// the reasons list is the persisted tagged-union form.
	LexiconRecord struct {
		Nsid       string          `json:"nsid"`
		Cid        string          `json:"cid"`
		RepoDid    string          `json:"repoDid"`
		RepoRev    string          `json:"repoRev"`
		Valid      bool            `json:"valid"`
		Document   json.RawMessage `json:"document,omitempty"`
		RawData    json.RawMessage `json:"rawData,omitempty"`
		Reasons    json.RawMessage `json:"reasons,omitempty"`
		IngestedAt time.Time       `json:"ingestedAt"`
	}

	// LexiconSummary is one NSID in the global listing, aggregated across
	// its valid versions.
	LexiconSummary struct {
		Nsid           string    `json:"nsid"`
		Versions       int64     `json:"versions"`
		LastIngestedAt time.Time `json:"lastIngestedAt"`
	}

	// Stats holds corpus-wide ingestion counters.
	Stats struct {
		ValidCount    int64 `json:"validCount"`
		InvalidCount  int64 `json:"invalidCount"`
		DistinctNsids int64 `json:"distinctNsids"`
		DistinctRepos int64 `json:"distinctRepos"`
	}
)

// NewLexiconStore creates a PostgreSQL-backed lexicon store.
// Returns ErrNoDatabaseConnection if conn is nil.
func NewLexiconStore(conn *Connection) (*LexiconStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	return &LexiconStore{
		conn: conn,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}, nil
}

// HealthCheck verifies the database connection is healthy and ready to serve
// requests. Used by the /ready and /health endpoints.
func (s *LexiconStore) HealthCheck(ctx context.Context) error {
	if s.conn == nil {
		return ErrNoDatabaseConnection
	}

	return s.conn.HealthCheck(ctx)
}

// RecordValid implements ingestion.Store.
// Inserts one row into valid_lexicons; a key conflict is a successful no-op.
func (s *LexiconStore) RecordValid(ctx context.Context, commit *ingestion.Commit, doc *lexicon.Doc) error {
	document, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: marshaling document: %w", ErrLexiconStoreFailed, err)
	}

	result, err := s.conn.DB.ExecContext(ctx, `
		INSERT INTO valid_lexicons (nsid, cid, repo_did, repo_rev, document)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (nsid, cid, repo_did) DO NOTHING`,
		doc.ID, commit.Cid, commit.Did, commit.Rev, document,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting valid lexicon: %w", ErrLexiconStoreFailed, err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		s.logger.Debug("valid lexicon already stored",
			slog.String("nsid", doc.ID),
			slog.String("cid", commit.Cid),
			slog.String("repo_did", commit.Did),
		)

		return nil
	}

	s.logger.Info("valid lexicon stored",
		slog.String("nsid", doc.ID),
		slog.String("cid", commit.Cid),
		slog.String("repo_did", commit.Did),
	)

	return nil
}

// RecordInvalid implements ingestion.Store.
// Inserts one row into invalid_lexicons carrying the raw record payload and
// the non-empty reasons list; a key conflict is a successful no-op.
func (s *LexiconStore) RecordInvalid(ctx context.Context, commit *ingestion.Commit, reasons []ingestion.Reason) error {
	if len(reasons) == 0 {
		return ErrNoReasons
	}

	rawData, err := json.Marshal(commit.Record)
	if err != nil {
		return fmt.Errorf("%w: marshaling raw record: %w", ErrLexiconStoreFailed, err)
	}

	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("%w: marshaling reasons: %w", ErrLexiconStoreFailed, err)
	}

	result, err := s.conn.DB.ExecContext(ctx, `
		INSERT INTO invalid_lexicons (nsid, cid, repo_did, repo_rev, raw_data, reasons)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (nsid, cid, repo_did) DO NOTHING`,
		commit.RecordID(), commit.Cid, commit.Did, commit.Rev, rawData, reasonsJSON,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting invalid lexicon: %w", ErrLexiconStoreFailed, err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		s.logger.Debug("invalid lexicon already stored",
			slog.String("nsid", commit.RecordID()),
			slog.String("cid", commit.Cid),
			slog.String("repo_did", commit.Did),
		)

		return nil
	}

	s.logger.Warn("invalid lexicon stored",
		slog.String("nsid", commit.RecordID()),
		slog.String("cid", commit.Cid),
		slog.String("repo_did", commit.Did),
		slog.String("reasons", ingestion.SummarizeReasons(reasons)),
	)

	return nil
}

// lexiconHistoryQuery unions both tables into one chronological history.
// Column shapes match LexiconRecord scanning in scanRecords.
const lexiconHistoryQuery = `
	SELECT nsid, cid, repo_did, repo_rev, TRUE AS valid,
	       document, NULL::jsonb AS raw_data, NULL::jsonb AS reasons, ingested_at
	FROM valid_lexicons
	WHERE %s = $1
	UNION ALL
	SELECT nsid, cid, repo_did, repo_rev, FALSE AS valid,
	       NULL::jsonb AS document, raw_data, reasons, ingested_at
	FROM invalid_lexicons
	WHERE %s = $1
	ORDER BY ingested_at DESC
	LIMIT $2 OFFSET $3`

// GetLexiconHistory returns the full ingestion history for one NSID, newest
// first, along with the total row count for pagination.
// Returns ErrLexiconNotFound when the NSID has never been ingested.
func (s *LexiconStore) GetLexiconHistory(
	ctx context.Context,
	nsid string,
	limit, offset int,
) ([]LexiconRecord, int64, error) {
	total, err := s.countRows(ctx, "nsid", nsid)
	if err != nil {
		return nil, 0, err
	}

	if total == 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrLexiconNotFound, nsid)
	}

	query := fmt.Sprintf(lexiconHistoryQuery, "nsid", "nsid")

	records, err := s.queryRecords(ctx, query, nsid, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// ListRepoLexicons returns every row published by one repository, newest
// first, along with the total row count for pagination. An unknown repo
// returns an empty page, not an error.
func (s *LexiconStore) ListRepoLexicons(
	ctx context.Context,
	repoDid string,
	limit, offset int,
) ([]LexiconRecord, int64, error) {
	total, err := s.countRows(ctx, "repo_did", repoDid)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(lexiconHistoryQuery, "repo_did", "repo_did")

	records, err := s.queryRecords(ctx, query, repoDid, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// ListLexicons returns the global NSID listing aggregated over valid rows,
// ordered by NSID, along with the distinct NSID count for pagination.
func (s *LexiconStore) ListLexicons(ctx context.Context, limit, offset int) ([]LexiconSummary, int64, error) {
	var total int64
	if err := s.conn.DB.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT nsid) FROM valid_lexicons`,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: counting lexicons: %w", ErrLexiconStoreFailed, err)
	}

	rows, err := s.conn.DB.QueryContext(ctx, `
		SELECT nsid, COUNT(*) AS versions, MAX(ingested_at) AS last_ingested_at
		FROM valid_lexicons
		GROUP BY nsid
		ORDER BY nsid
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: listing lexicons: %w", ErrLexiconStoreFailed, err)
	}
	defer func() { _ = rows.Close() }()

	summaries := make([]LexiconSummary, 0, limit)

	for rows.Next() {
		var summary LexiconSummary
		if err := rows.Scan(&summary.Nsid, &summary.Versions, &summary.LastIngestedAt); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning lexicon summary: %w", ErrLexiconStoreFailed, err)
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: listing lexicons: %w", ErrLexiconStoreFailed, err)
	}

	return summaries, total, nil
}

// SuggestNsids returns NSIDs matching a typeahead query over valid rows:
// prefix matches first, then substring matches, each alphabetical.
func (s *LexiconStore) SuggestNsids(ctx context.Context, query string, limit int) ([]string, error) {
	pattern := escapeLikePattern(query)

	rows, err := s.conn.DB.QueryContext(ctx, `
		SELECT nsid FROM (
			SELECT DISTINCT nsid, (nsid LIKE $1 || '%') AS is_prefix
			FROM valid_lexicons
			WHERE nsid LIKE '%' || $1 || '%'
		) matches
		ORDER BY is_prefix DESC, nsid
		LIMIT $2`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: suggesting nsids: %w", ErrLexiconStoreFailed, err)
	}
	defer func() { _ = rows.Close() }()

	nsids := make([]string, 0, limit)

	for rows.Next() {
		var nsid string
		if err := rows.Scan(&nsid); err != nil {
			return nil, fmt.Errorf("%w: scanning nsid: %w", ErrLexiconStoreFailed, err)
		}

		nsids = append(nsids, nsid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: suggesting nsids: %w", ErrLexiconStoreFailed, err)
	}

	return nsids, nil
}

// GetStats returns corpus-wide ingestion counters in a single round trip.
func (s *LexiconStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.conn.DB.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM valid_lexicons),
			(SELECT COUNT(*) FROM invalid_lexicons),
			(SELECT COUNT(DISTINCT nsid) FROM valid_lexicons),
			(SELECT COUNT(DISTINCT repo_did) FROM valid_lexicons)`,
	).Scan(&stats.ValidCount, &stats.InvalidCount, &stats.DistinctNsids, &stats.DistinctRepos)
	if err != nil {
		return nil, fmt.Errorf("%w: reading stats: %w", ErrLexiconStoreFailed, err)
	}

	return stats, nil
}

// countRows counts history rows across both tables for one key column.
// column is always a literal from this package, never user input.
func (s *LexiconStore) countRows(ctx context.Context, column, value string) (int64, error) {
	query := fmt.Sprintf(`
		SELECT (SELECT COUNT(*) FROM valid_lexicons WHERE %s = $1)
		     + (SELECT COUNT(*) FROM invalid_lexicons WHERE %s = $1)`,
		column, column,
	)

	var total int64
	if err := s.conn.DB.QueryRowContext(ctx, query, value).Scan(&total); err != nil {
		return 0, fmt.Errorf("%w: counting rows: %w", ErrLexiconStoreFailed, err)
	}

	return total, nil
}

// queryRecords runs a history query and scans LexiconRecord rows.
func (s *LexiconStore) queryRecords(
	ctx context.Context,
	query, key string,
	limit, offset int,
) ([]LexiconRecord, error) {
	rows, err := s.conn.DB.QueryContext(ctx, query, key, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: querying records: %w", ErrLexiconStoreFailed, err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]LexiconRecord, 0, limit)

	for rows.Next() {
		var (
			record   LexiconRecord
			document sql.Null[[]byte]
			rawData  sql.Null[[]byte]
			reasons  sql.Null[[]byte]
		)

		if err := rows.Scan(
			&record.Nsid, &record.Cid, &record.RepoDid, &record.RepoRev,
			&record.Valid, &document, &rawData, &reasons, &record.IngestedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scanning record: %w", ErrLexiconStoreFailed, err)
		}

		if document.Valid {
			record.Document = json.RawMessage(document.V)
		}

		if rawData.Valid {
			record.RawData = json.RawMessage(rawData.V)
		}

		if reasons.Valid {
			record.Reasons = json.RawMessage(reasons.V)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: querying records: %w", ErrLexiconStoreFailed, err)
	}

	return records, nil
}

// escapeLikePattern escapes LIKE metacharacters in user-supplied search text.
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)

	return s
}

// IsConnectionError checks if an error indicates database connection failure.
// Uses PostgreSQL error codes (Class 08 = Connection Exception) and standard
// database/sql errors for robust detection.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasPrefix(string(pqErr.Code), "08")
	}

	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}

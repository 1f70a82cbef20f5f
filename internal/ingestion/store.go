package ingestion

import (
	"context"

	"github.com/lexhub-io/lexhub/internal/lexicon"
)

// Store defines append-only, idempotent persistence of validation outcomes.
//
// The domain package defines this interface to specify what it needs for
// outcome persistence without depending on concrete implementations; the
// PostgreSQL implementation lives in internal/storage and an in-memory
// implementation backs the endpoint tests.
//
// Implementations must:
//   - Insert exactly one row per call, keyed by (nsid, cid, repoDid).
//   - Treat a conflict on an existing key as a successful no-op: the same
//     event may be redelivered by the transport, and the identical record
//     may be legitimately republished from a different repository during a
//     migration (distinct repoDid, distinct row).
//   - Expose no update or delete: rows are immutable history, and "latest"
//     is determined by callers ordering on the ingestion timestamp.
type Store interface {
	// RecordValid persists a successfully validated lexicon.
	RecordValid(ctx context.Context, commit *Commit, doc *lexicon.Doc) error

	// RecordInvalid persists a failed validation outcome together with the
	// raw, unvalidated record payload. The raw form is kept deliberately: the
	// record failed structural validation, so a typed representation would be
	// unsafe to construct. Reasons must be non-empty.
	RecordInvalid(ctx context.Context, commit *Commit, reasons []Reason) error
}

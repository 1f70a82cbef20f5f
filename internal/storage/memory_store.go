package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lexhub-io/lexhub/internal/ingestion"
	"github.com/lexhub-io/lexhub/internal/lexicon"
)

// Compile-time assertion mirroring the PostgreSQL implementation.
var _ ingestion.Store = (*InMemoryLexiconStore)(nil)

// recordKey is the idempotence key shared with the PostgreSQL schema.
type recordKey struct {
	nsid    string
	cid     string
	repoDid string
}

// InMemoryLexiconStore provides thread-safe in-memory storage of validation
// outcomes with the same idempotence semantics as LexiconStore. It backs
// endpoint tests and local development without a database.
type InMemoryLexiconStore struct {
	// records maps the idempotence key to the stored row
	records map[recordKey]*LexiconRecord
	// mutex protects concurrent access
	mutex sync.RWMutex
	// failWith, when set, makes every write return this error (test hook)
	failWith error
}

// NewInMemoryLexiconStore creates a new thread-safe in-memory lexicon store.
func NewInMemoryLexiconStore() *InMemoryLexiconStore {
	return &InMemoryLexiconStore{
		records: make(map[recordKey]*LexiconRecord),
	}
}

// FailWith makes subsequent writes return err. Pass nil to restore normal
// operation.
func (s *InMemoryLexiconStore) FailWith(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.failWith = err
}

// RecordValid implements ingestion.Store.
func (s *InMemoryLexiconStore) RecordValid(ctx context.Context, commit *ingestion.Commit, doc *lexicon.Doc) error {
	document, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: marshaling document: %w", ErrLexiconStoreFailed, err)
	}

	return s.insert(ctx, &LexiconRecord{
		Nsid:       doc.ID,
		Cid:        commit.Cid,
		RepoDid:    commit.Did,
		RepoRev:    commit.Rev,
		Valid:      true,
		Document:   document,
		IngestedAt: time.Now().UTC(),
	})
}

// RecordInvalid implements ingestion.Store.
func (s *InMemoryLexiconStore) RecordInvalid(
	ctx context.Context,
	commit *ingestion.Commit,
	reasons []ingestion.Reason,
) error {
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

	return s.insert(ctx, &LexiconRecord{
		Nsid:       commit.RecordID(),
		Cid:        commit.Cid,
		RepoDid:    commit.Did,
		RepoRev:    commit.Rev,
		Valid:      false,
		RawData:    rawData,
		Reasons:    reasonsJSON,
		IngestedAt: time.Now().UTC(),
	})
}

// insert applies the idempotent keyed insert. Context cancellation is honored
// so the endpoint's timeout handling is testable without a database.
func (s *InMemoryLexiconStore) insert(ctx context.Context, record *LexiconRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrLexiconStoreFailed, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.failWith != nil {
		return s.failWith
	}

	key := recordKey{nsid: record.Nsid, cid: record.Cid, repoDid: record.RepoDid}
	if _, exists := s.records[key]; exists {
		// Conflict on the key is a successful no-op
		return nil
	}

	s.records[key] = record

	return nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *InMemoryLexiconStore) HealthCheck(_ context.Context) error {
	return nil
}

// Count returns the number of stored rows, valid and invalid.
func (s *InMemoryLexiconStore) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.records)
}

// GetLexiconHistory mirrors LexiconStore.GetLexiconHistory.
func (s *InMemoryLexiconStore) GetLexiconHistory(
	_ context.Context,
	nsid string,
	limit, offset int,
) ([]LexiconRecord, int64, error) {
	matches := s.collect(func(r *LexiconRecord) bool { return r.Nsid == nsid })
	if len(matches) == 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrLexiconNotFound, nsid)
	}

	return paginate(matches, limit, offset), int64(len(matches)), nil
}

// ListRepoLexicons mirrors LexiconStore.ListRepoLexicons.
func (s *InMemoryLexiconStore) ListRepoLexicons(
	_ context.Context,
	repoDid string,
	limit, offset int,
) ([]LexiconRecord, int64, error) {
	matches := s.collect(func(r *LexiconRecord) bool { return r.RepoDid == repoDid })

	return paginate(matches, limit, offset), int64(len(matches)), nil
}

// ListLexicons mirrors LexiconStore.ListLexicons.
func (s *InMemoryLexiconStore) ListLexicons(_ context.Context, limit, offset int) ([]LexiconSummary, int64, error) {
	s.mutex.RLock()

	byNsid := make(map[string]*LexiconSummary)

	for _, record := range s.records {
		if !record.Valid {
			continue
		}

		summary, ok := byNsid[record.Nsid]
		if !ok {
			summary = &LexiconSummary{Nsid: record.Nsid}
			byNsid[record.Nsid] = summary
		}

		summary.Versions++

		if record.IngestedAt.After(summary.LastIngestedAt) {
			summary.LastIngestedAt = record.IngestedAt
		}
	}

	s.mutex.RUnlock()

	summaries := make([]LexiconSummary, 0, len(byNsid))
	for _, summary := range byNsid {
		summaries = append(summaries, *summary)
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Nsid < summaries[j].Nsid })

	total := int64(len(summaries))

	return paginate(summaries, limit, offset), total, nil
}

// SuggestNsids mirrors LexiconStore.SuggestNsids: prefix matches first, then
// substring matches, each alphabetical.
func (s *InMemoryLexiconStore) SuggestNsids(_ context.Context, query string, limit int) ([]string, error) {
	s.mutex.RLock()

	seen := make(map[string]bool)

	var prefix, substring []string

	for _, record := range s.records {
		if !record.Valid || seen[record.Nsid] {
			continue
		}

		switch {
		case strings.HasPrefix(record.Nsid, query):
			prefix = append(prefix, record.Nsid)
		case strings.Contains(record.Nsid, query):
			substring = append(substring, record.Nsid)
		default:
			continue
		}

		seen[record.Nsid] = true
	}

	s.mutex.RUnlock()

	sort.Strings(prefix)
	sort.Strings(substring)

	nsids := append(prefix, substring...)
	if len(nsids) > limit {
		nsids = nsids[:limit]
	}

	return nsids, nil
}

// GetStats mirrors LexiconStore.GetStats.
func (s *InMemoryLexiconStore) GetStats(_ context.Context) (*Stats, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := &Stats{}
	nsids := make(map[string]bool)
	repos := make(map[string]bool)

	for _, record := range s.records {
		if record.Valid {
			stats.ValidCount++
			nsids[record.Nsid] = true
			repos[record.RepoDid] = true
		} else {
			stats.InvalidCount++
		}
	}

	stats.DistinctNsids = int64(len(nsids))
	stats.DistinctRepos = int64(len(repos))

	return stats, nil
}

// collect returns copies of matching rows, newest first.
func (s *InMemoryLexiconStore) collect(match func(*LexiconRecord) bool) []LexiconRecord {
	s.mutex.RLock()

	matches := make([]LexiconRecord, 0)

	for _, record := range s.records {
		if match(record) {
			matches = append(matches, *record)
		}
	}

	s.mutex.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].IngestedAt.After(matches[j].IngestedAt) })

	return matches
}

// paginate applies limit/offset slicing to an already-sorted slice.
func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}

	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}

	return items
}

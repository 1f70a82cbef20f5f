package firehose

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lexhub-io/lexhub/internal/ingestion"
	"github.com/lexhub-io/lexhub/internal/storage"
)

// staticResolver is an AuthorityResolver stub returning one fixed DID.
type staticResolver struct {
	did string
}

func (r staticResolver) ResolveAuthorityDid(_ context.Context, _ string) (string, error) {
	return r.did, nil
}

// fakeReader feeds a fixed message sequence and records committed offsets.
// When the sequence is exhausted it cancels the consumer's context so Run
// returns cleanly.
type fakeReader struct {
	messages  []kafka.Message
	next      int
	committed []int64
	cancel    context.CancelFunc
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if f.next >= len(f.messages) {
		f.cancel()

		return kafka.Message{}, ctx.Err()
	}

	msg := f.messages[f.next]
	f.next++

	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		f.committed = append(f.committed, msg.Offset)
	}

	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true

	return nil
}

func schemaMessage(t *testing.T, offset int64, nsid, did string) kafka.Message {
	t.Helper()

	envelope := map[string]any{
		"type":       "record",
		"did":        did,
		"rev":        "3juf3kzbvmg2p",
		"collection": "com.atproto.lexicon.schema",
		"rkey":       nsid,
		"action":     "create",
		"cid":        "bafyreib2rxk3rh6kzwq",
		"live":       true,
		"record": map[string]any{
			"$type":   "com.atproto.lexicon.schema",
			"id":      nsid,
			"lexicon": 1,
			"defs": map[string]any{
				"main": map[string]any{"type": "object"},
			},
		},
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	return kafka.Message{Topic: "repo.commits", Offset: offset, Value: value}
}

// runConsumer drains the fake reader through a fresh consumer.
func runConsumer(t *testing.T, reader *fakeReader, store ingestion.Store) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader.cancel = cancel

	validator := ingestion.NewValidator(staticResolver{did: "did:plc:abc"})

	consumer := newConsumer(reader, validator, store)
	consumer.backoff = time.Millisecond

	if err := consumer.Run(ctx); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestConsumer_ValidRecordCommitted(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := storage.NewInMemoryLexiconStore()
	reader := &fakeReader{messages: []kafka.Message{
		schemaMessage(t, 0, "com.example.foo", "did:plc:abc"),
	}}

	runConsumer(t, reader, store)

	if store.Count() != 1 {
		t.Errorf("store count = %d, want 1", store.Count())
	}

	if len(reader.committed) != 1 || reader.committed[0] != 0 {
		t.Errorf("committed offsets = %v, want [0]", reader.committed)
	}

	if !reader.closed {
		t.Error("reader not closed after Run returned")
	}
}

func TestConsumer_MalformedMessageCommitted(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := storage.NewInMemoryLexiconStore()
	reader := &fakeReader{messages: []kafka.Message{
		{Topic: "repo.commits", Offset: 7, Value: []byte("{not json")},
	}}

	runConsumer(t, reader, store)

	if store.Count() != 0 {
		t.Errorf("store count = %d after malformed message, want 0", store.Count())
	}

	// Skip and commit: a malformed payload is never retried
	if len(reader.committed) != 1 || reader.committed[0] != 7 {
		t.Errorf("committed offsets = %v, want [7]", reader.committed)
	}
}

func TestConsumer_IdentityEventCommitted(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := storage.NewInMemoryLexiconStore()
	reader := &fakeReader{messages: []kafka.Message{
		{Topic: "repo.commits", Offset: 3, Value: []byte(`{"type":"identity","did":"did:plc:abc"}`)},
	}}

	runConsumer(t, reader, store)

	if store.Count() != 0 {
		t.Errorf("store count = %d after identity event, want 0", store.Count())
	}

	if len(reader.committed) != 1 {
		t.Errorf("committed offsets = %v, want one commit", reader.committed)
	}
}

func TestConsumer_StoreDeadlineWithholdsCommit(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := storage.NewInMemoryLexiconStore()
	store.FailWith(context.DeadlineExceeded)

	reader := &fakeReader{messages: []kafka.Message{
		schemaMessage(t, 0, "com.example.foo", "did:plc:abc"),
	}}

	runConsumer(t, reader, store)

	if len(reader.committed) != 0 {
		t.Errorf("committed offsets = %v on store deadline, want none", reader.committed)
	}
}

func TestConsumer_InvalidRecordPersistedAndCommitted(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := storage.NewInMemoryLexiconStore()
	reader := &fakeReader{messages: []kafka.Message{
		schemaMessage(t, 0, "com.example.foo", "did:plc:stranger"),
	}}

	runConsumer(t, reader, store)

	if store.Count() != 1 {
		t.Fatalf("store count = %d, want 1 invalid row", store.Count())
	}

	records, _, err := store.GetLexiconHistory(context.Background(), "com.example.foo", 10, 0)
	if err != nil {
		t.Fatalf("GetLexiconHistory() error: %v", err)
	}

	if records[0].Valid {
		t.Error("record persisted as valid, want invalid")
	}

	if len(reader.committed) != 1 {
		t.Errorf("committed offsets = %v, want one commit", reader.committed)
	}
}

func TestConfigValidate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cfg := &Config{Topic: "repo.commits", GroupID: "lexhub-firehose"}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted empty broker list")
	}

	cfg.Brokers = []string{"localhost:9092"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() rejected valid config: %v", err)
	}
}

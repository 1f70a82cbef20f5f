package ingestion

import (
	"context"
	"errors"
	"testing"
)

// fakeResolver is an AuthorityResolver stub recording its calls.
type fakeResolver struct {
	did     string
	err     error
	calls   int
	domains []string
}

func (f *fakeResolver) ResolveAuthorityDid(_ context.Context, domain string) (string, error) {
	f.calls++
	f.domains = append(f.domains, domain)

	return f.did, f.err
}

// schemaCommit builds a minimal well-formed Lexicon schema commit.
func schemaCommit() *Commit {
	return &Commit{
		Did:        "did:plc:abc",
		Rev:        "3juf3kzbvmg2p",
		Collection: "com.atproto.lexicon.schema",
		Rkey:       "com.example.foo",
		Action:     ActionCreate,
		Cid:        "bafyreib2rxk3rh6kzwq",
		Live:       true,
		Record: map[string]any{
			"$type":   "com.atproto.lexicon.schema",
			"id":      "com.example.foo",
			"lexicon": float64(1),
			"defs": map[string]any{
				"main": map[string]any{"type": "object"},
			},
		},
	}
}

func TestValidate_WellFormedCommit(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	resolver := &fakeResolver{did: "did:plc:abc"}
	validator := NewValidator(resolver)

	outcome := validator.Validate(context.Background(), schemaCommit())
	if !outcome.Valid() {
		t.Fatalf("Validate() failed for well-formed commit: %v", outcome.Reasons)
	}

	if outcome.Doc.ID != "com.example.foo" {
		t.Errorf("Doc.ID = %q, want com.example.foo", outcome.Doc.ID)
	}

	if resolver.calls != 1 {
		t.Errorf("resolver called %d times, want 1", resolver.calls)
	}

	if len(resolver.domains) == 1 && resolver.domains[0] != "example.com" {
		t.Errorf("resolver consulted %q, want example.com", resolver.domains[0])
	}
}

func TestValidate_InvalidNsidSkipsResolver(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	resolver := &fakeResolver{did: "did:plc:abc"}
	validator := NewValidator(resolver)

	commit := schemaCommit()
	commit.Record["id"] = "Not-An-NSID"

	outcome := validator.Validate(context.Background(), commit)
	if outcome.Valid() {
		t.Fatal("Validate() accepted a malformed NSID")
	}

	if len(outcome.Reasons) != 1 {
		t.Fatalf("got %d reasons, want exactly 1", len(outcome.Reasons))
	}

	reason, ok := outcome.Reasons[0].(InvalidNsidFormat)
	if !ok {
		t.Fatalf("reason = %T, want InvalidNsidFormat", outcome.Reasons[0])
	}

	if reason.Nsid != "Not-An-NSID" {
		t.Errorf("reason.Nsid = %q, want Not-An-NSID", reason.Nsid)
	}

	if resolver.calls != 0 {
		t.Errorf("resolver called %d times for malformed NSID, want 0", resolver.calls)
	}
}

func TestValidate_AuthorityMismatch(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	resolver := &fakeResolver{did: "did:plc:xyz"}
	validator := NewValidator(resolver)

	outcome := validator.Validate(context.Background(), schemaCommit())
	if outcome.Valid() {
		t.Fatal("Validate() accepted a commit from a non-authority DID")
	}

	if len(outcome.Reasons) != 1 {
		t.Fatalf("got %d reasons, want exactly 1", len(outcome.Reasons))
	}

	reason, ok := outcome.Reasons[0].(DidAuthorityMismatch)
	if !ok {
		t.Fatalf("reason = %T, want DidAuthorityMismatch", outcome.Reasons[0])
	}

	if reason.ExpectedDid == nil || *reason.ExpectedDid != "did:plc:xyz" {
		t.Errorf("reason.ExpectedDid = %v, want did:plc:xyz", reason.ExpectedDid)
	}

	if reason.ActualDid != "did:plc:abc" {
		t.Errorf("reason.ActualDid = %q, want did:plc:abc", reason.ActualDid)
	}
}

func TestValidate_UnresolvableAuthority(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	// No binding exists: the resolver returns "" with no error. This must
	// still be flagged as a mismatch with a null expected DID, not a pass.
	resolver := &fakeResolver{did: ""}
	validator := NewValidator(resolver)

	outcome := validator.Validate(context.Background(), schemaCommit())
	if outcome.Valid() {
		t.Fatal("Validate() accepted a commit with unresolvable authority")
	}

	reason, ok := outcome.Reasons[0].(DidAuthorityMismatch)
	if !ok {
		t.Fatalf("reason = %T, want DidAuthorityMismatch", outcome.Reasons[0])
	}

	if reason.ExpectedDid != nil {
		t.Errorf("reason.ExpectedDid = %v, want nil", reason.ExpectedDid)
	}
}

func TestValidate_ResolverErrorIsMismatch(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	resolver := &fakeResolver{err: errors.New("dns timeout")}
	validator := NewValidator(resolver)

	outcome := validator.Validate(context.Background(), schemaCommit())
	if outcome.Valid() {
		t.Fatal("Validate() accepted a commit despite resolver failure")
	}

	reason, ok := outcome.Reasons[0].(DidAuthorityMismatch)
	if !ok {
		t.Fatalf("reason = %T, want DidAuthorityMismatch", outcome.Reasons[0])
	}

	if reason.ExpectedDid != nil {
		t.Errorf("reason.ExpectedDid = %v, want nil on resolver error", reason.ExpectedDid)
	}
}

func TestValidate_RkeyMismatch(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	resolver := &fakeResolver{did: "did:plc:abc"}
	validator := NewValidator(resolver)

	commit := schemaCommit()
	commit.Rkey = "com.example.bar"

	outcome := validator.Validate(context.Background(), commit)
	if outcome.Valid() {
		t.Fatal("Validate() accepted a commit filed under the wrong rkey")
	}

	if len(outcome.Reasons) != 1 {
		t.Fatalf("got %d reasons, want exactly 1", len(outcome.Reasons))
	}

	reason, ok := outcome.Reasons[0].(RkeyMismatch)
	if !ok {
		t.Fatalf("reason = %T, want RkeyMismatch", outcome.Reasons[0])
	}

	if reason.Expected != "com.example.foo" || reason.Actual != "com.example.bar" {
		t.Errorf("RkeyMismatch{%q, %q}, want {com.example.foo, com.example.bar}",
			reason.Expected, reason.Actual)
	}
}

func TestValidate_SchemaIssuesAccumulate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	resolver := &fakeResolver{did: "did:plc:abc"}
	validator := NewValidator(resolver)

	commit := schemaCommit()
	// Two independent violations: bad lexicon version and empty defs
	commit.Record["lexicon"] = float64(2)
	commit.Record["defs"] = map[string]any{}

	outcome := validator.Validate(context.Background(), commit)
	if outcome.Valid() {
		t.Fatal("Validate() accepted a structurally invalid document")
	}

	if len(outcome.Reasons) != 1 {
		t.Fatalf("got %d reasons, want exactly 1 bundled SchemaValidationError", len(outcome.Reasons))
	}

	reason, ok := outcome.Reasons[0].(SchemaValidationError)
	if !ok {
		t.Fatalf("reason = %T, want SchemaValidationError", outcome.Reasons[0])
	}

	if len(reason.Issues) != 2 {
		t.Errorf("got %d issues, want 2 (one per independent violation): %v",
			len(reason.Issues), reason.Issues)
	}
}

func TestValidate_CheckOrder(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	// Commit with both an rkey mismatch and a broken schema: the rkey check
	// runs first and must be the only reported reason.
	resolver := &fakeResolver{did: "did:plc:abc"}
	validator := NewValidator(resolver)

	commit := schemaCommit()
	commit.Rkey = "com.example.other"
	commit.Record["defs"] = map[string]any{}

	outcome := validator.Validate(context.Background(), commit)
	if len(outcome.Reasons) != 1 {
		t.Fatalf("got %d reasons, want 1", len(outcome.Reasons))
	}

	if KindOf(outcome.Reasons[0]) != KindRkeyMismatch {
		t.Errorf("reason kind = %s, want %s", KindOf(outcome.Reasons[0]), KindRkeyMismatch)
	}
}

func TestSummarizeReasons(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	reasons := []Reason{
		NewInvalidNsidFormat("x", "bad"),
		NewRkeyMismatch("a", "b"),
	}

	got := SummarizeReasons(reasons)
	want := "invalid_nsid_format,rkey_mismatch"

	if got != want {
		t.Errorf("SummarizeReasons() = %q, want %q", got, want)
	}
}

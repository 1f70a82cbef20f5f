package ingestion

import (
	"context"

	"github.com/lexhub-io/lexhub/internal/lexicon"
)

// AuthorityResolver resolves the DNS name of an NSID domain authority to the
// DID that is allowed to publish under it.
//
// Implementations return ("", nil) when no binding exists: absence of a
// binding is a normal, expected outcome that the validator treats as a
// verification failure, not a system fault. The one concrete implementation
// lives in internal/identity; the interface exists here so validator tests
// can inject a fake.
type AuthorityResolver interface {
	ResolveAuthorityDid(ctx context.Context, domain string) (string, error)
}

// Validator runs the ordered Lexicon validation pipeline over classified
// commits. It is a pure function of its inputs plus one external call (the
// authority resolution); it holds no state beyond the injected resolver and
// performs no persistence.
type Validator struct {
	resolver AuthorityResolver
}

// NewValidator creates a Validator using the given authority resolver.
func NewValidator(resolver AuthorityResolver) *Validator {
	return &Validator{resolver: resolver}
}

// Validate runs the four ordered checks over a classified commit:
//
//  1. NSID grammar on the record's own id. Failure stops the pipeline before
//     any resolver call: the remaining checks cannot proceed without a
//     well-formed id.
//  2. DID authority binding. The NSID's domain authority is resolved to an
//     expected DID and compared to the commit's publisher. An unresolvable
//     authority is a mismatch with a null expected DID, never a silent pass:
//     an identity that cannot be verified as the domain's authority must not
//     have its record accepted regardless of schema correctness.
//  3. Record-key consistency: the commit rkey must equal the record id.
//  4. Full meta-schema validation. This stage accumulates every independent
//     issue into a single SchemaValidationError instead of stopping at the
//     first one.
//
// Checks 1-3 each produce exactly one reason on failure; the reasons list is
// never empty on the invalid path.
func (v *Validator) Validate(ctx context.Context, commit *Commit) Outcome {
	recordID := commit.RecordID()

	// 1. NSID grammar
	nsid, err := lexicon.ParseNSID(recordID)
	if err != nil {
		return Outcome{Reasons: []Reason{NewInvalidNsidFormat(recordID, err.Error())}}
	}

	// 2. DID authority binding
	expectedDid, err := v.resolver.ResolveAuthorityDid(ctx, nsid.AuthorityDomain())
	if err != nil {
		// Resolution failure (DNS error, timeout) folds into a mismatch with
		// a null expected DID; it is never surfaced past the validator.
		expectedDid = ""
	}

	if expectedDid == "" || expectedDid != commit.Did {
		return Outcome{Reasons: []Reason{NewDidAuthorityMismatch(nsid.String(), expectedDid, commit.Did)}}
	}

	// 3. Record-key consistency
	if commit.Rkey != recordID {
		return Outcome{Reasons: []Reason{NewRkeyMismatch(recordID, commit.Rkey)}}
	}

	// 4. Meta-schema validation
	doc, issues := lexicon.ParseDoc(commit.Record)
	if len(issues) > 0 {
		return Outcome{Reasons: []Reason{NewSchemaValidationError(issues)}}
	}

	return Outcome{Doc: doc}
}

// Package ingestion provides the commit-event domain model, the record
// classifier and the Lexicon validation pipeline.
//
// A Commit is one mutation to a decentralized repository, delivered by the
// event transport. The classifier decides whether a commit carries a Lexicon
// schema record; the validator turns a classified commit into a validation
// outcome; the Store interface persists outcomes append-only.
package ingestion

import (
	"encoding/json"

	"github.com/lexhub-io/lexhub/internal/lexicon"
)

type (
	// EventType discriminates inbound event envelopes.
	EventType string

	// Event is the decoded inbound event envelope.
	//
	// Decoding is an explicit tagged-union step: unknown or malformed
	// payloads map to the undecodable variant rather than silently passing
	// through or raising an error. Commit is non-nil only for record events.
	Event struct {
		Type   EventType
		Commit *Commit
	}

	// Action is the repository mutation kind carried by a commit.
	Action string

	// Commit represents one mutation to a decentralized repository.
	// It is transient: it exists only for the duration of one ingestion call.
	Commit struct {
		// Did is the repository owner identity that published the record.
		Did string

		// Rev is the repository revision at commit time.
		Rev string

		// Collection is the schema/category the record belongs to.
		Collection string

		// Rkey is the record key within the collection. Lexicon records are
		// required to be filed under their own NSID as the key.
		Rkey string

		// Action is create, update or delete.
		Action Action

		// Cid is the content-hash identifier of the record value.
		Cid string

		// Live indicates a live event (vs. backfill).
		Live bool

		// Record is the raw record payload. For Lexicon schema records the
		// minimum shape is {"$type": ..., "id": ...}.
		Record map[string]any
	}
)

// Event envelope types. Anything not recognized decodes to EventUndecodable.
const (
	// EventRecord carries a Commit payload and is the only candidate for ingestion.
	EventRecord EventType = "record"

	// EventIdentity announces an identity change. Expected traffic, never validated.
	EventIdentity EventType = "identity"

	// EventUser announces an account-level change. Expected traffic, never validated.
	EventUser EventType = "user"

	// EventUndecodable marks envelopes that could not be decoded at all.
	EventUndecodable EventType = "undecodable"
)

// Commit actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// wireEvent is the JSON wire shape of an inbound event envelope.
type wireEvent struct {
	Type       string          `json:"type"`
	Did        string          `json:"did"`
	Rev        string          `json:"rev"`
	Collection string          `json:"collection"`
	Rkey       string          `json:"rkey"`
	Action     string          `json:"action"`
	Cid        string          `json:"cid"`
	Live       bool            `json:"live"`
	Record     json.RawMessage `json:"record"`
}

// DecodeEvent decodes an inbound envelope into the Event tagged union.
//
// DecodeEvent never returns an error: malformed JSON and unrecognized
// envelope types map to the EventUndecodable and original EventType
// variants respectively, leaving the caller a plain exhaustive switch.
// A record envelope whose record payload is not a JSON object decodes
// with a nil Record map (the classifier rejects it downstream).
func DecodeEvent(data []byte) Event {
	var wire wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return Event{Type: EventUndecodable}
	}

	switch EventType(wire.Type) {
	case EventRecord:
		commit := &Commit{
			Did:        wire.Did,
			Rev:        wire.Rev,
			Collection: wire.Collection,
			Rkey:       wire.Rkey,
			Action:     Action(wire.Action),
			Cid:        wire.Cid,
			Live:       wire.Live,
		}

		if len(wire.Record) > 0 {
			var record map[string]any
			if err := json.Unmarshal(wire.Record, &record); err == nil {
				commit.Record = record
			}
		}

		return Event{Type: EventRecord, Commit: commit}
	case EventIdentity:
		return Event{Type: EventIdentity}
	case EventUser:
		return Event{Type: EventUser}
	default:
		return Event{Type: EventUndecodable}
	}
}

// RecordID returns the record payload's own "id" field, or "" when absent.
func (c *Commit) RecordID() string {
	if c.Record == nil {
		return ""
	}

	id, _ := c.Record["id"].(string)

	return id
}

type (
	// ReasonKind names the validation failure variants.
	ReasonKind string

	// Reason is one structured validation failure. The concrete types below
	// form a sealed tagged union; each carries a Kind field so persisted
	// reason lists remain self-describing JSON.
	Reason interface {
		reason() ReasonKind
	}

	// InvalidNsidFormat reports a record id that fails the NSID grammar.
	InvalidNsidFormat struct {
		Kind    ReasonKind `json:"kind"`
		Nsid    string     `json:"nsid"`
		Message string     `json:"message"`
	}

	// DidAuthorityMismatch reports that the DNS-resolved authority for the
	// NSID's domain does not match the DID that published the record.
	// ExpectedDid is null when the authority could not be resolved at all.
	DidAuthorityMismatch struct {
		Kind        ReasonKind `json:"kind"`
		Nsid        string     `json:"nsid"`
		ExpectedDid *string    `json:"expectedDid"`
		ActualDid   string     `json:"actualDid"`
	}

	// RkeyMismatch reports a record filed under a key other than its own id.
	RkeyMismatch struct {
		Kind     ReasonKind `json:"kind"`
		Expected string     `json:"expected"`
		Actual   string     `json:"actual"`
	}

	// SchemaValidationError bundles every structural violation found by the
	// Lexicon meta-schema check. Issues is never empty.
	SchemaValidationError struct {
		Kind   ReasonKind      `json:"kind"`
		Issues []lexicon.Issue `json:"issues"`
	}
)

// Reason kinds, persisted verbatim in the reasons column.
const (
	KindInvalidNsidFormat     ReasonKind = "invalid_nsid_format"
	KindDidAuthorityMismatch  ReasonKind = "did_authority_mismatch"
	KindRkeyMismatch          ReasonKind = "rkey_mismatch"
	KindSchemaValidationError ReasonKind = "schema_validation_error"
)

func (r InvalidNsidFormat) reason() ReasonKind     { return r.Kind }
func (r DidAuthorityMismatch) reason() ReasonKind  { return r.Kind }
func (r RkeyMismatch) reason() ReasonKind          { return r.Kind }
func (r SchemaValidationError) reason() ReasonKind { return r.Kind }

// NewInvalidNsidFormat builds the reason for a malformed record id.
func NewInvalidNsidFormat(nsid, message string) Reason {
	return InvalidNsidFormat{Kind: KindInvalidNsidFormat, Nsid: nsid, Message: message}
}

// NewDidAuthorityMismatch builds the reason for an authority/DID mismatch.
// Pass expectedDid == "" when the authority could not be resolved; the
// persisted expectedDid is then null rather than an empty string.
func NewDidAuthorityMismatch(nsid, expectedDid, actualDid string) Reason {
	reason := DidAuthorityMismatch{Kind: KindDidAuthorityMismatch, Nsid: nsid, ActualDid: actualDid}
	if expectedDid != "" {
		reason.ExpectedDid = &expectedDid
	}

	return reason
}

// NewRkeyMismatch builds the reason for a record key that differs from the record id.
func NewRkeyMismatch(expected, actual string) Reason {
	return RkeyMismatch{Kind: KindRkeyMismatch, Expected: expected, Actual: actual}
}

// NewSchemaValidationError builds the reason bundling all meta-schema issues.
func NewSchemaValidationError(issues []lexicon.Issue) Reason {
	return SchemaValidationError{Kind: KindSchemaValidationError, Issues: issues}
}

// KindOf returns the kind tag of a reason, for logging and summaries.
func KindOf(r Reason) ReasonKind {
	return r.reason()
}

// SummarizeReasons renders the kind tags of a reason list as a short string,
// used in warning-level logs on the invalid path.
func SummarizeReasons(reasons []Reason) string {
	summary := ""

	for i, r := range reasons {
		if i > 0 {
			summary += ","
		}

		summary += string(KindOf(r))
	}

	return summary
}

// Outcome is the result of validating one classified commit: either a parsed
// Lexicon document (valid path) or a non-empty reason list (invalid path).
// Exactly one of Doc and Reasons is set.
type Outcome struct {
	Doc     *lexicon.Doc
	Reasons []Reason
}

// Valid reports whether the commit validated successfully.
func (o Outcome) Valid() bool {
	return o.Doc != nil
}

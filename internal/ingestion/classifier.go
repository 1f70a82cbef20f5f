package ingestion

import "github.com/lexhub-io/lexhub/internal/lexicon"

// Classify inspects a decoded event and decides whether its record payload is
// a Lexicon schema record worth validating.
//
// Returns (commit, true) only for record events whose payload carries the
// Lexicon schema type tag as $type and owns an "id" property. Identity and
// user events, undecodable envelopes, and record events with unrelated
// payloads are all not applicable: they are expected traffic to be
// acknowledged without further processing, never errors.
//
// The check is intentionally shallow. It is a duck-typed structural test that
// filters traffic; full meta-schema validation is the validator's job.
func Classify(event Event) (*Commit, bool) {
	switch event.Type {
	case EventRecord:
		// fall through to payload inspection below
	case EventIdentity, EventUser, EventUndecodable:
		return nil, false
	default:
		return nil, false
	}

	commit := event.Commit
	if commit == nil || commit.Record == nil {
		return nil, false
	}

	typeTag, ok := commit.Record["$type"].(string)
	if !ok || typeTag != lexicon.SchemaTypeTag {
		return nil, false
	}

	if _, ok := commit.Record["id"].(string); !ok {
		return nil, false
	}

	return commit, true
}

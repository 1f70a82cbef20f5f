package lexicon

import (
	"encoding/json"
	"strings"
	"testing"
)

// decode parses a JSON literal into the raw map shape produced by envelope decoding.
func decode(t *testing.T, raw string) map[string]any {
	t.Helper()

	var record map[string]any
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		t.Fatalf("test fixture is not valid JSON: %v", err)
	}

	return record
}

func TestParseDoc_MinimalValid(t *testing.T) {
	record := decode(t, `{
		"lexicon": 1,
		"id": "com.example.foo",
		"defs": {"main": {"type": "object"}}
	}`)

	doc, issues := ParseDoc(record)
	if issues != nil {
		t.Fatalf("ParseDoc returned issues for valid doc: %v", issues)
	}

	if doc.ID != "com.example.foo" {
		t.Errorf("doc.ID = %q, want com.example.foo", doc.ID)
	}

	if doc.Lexicon != 1 {
		t.Errorf("doc.Lexicon = %d, want 1", doc.Lexicon)
	}

	if _, ok := doc.Defs["main"]; !ok {
		t.Error("doc.Defs missing main definition")
	}
}

func TestParseDoc_FullRecordSchema(t *testing.T) {
	record := decode(t, `{
		"lexicon": 1,
		"id": "com.example.profile",
		"revision": 2,
		"description": "A profile record",
		"defs": {
			"main": {
				"type": "record",
				"key": "literal:self",
				"record": {
					"type": "object",
					"required": ["displayName"],
					"properties": {
						"displayName": {"type": "string", "maxLength": 64},
						"age": {"type": "integer", "minimum": 0, "maximum": 150},
						"tags": {"type": "array", "items": {"type": "string"}},
						"avatar": {"type": "blob"},
						"linked": {"type": "ref", "ref": "#linked"}
					}
				}
			},
			"linked": {"type": "object"}
		}
	}`)

	doc, issues := ParseDoc(record)
	if issues != nil {
		t.Fatalf("ParseDoc returned issues for valid record schema: %v", issues)
	}

	if doc.Revision == nil || *doc.Revision != 2 {
		t.Errorf("doc.Revision = %v, want 2", doc.Revision)
	}
}

func TestParseDoc_MissingRequiredFields(t *testing.T) {
	record := decode(t, `{"description": "nothing else"}`)

	doc, issues := ParseDoc(record)
	if doc != nil {
		t.Fatal("ParseDoc returned a doc for an invalid record")
	}

	// lexicon, id and defs are all missing: three independent issues
	if len(issues) != 3 {
		t.Fatalf("ParseDoc returned %d issues, want 3: %v", len(issues), issues)
	}

	paths := map[string]bool{}
	for _, issue := range issues {
		paths[issue.Path] = true
	}

	for _, want := range []string{"lexicon", "id", "defs"} {
		if !paths[want] {
			t.Errorf("missing issue for path %q in %v", want, issues)
		}
	}
}

func TestParseDoc_AccumulatesAllIssues(t *testing.T) {
	// Four independent violations in one document
	record := decode(t, `{
		"lexicon": 2,
		"id": "com.example.foo",
		"defs": {
			"main": {
				"type": "record",
				"record": {"type": "object", "required": ["missing"], "properties": {}}
			},
			"other": {"type": "query"}
		}
	}`)

	doc, issues := ParseDoc(record)
	if doc != nil {
		t.Fatal("ParseDoc returned a doc for an invalid record")
	}

	if len(issues) != 4 {
		t.Fatalf("ParseDoc returned %d issues, want 4: %v", len(issues), issues)
	}
}

func TestParseDoc_PrimaryTypeOutsideMain(t *testing.T) {
	record := decode(t, `{
		"lexicon": 1,
		"id": "com.example.foo",
		"defs": {"extra": {"type": "record", "key": "tid", "record": {"type": "object"}}}
	}`)

	_, issues := ParseDoc(record)
	if len(issues) != 1 {
		t.Fatalf("ParseDoc returned %d issues, want 1: %v", len(issues), issues)
	}

	if issues[0].Path != "defs.extra.type" {
		t.Errorf("issue path = %q, want defs.extra.type", issues[0].Path)
	}
}

func TestParseDoc_UnknownType(t *testing.T) {
	record := decode(t, `{
		"lexicon": 1,
		"id": "com.example.foo",
		"defs": {"main": {"type": "widget"}}
	}`)

	_, issues := ParseDoc(record)
	if len(issues) != 1 {
		t.Fatalf("ParseDoc returned %d issues, want 1: %v", len(issues), issues)
	}

	if !strings.Contains(issues[0].Message, "widget") {
		t.Errorf("issue message %q does not name the unknown type", issues[0].Message)
	}
}

func TestParseDoc_QueryWithParametersAndOutput(t *testing.T) {
	record := decode(t, `{
		"lexicon": 1,
		"id": "com.example.getThing",
		"defs": {
			"main": {
				"type": "query",
				"parameters": {
					"type": "params",
					"properties": {"limit": {"type": "integer"}}
				},
				"output": {
					"encoding": "application/json",
					"schema": {"type": "object"}
				}
			}
		}
	}`)

	_, issues := ParseDoc(record)
	if issues != nil {
		t.Fatalf("ParseDoc returned issues for valid query: %v", issues)
	}
}

func TestParseDoc_OutputMissingEncoding(t *testing.T) {
	record := decode(t, `{
		"lexicon": 1,
		"id": "com.example.getThing",
		"defs": {"main": {"type": "query", "output": {"schema": {"type": "object"}}}}
	}`)

	_, issues := ParseDoc(record)
	if len(issues) != 1 {
		t.Fatalf("ParseDoc returned %d issues, want 1: %v", len(issues), issues)
	}

	if issues[0].Path != "defs.main.output.encoding" {
		t.Errorf("issue path = %q, want defs.main.output.encoding", issues[0].Path)
	}
}

func TestParseDoc_StringConstraintConflict(t *testing.T) {
	record := decode(t, `{
		"lexicon": 1,
		"id": "com.example.foo",
		"defs": {"main": {"type": "string", "minLength": 10, "maxLength": 5}}
	}`)

	_, issues := ParseDoc(record)
	if len(issues) != 1 {
		t.Fatalf("ParseDoc returned %d issues, want 1: %v", len(issues), issues)
	}
}

func TestParseDoc_UnionRefs(t *testing.T) {
	record := decode(t, `{
		"lexicon": 1,
		"id": "com.example.foo",
		"defs": {"main": {"type": "union", "refs": ["#a", 42]}}
	}`)

	_, issues := ParseDoc(record)
	if len(issues) != 1 {
		t.Fatalf("ParseDoc returned %d issues, want 1: %v", len(issues), issues)
	}
}

func TestFormatIssues(t *testing.T) {
	issues := []Issue{
		{Path: "lexicon", Message: "must be 1"},
		{Path: "defs", Message: "required field is missing"},
	}

	got := FormatIssues(issues)
	want := "lexicon: must be 1; defs: required field is missing"

	if got != want {
		t.Errorf("FormatIssues() = %q, want %q", got, want)
	}
}

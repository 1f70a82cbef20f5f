package lexicon

import (
	"fmt"
	"strings"
)

// SchemaTypeTag is the record $type value identifying a Lexicon schema record.
const SchemaTypeTag = "com.atproto.lexicon.schema"

// currentLexiconVersion is the only supported value of the top-level "lexicon" field.
const currentLexiconVersion = 1

type (
	// Doc is a structurally valid Lexicon schema document.
	//
	// Defs values are kept as raw maps rather than fully typed structures:
	// the meta-schema is open-ended (nested objects, refs, unions) and
	// downstream consumers re-serialize the document verbatim.
	Doc struct {
		Lexicon     int                       `json:"lexicon"`
		ID          string                    `json:"id"`
		Revision    *int                      `json:"revision,omitempty"`
		Description string                    `json:"description,omitempty"`
		Defs        map[string]map[string]any `json:"defs"`
	}

	// Issue is a single structured field-level validation problem.
	// Path is a dotted location within the document (e.g. "defs.main.record").
	Issue struct {
		Path    string `json:"path"`
		Message string `json:"message"`
	}
)

// Type names permitted in a definition's "type" field.
//
// Primary types (record, query, procedure, subscription) may only appear
// under the "main" definition name; field types may appear anywhere.
var (
	primaryTypes = map[string]bool{
		"record":       true,
		"query":        true,
		"procedure":    true,
		"subscription": true,
	}

	fieldTypes = map[string]bool{
		"object":   true,
		"array":    true,
		"string":   true,
		"integer":  true,
		"boolean":  true,
		"bytes":    true,
		"cid-link": true,
		"blob":     true,
		"ref":      true,
		"union":    true,
		"token":    true,
		"unknown":  true,
		"null":     true,
		"params":   true,
	}
)

// ParseDoc validates record against the Lexicon meta-schema and, on success,
// returns the parsed document.
//
// Unlike the identity checks that precede it in the ingestion pipeline, this
// stage accumulates every independent violation instead of stopping at the
// first: a non-nil issues slice lists all problems found, and the returned
// Doc is nil. A nil issues slice means the document is valid.
//
// Validation never panics and never returns an error value; structural
// problems are data, reported as issues.
func ParseDoc(record map[string]any) (*Doc, []Issue) {
	var issues []Issue

	doc := &Doc{}

	// Top-level "lexicon" version marker
	switch v := record["lexicon"].(type) {
	case nil:
		issues = append(issues, Issue{Path: "lexicon", Message: "required field is missing"})
	case float64:
		if int(v) != currentLexiconVersion || v != float64(int(v)) {
			issues = append(issues, Issue{
				Path:    "lexicon",
				Message: fmt.Sprintf("must be %d, got %v", currentLexiconVersion, v),
			})
		} else {
			doc.Lexicon = int(v)
		}
	case int:
		if v != currentLexiconVersion {
			issues = append(issues, Issue{
				Path:    "lexicon",
				Message: fmt.Sprintf("must be %d, got %d", currentLexiconVersion, v),
			})
		} else {
			doc.Lexicon = v
		}
	default:
		issues = append(issues, Issue{Path: "lexicon", Message: "must be an integer"})
	}

	// Top-level "id"
	switch v := record["id"].(type) {
	case nil:
		issues = append(issues, Issue{Path: "id", Message: "required field is missing"})
	case string:
		doc.ID = v
	default:
		issues = append(issues, Issue{Path: "id", Message: "must be a string"})
	}

	// Optional metadata
	if v, ok := record["revision"]; ok {
		if f, ok := v.(float64); ok && f == float64(int(f)) {
			rev := int(f)
			doc.Revision = &rev
		} else if i, ok := v.(int); ok {
			doc.Revision = &i
		} else {
			issues = append(issues, Issue{Path: "revision", Message: "must be an integer"})
		}
	}

	if v, ok := record["description"]; ok {
		if s, ok := v.(string); ok {
			doc.Description = s
		} else {
			issues = append(issues, Issue{Path: "description", Message: "must be a string"})
		}
	}

	// "defs" map
	issues = append(issues, parseDefs(record, doc)...)

	if len(issues) > 0 {
		return nil, issues
	}

	return doc, nil
}

// parseDefs validates the top-level defs map and populates doc.Defs.
func parseDefs(record map[string]any, doc *Doc) []Issue {
	var issues []Issue

	rawDefs, ok := record["defs"]
	if !ok {
		return []Issue{{Path: "defs", Message: "required field is missing"}}
	}

	defsMap, ok := rawDefs.(map[string]any)
	if !ok {
		return []Issue{{Path: "defs", Message: "must be an object"}}
	}

	if len(defsMap) == 0 {
		return []Issue{{Path: "defs", Message: "must contain at least one definition"}}
	}

	doc.Defs = make(map[string]map[string]any, len(defsMap))

	for name, rawDef := range defsMap {
		path := "defs." + name

		def, ok := rawDef.(map[string]any)
		if !ok {
			issues = append(issues, Issue{Path: path, Message: "definition must be an object"})

			continue
		}

		issues = append(issues, validateDef(path, name, def)...)
		doc.Defs[name] = def
	}

	return issues
}

// validateDef validates a single named definition, dispatching on its type tag.
func validateDef(path, name string, def map[string]any) []Issue {
	typeName, ok := def["type"].(string)
	if !ok {
		return []Issue{{Path: path + ".type", Message: "definition requires a string type"}}
	}

	if !primaryTypes[typeName] && !fieldTypes[typeName] {
		return []Issue{{Path: path + ".type", Message: fmt.Sprintf("unknown type %q", typeName)}}
	}

	var issues []Issue

	// Primary types are only legal under the "main" definition name
	if primaryTypes[typeName] && name != "main" {
		issues = append(issues, Issue{
			Path:    path + ".type",
			Message: fmt.Sprintf("primary type %q is only allowed in the main definition", typeName),
		})
	}

	issues = append(issues, validateType(path, typeName, def)...)

	return issues
}

// validateType applies per-type structural rules and recurses into nested schemas.
func validateType(path, typeName string, def map[string]any) []Issue {
	switch typeName {
	case "record":
		return validateRecordDef(path, def)
	case "query", "procedure":
		return validateMethodDef(path, def)
	case "subscription":
		return validateSubscriptionDef(path, def)
	case "object", "params":
		return validateObjectDef(path, def)
	case "array":
		return validateArrayDef(path, def)
	case "ref":
		return requireStringField(path, def, "ref")
	case "union":
		return validateUnionDef(path, def)
	case "string":
		return validateStringDef(path, def)
	case "integer":
		return validateIntegerDef(path, def)
	default:
		// boolean, bytes, cid-link, blob, token, unknown, null carry no
		// required structural fields beyond the type tag itself.
		return nil
	}
}

func validateRecordDef(path string, def map[string]any) []Issue {
	var issues []Issue

	if _, ok := def["key"].(string); !ok {
		issues = append(issues, Issue{Path: path + ".key", Message: "record requires a string key"})
	}

	recordSchema, ok := def["record"].(map[string]any)
	if !ok {
		issues = append(issues, Issue{Path: path + ".record", Message: "record requires an object schema"})

		return issues
	}

	if t, _ := recordSchema["type"].(string); t != "object" {
		issues = append(issues, Issue{Path: path + ".record.type", Message: "record schema must have type object"})

		return issues
	}

	issues = append(issues, validateObjectDef(path+".record", recordSchema)...)

	return issues
}

func validateMethodDef(path string, def map[string]any) []Issue {
	var issues []Issue

	if params, ok := def["parameters"]; ok {
		issues = append(issues, validateParamsDef(path+".parameters", params)...)
	}

	for _, field := range []string{"input", "output"} {
		raw, ok := def[field]
		if !ok {
			continue
		}

		body, ok := raw.(map[string]any)
		if !ok {
			issues = append(issues, Issue{Path: path + "." + field, Message: "must be an object"})

			continue
		}

		if _, ok := body["encoding"].(string); !ok {
			issues = append(issues, Issue{
				Path:    path + "." + field + ".encoding",
				Message: "requires a string encoding",
			})
		}

		if schema, ok := body["schema"].(map[string]any); ok {
			if t, _ := schema["type"].(string); t != "" {
				issues = append(issues, validateType(path+"."+field+".schema", t, schema)...)
			}
		}
	}

	return issues
}

func validateSubscriptionDef(path string, def map[string]any) []Issue {
	var issues []Issue

	if params, ok := def["parameters"]; ok {
		issues = append(issues, validateParamsDef(path+".parameters", params)...)
	}

	if raw, ok := def["message"]; ok {
		message, ok := raw.(map[string]any)
		if !ok {
			issues = append(issues, Issue{Path: path + ".message", Message: "must be an object"})

			return issues
		}

		if _, ok := message["schema"].(map[string]any); !ok {
			issues = append(issues, Issue{Path: path + ".message.schema", Message: "requires an object schema"})
		}
	}

	return issues
}

func validateParamsDef(path string, raw any) []Issue {
	params, ok := raw.(map[string]any)
	if !ok {
		return []Issue{{Path: path, Message: "must be an object"}}
	}

	if t, _ := params["type"].(string); t != "params" {
		return []Issue{{Path: path + ".type", Message: "parameters must have type params"}}
	}

	return validateObjectDef(path, params)
}

func validateObjectDef(path string, def map[string]any) []Issue {
	var issues []Issue

	properties := map[string]any{}

	if raw, ok := def["properties"]; ok {
		props, ok := raw.(map[string]any)
		if !ok {
			issues = append(issues, Issue{Path: path + ".properties", Message: "must be an object"})
		} else {
			properties = props

			for propName, rawProp := range props {
				propPath := path + ".properties." + propName

				prop, ok := rawProp.(map[string]any)
				if !ok {
					issues = append(issues, Issue{Path: propPath, Message: "property must be an object"})

					continue
				}

				propType, ok := prop["type"].(string)
				if !ok {
					issues = append(issues, Issue{Path: propPath + ".type", Message: "property requires a string type"})

					continue
				}

				if !fieldTypes[propType] {
					issues = append(issues, Issue{
						Path:    propPath + ".type",
						Message: fmt.Sprintf("unknown type %q", propType),
					})

					continue
				}

				issues = append(issues, validateType(propPath, propType, prop)...)
			}
		}
	}

	// "required" and "nullable" must reference declared properties
	for _, field := range []string{"required", "nullable"} {
		raw, ok := def[field]
		if !ok {
			continue
		}

		names, ok := raw.([]any)
		if !ok {
			issues = append(issues, Issue{Path: path + "." + field, Message: "must be an array of strings"})

			continue
		}

		for _, rawName := range names {
			name, ok := rawName.(string)
			if !ok {
				issues = append(issues, Issue{Path: path + "." + field, Message: "must be an array of strings"})

				continue
			}

			if _, declared := properties[name]; !declared {
				issues = append(issues, Issue{
					Path:    path + "." + field,
					Message: fmt.Sprintf("references undeclared property %q", name),
				})
			}
		}
	}

	return issues
}

func validateArrayDef(path string, def map[string]any) []Issue {
	items, ok := def["items"].(map[string]any)
	if !ok {
		return []Issue{{Path: path + ".items", Message: "array requires an object items schema"}}
	}

	itemType, ok := items["type"].(string)
	if !ok {
		return []Issue{{Path: path + ".items.type", Message: "items requires a string type"}}
	}

	if !fieldTypes[itemType] {
		return []Issue{{Path: path + ".items.type", Message: fmt.Sprintf("unknown type %q", itemType)}}
	}

	return validateType(path+".items", itemType, items)
}

func validateUnionDef(path string, def map[string]any) []Issue {
	refs, ok := def["refs"].([]any)
	if !ok {
		return []Issue{{Path: path + ".refs", Message: "union requires an array of refs"}}
	}

	var issues []Issue

	for i, raw := range refs {
		if _, ok := raw.(string); !ok {
			issues = append(issues, Issue{
				Path:    fmt.Sprintf("%s.refs[%d]", path, i),
				Message: "ref must be a string",
			})
		}
	}

	return issues
}

func validateStringDef(path string, def map[string]any) []Issue {
	var issues []Issue

	minLen, hasMin, minIssues := optionalNonNegativeInt(path, def, "minLength")
	maxLen, hasMax, maxIssues := optionalNonNegativeInt(path, def, "maxLength")
	issues = append(issues, minIssues...)
	issues = append(issues, maxIssues...)

	if hasMin && hasMax && minLen > maxLen {
		issues = append(issues, Issue{
			Path:    path + ".minLength",
			Message: fmt.Sprintf("minLength %d exceeds maxLength %d", minLen, maxLen),
		})
	}

	if raw, ok := def["enum"]; ok {
		values, ok := raw.([]any)
		if !ok {
			issues = append(issues, Issue{Path: path + ".enum", Message: "must be an array of strings"})
		} else {
			for i, v := range values {
				if _, ok := v.(string); !ok {
					issues = append(issues, Issue{
						Path:    fmt.Sprintf("%s.enum[%d]", path, i),
						Message: "enum value must be a string",
					})
				}
			}
		}
	}

	return issues
}

func validateIntegerDef(path string, def map[string]any) []Issue {
	var issues []Issue

	minimum, hasMin, ok := numberField(def, "minimum")
	if !ok {
		issues = append(issues, Issue{Path: path + ".minimum", Message: "must be an integer"})
	}

	maximum, hasMax, ok := numberField(def, "maximum")
	if !ok {
		issues = append(issues, Issue{Path: path + ".maximum", Message: "must be an integer"})
	}

	if hasMin && hasMax && minimum > maximum {
		issues = append(issues, Issue{
			Path:    path + ".minimum",
			Message: fmt.Sprintf("minimum %v exceeds maximum %v", minimum, maximum),
		})
	}

	return issues
}

// requireStringField reports an issue when def[field] is missing or not a string.
func requireStringField(path string, def map[string]any, field string) []Issue {
	if _, ok := def[field].(string); !ok {
		return []Issue{{Path: path + "." + field, Message: "requires a string " + field}}
	}

	return nil
}

// optionalNonNegativeInt reads an optional integer field that must be >= 0.
func optionalNonNegativeInt(path string, def map[string]any, field string) (int, bool, []Issue) {
	raw, ok := def[field]
	if !ok {
		return 0, false, nil
	}

	f, ok := raw.(float64)
	if !ok || f != float64(int(f)) {
		return 0, false, []Issue{{Path: path + "." + field, Message: "must be an integer"}}
	}

	if f < 0 {
		return 0, false, []Issue{{Path: path + "." + field, Message: "must not be negative"}}
	}

	return int(f), true, nil
}

// numberField reads an optional numeric field.
// Returns (value, present, valid); valid is false when present but not a number.
func numberField(def map[string]any, field string) (float64, bool, bool) {
	raw, ok := def[field]
	if !ok {
		return 0, false, true
	}

	f, ok := raw.(float64)
	if !ok {
		return 0, false, false
	}

	return f, true, true
}

// FormatIssues renders issues as a single human-readable summary line,
// used for warning-level logs on the invalid path.
func FormatIssues(issues []Issue) string {
	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = issue.Path + ": " + issue.Message
	}

	return strings.Join(parts, "; ")
}

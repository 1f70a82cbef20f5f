// Package lexicon provides NSID parsing and Lexicon document meta-schema validation.
//
// An NSID (Namespaced Identifier) is a reverse-DNS-style dotted name identifying
// a Lexicon schema, e.g. "com.example.fooBar". All segments except the last form
// the domain authority ("com.example"); the final segment is the schema name
// ("fooBar"). The authority maps back to a DNS name with the segment order
// reversed ("example.com").
package lexicon

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// NSID grammar limits.
const (
	// maxNSIDLength is the maximum overall NSID length in characters.
	maxNSIDLength = 317
	// maxSegmentLength is the maximum length of any single segment (DNS label limit).
	maxSegmentLength = 63
	// minSegments is the minimum segment count: two authority segments plus a name.
	minSegments = 3
)

// Sentinel errors for NSID parsing failures.
var (
	ErrNSIDEmpty            = errors.New("nsid cannot be empty")
	ErrNSIDTooLong          = errors.New("nsid exceeds maximum length")
	ErrNSIDTooFewSegments   = errors.New("nsid requires at least two authority segments and a name")
	ErrNSIDBadAuthority     = errors.New("invalid nsid authority segment")
	ErrNSIDAuthorityDigit   = errors.New("nsid authority cannot start with a digit")
	ErrNSIDBadName          = errors.New("invalid nsid name segment")
)

// Pre-compiled segment patterns, compiled once at package initialization.
//
// Authority segments are lowercase DNS labels: letters, digits and hyphens,
// 1-63 chars, no leading or trailing hyphen. The name segment is a camelCase
// identifier: a leading letter followed by ASCII letters and digits.
var (
	authoritySegmentPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)
	nameSegmentPattern      = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]{0,62}$`)
)

// NSID is a parsed, validated Namespaced Identifier.
// The zero value is not valid; construct via ParseNSID.
type NSID struct {
	raw      string
	segments []string
}

// ParseNSID parses and validates s against the full NSID grammar.
//
// Validation rules:
//   - Overall length at most 317 characters
//   - At least three dot-separated segments (two authority segments + name)
//   - Authority segments are lowercase DNS labels (1-63 chars, no edge hyphens)
//   - The first authority segment may not start with a digit
//   - The final segment is a camelCase name (leading letter, alphanumeric)
//
// Returns a wrapped sentinel error identifying the first violated rule.
func ParseNSID(s string) (NSID, error) {
	if s == "" {
		return NSID{}, ErrNSIDEmpty
	}

	if len(s) > maxNSIDLength {
		return NSID{}, fmt.Errorf("%w: %d characters (max %d)", ErrNSIDTooLong, len(s), maxNSIDLength)
	}

	segments := strings.Split(s, ".")
	if len(segments) < minSegments {
		return NSID{}, fmt.Errorf("%w: got %d segments", ErrNSIDTooFewSegments, len(segments))
	}

	// All segments except the last form the domain authority
	for i, segment := range segments[:len(segments)-1] {
		if !authoritySegmentPattern.MatchString(segment) {
			return NSID{}, fmt.Errorf("%w: %q", ErrNSIDBadAuthority, segment)
		}

		if i == 0 && segment[0] >= '0' && segment[0] <= '9' {
			return NSID{}, fmt.Errorf("%w: %q", ErrNSIDAuthorityDigit, segment)
		}
	}

	name := segments[len(segments)-1]
	if !nameSegmentPattern.MatchString(name) {
		return NSID{}, fmt.Errorf("%w: %q", ErrNSIDBadName, name)
	}

	return NSID{raw: s, segments: segments}, nil
}

// IsValidNSID reports whether s satisfies the full NSID grammar.
func IsValidNSID(s string) bool {
	_, err := ParseNSID(s)

	return err == nil
}

// String returns the original dotted NSID string.
func (n NSID) String() string {
	return n.raw
}

// Authority returns the domain-authority portion in NSID order,
// e.g. "com.example" for "com.example.fooBar".
func (n NSID) Authority() string {
	return strings.Join(n.segments[:len(n.segments)-1], ".")
}

// Name returns the final (schema name) segment, e.g. "fooBar".
func (n NSID) Name() string {
	return n.segments[len(n.segments)-1]
}

// AuthorityDomain returns the authority as a DNS hostname with the segment
// order reversed, e.g. "example.com" for "com.example.fooBar". This is the
// name consulted during DID authority resolution.
func (n NSID) AuthorityDomain() string {
	authority := n.segments[:len(n.segments)-1]
	reversed := make([]string, len(authority))

	for i, segment := range authority {
		reversed[len(authority)-1-i] = segment
	}

	return strings.Join(reversed, ".")
}

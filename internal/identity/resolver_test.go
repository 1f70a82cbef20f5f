package identity

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLookup builds a txtLookupFunc serving canned TXT records per name,
// counting calls so cache behavior is observable.
type fakeLookup struct {
	records map[string][]string
	err     error
	calls   int
}

func (f *fakeLookup) lookup(_ context.Context, name string) ([]string, error) {
	f.calls++

	if f.err != nil {
		return nil, f.err
	}

	records, ok := f.records[name]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}

	return records, nil
}

func newTestResolver(lookup *fakeLookup, overrides map[string]string) *Resolver {
	r := NewResolver(
		&Config{AuthorityOverrides: overrides},
		&ResolverConfig{
			CacheTTL:         time.Minute,
			NegativeCacheTTL: time.Minute,
			LookupTimeout:    time.Second,
		},
	)
	r.lookupTXT = lookup.lookup

	return r
}

func TestResolveAuthorityDid_FromTXTRecord(t *testing.T) {
	lookup := &fakeLookup{records: map[string][]string{
		"_lexicon.example.com": {"did=did:plc:abc"},
	}}
	r := newTestResolver(lookup, nil)

	did, err := r.ResolveAuthorityDid(context.Background(), "example.com")

	require.NoError(t, err)
	assert.Equal(t, "did:plc:abc", did)
	assert.Equal(t, 1, lookup.calls)
}

func TestResolveAuthorityDid_CachesPositiveResult(t *testing.T) {
	lookup := &fakeLookup{records: map[string][]string{
		"_lexicon.example.com": {"did=did:plc:abc"},
	}}
	r := newTestResolver(lookup, nil)

	for range 3 {
		did, err := r.ResolveAuthorityDid(context.Background(), "example.com")
		require.NoError(t, err)
		assert.Equal(t, "did:plc:abc", did)
	}

	assert.Equal(t, 1, lookup.calls, "repeat lookups must be served from cache")
}

func TestResolveAuthorityDid_NoBinding(t *testing.T) {
	lookup := &fakeLookup{records: map[string][]string{}}
	r := newTestResolver(lookup, nil)

	did, err := r.ResolveAuthorityDid(context.Background(), "unbound.example")

	require.NoError(t, err, "NXDOMAIN is absence of a binding, not a failure")
	assert.Empty(t, did)

	// Absence is cached too
	_, err = r.ResolveAuthorityDid(context.Background(), "unbound.example")
	require.NoError(t, err)
	assert.Equal(t, 1, lookup.calls)
}

func TestResolveAuthorityDid_IgnoresUnrelatedRecords(t *testing.T) {
	lookup := &fakeLookup{records: map[string][]string{
		"_lexicon.example.com": {
			"v=spf1 -all",
			"did=not-a-did",
			"did=did:web:example.com",
		},
	}}
	r := newTestResolver(lookup, nil)

	did, err := r.ResolveAuthorityDid(context.Background(), "example.com")

	require.NoError(t, err)
	assert.Equal(t, "did:web:example.com", did)
}

func TestResolveAuthorityDid_LookupFailure(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("connection refused")}
	r := newTestResolver(lookup, nil)

	did, err := r.ResolveAuthorityDid(context.Background(), "example.com")

	require.Error(t, err)
	assert.Empty(t, did)

	// Failures are not cached; the next call retries
	_, err = r.ResolveAuthorityDid(context.Background(), "example.com")
	require.Error(t, err)
	assert.Equal(t, 2, lookup.calls)
}

func TestResolveAuthorityDid_OverrideBeforeDNS(t *testing.T) {
	lookup := &fakeLookup{records: map[string][]string{
		"_lexicon.example.com": {"did=did:plc:fromdns"},
	}}
	r := newTestResolver(lookup, map[string]string{
		"example.com": "did:plc:pinned",
	})

	did, err := r.ResolveAuthorityDid(context.Background(), "example.com")

	require.NoError(t, err)
	assert.Equal(t, "did:plc:pinned", did)
	assert.Equal(t, 0, lookup.calls, "overridden domains must never hit DNS")
}

func TestResolveAuthorityDid_NormalizesDomain(t *testing.T) {
	lookup := &fakeLookup{records: map[string][]string{
		"_lexicon.example.com": {"did=did:plc:abc"},
	}}
	r := newTestResolver(lookup, nil)

	did, err := r.ResolveAuthorityDid(context.Background(), "  Example.COM ")

	require.NoError(t, err)
	assert.Equal(t, "did:plc:abc", did)
}

func TestResolveAuthorityDid_EmptyDomain(t *testing.T) {
	lookup := &fakeLookup{}
	r := newTestResolver(lookup, nil)

	did, err := r.ResolveAuthorityDid(context.Background(), "")

	require.NoError(t, err)
	assert.Empty(t, did)
	assert.Equal(t, 0, lookup.calls)
}

func TestOverrideCount(t *testing.T) {
	r := NewResolver(&Config{AuthorityOverrides: map[string]string{
		"a.example": "did:plc:a",
		"b.example": "did:plc:b",
	}}, nil)

	assert.Equal(t, 2, r.OverrideCount())

	var nilResolver *Resolver

	assert.Equal(t, 0, nilResolver.OverrideCount())
}

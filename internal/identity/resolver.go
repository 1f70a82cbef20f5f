package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// txtRecordPrefix is the DNS label prepended to the authority domain.
// The binding for example.com lives at _lexicon.example.com.
const txtRecordPrefix = "_lexicon."

// didValuePrefix marks the TXT record value carrying the authority DID.
const didValuePrefix = "did="

// txtLookupFunc performs a DNS TXT lookup. Extracted so tests can inject a
// fake without a network.
type txtLookupFunc func(ctx context.Context, name string) ([]string, error)

// Resolver resolves authority domains to DIDs via DNS TXT records, with an
// in-memory TTL cache in front. Thread-safe for concurrent use.
//
// Resolution order:
//  1. Static overrides from .lexhub.yaml (never expire)
//  2. TTL cache (positive and negative entries)
//  3. DNS TXT lookup at _lexicon.<domain>
//
// A domain with no binding resolves to ("", nil): absence is a normal outcome,
// cached like any other, and distinct from a lookup failure.
type Resolver struct {
	overrides     map[string]string
	cache         *cache.Cache
	lookupTXT     txtLookupFunc
	lookupTimeout time.Duration
	negativeTTL   time.Duration
}

// NewResolver creates a Resolver from the override config and tuning.
// Either argument may be nil; defaults apply.
func NewResolver(cfg *Config, resolverCfg *ResolverConfig) *Resolver {
	if resolverCfg == nil {
		resolverCfg = &ResolverConfig{
			CacheTTL:         defaultCacheTTL,
			NegativeCacheTTL: defaultNegativeCacheTTL,
			LookupTimeout:    defaultLookupTimeout,
		}
	}

	overrides := map[string]string{}
	if cfg != nil && cfg.AuthorityOverrides != nil {
		overrides = cfg.AuthorityOverrides
	}

	return &Resolver{
		overrides:     overrides,
		cache:         cache.New(resolverCfg.CacheTTL, 2*resolverCfg.CacheTTL),
		lookupTXT:     net.DefaultResolver.LookupTXT,
		lookupTimeout: resolverCfg.LookupTimeout,
		negativeTTL:   resolverCfg.NegativeCacheTTL,
	}
}

// OverrideCount returns the number of configured static overrides.
func (r *Resolver) OverrideCount() int {
	if r == nil {
		return 0
	}

	return len(r.overrides)
}

// ResolveAuthorityDid returns the DID bound to the given authority domain,
// or ("", nil) when no binding exists. A non-nil error means the lookup
// itself failed (DNS error, timeout) and nothing was cached.
func (r *Resolver) ResolveAuthorityDid(ctx context.Context, domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return "", nil
	}

	if did, ok := r.overrides[domain]; ok {
		return did, nil
	}

	if cached, ok := r.cache.Get(domain); ok {
		did, _ := cached.(string)

		return did, nil
	}

	did, err := r.queryTXT(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			// NXDOMAIN means no binding, not a failure
			r.cache.Set(domain, "", r.negativeTTL)

			return "", nil
		}

		slog.Warn("Authority DNS lookup failed",
			slog.String("domain", domain),
			slog.String("error", err.Error()))

		return "", fmt.Errorf("resolving authority for %s: %w", domain, err)
	}

	if did == "" {
		r.cache.Set(domain, "", r.negativeTTL)

		return "", nil
	}

	r.cache.Set(domain, did, cache.DefaultExpiration)

	slog.Debug("Resolved authority binding",
		slog.String("domain", domain),
		slog.String("did", did))

	return did, nil
}

// queryTXT performs the bounded DNS lookup and extracts the first did= value.
func (r *Resolver) queryTXT(ctx context.Context, domain string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	records, err := r.lookupTXT(ctx, txtRecordPrefix+domain)
	if err != nil {
		return "", err
	}

	for _, record := range records {
		value := strings.TrimSpace(record)
		if !strings.HasPrefix(value, didValuePrefix) {
			continue
		}

		did := strings.TrimPrefix(value, didValuePrefix)
		if strings.HasPrefix(did, "did:") {
			return did, nil
		}
	}

	return "", nil
}

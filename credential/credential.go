// Package credential defines the credential shape and provider interface
// that the Signer and Executor pull from, plus a couple of concrete
// providers.
package credential

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Credential is a SigV4 access key triple plus the optional session token
// used by temporary (STS-issued) credentials.
type Credential struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expires         time.Time // zero means "does not expire"
}

// IsEmpty reports whether c carries no usable key material. The Signer
// treats an empty Credential as "skip signing" rather than an error, so
// that anonymous requests (public S3 objects, health checks) pass through
// the same code path as signed ones.
func (c Credential) IsEmpty() bool {
	return c.AccessKeyID == "" && c.SecretAccessKey == ""
}

// Expired reports whether c's Expires time has passed, given the current
// time t. A zero Expires never expires.
func (c Credential) Expired(t time.Time) bool {
	return !c.Expires.IsZero() && !t.Before(c.Expires)
}

// Provider resolves a Credential, potentially performing network I/O
// (STS AssumeRole, IMDS, an ECS container endpoint). Implementations must
// be safe for concurrent use.
type Provider interface {
	Retrieve(ctx context.Context) (Credential, error)
}

// Static returns a Provider that always yields the same Credential — the
// common case of access key/secret key supplied directly in
// configuration or environment variables.
func Static(cred Credential) Provider {
	return staticProvider{cred: cred}
}

type staticProvider struct{ cred Credential }

func (p staticProvider) Retrieve(ctx context.Context) (Credential, error) {
	return p.cred, nil
}

// AnonymousProvider always yields an empty Credential, so requests are
// built and dispatched unsigned.
var AnonymousProvider Provider = staticProvider{}

// cacheKey is deliberately constant: a Provider wrapped by NewCaching
// represents one principal, so the cache only ever needs to remember its
// single most recent resolution (and is sized at 1 to keep the LRU
// eviction machinery, not because more than one entry is expected).
const cacheKey = "credential"

// CachingProvider wraps a Provider, reusing its last resolved Credential
// until it is within refreshWindow of expiring. mu is what actually
// serializes concurrent Retrieve calls during a refresh — golang-lru's
// own internal lock only protects individual Get/Add calls, not the
// check-then-refresh-then-store sequence below, so it can't by itself
// prevent two goroutines from both missing the cache and both calling
// inner.Retrieve. The LRU is used here for its eviction bookkeeping
// (sized at exactly one entry, since a Provider wrapped by NewCaching
// represents a single principal) rather than for concurrency control.
type CachingProvider struct {
	inner         Provider
	refreshWindow time.Duration
	now           func() time.Time

	mu    sync.Mutex
	cache *lru.Cache[string, Credential]
}

// NewCaching wraps inner so repeated Retrieve calls reuse the last
// resolved Credential until it is within refreshWindow of Expires.
func NewCaching(inner Provider, refreshWindow time.Duration) *CachingProvider {
	c, _ := lru.New[string, Credential](1)
	return &CachingProvider{inner: inner, refreshWindow: refreshWindow, now: time.Now, cache: c}
}

func (p *CachingProvider) Retrieve(ctx context.Context) (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if cred, ok := p.cache.Get(cacheKey); ok && !p.needsRefresh(cred, now) {
		return cred, nil
	}

	cred, err := p.inner.Retrieve(ctx)
	if err != nil {
		return Credential{}, err
	}
	p.cache.Add(cacheKey, cred)
	return cred, nil
}

func (p *CachingProvider) needsRefresh(cred Credential, now time.Time) bool {
	if cred.Expires.IsZero() {
		return false
	}
	return !now.Before(cred.Expires.Add(-p.refreshWindow))
}

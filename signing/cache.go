package signing

import "sync"

// signerCache memoizes the derived signing key per (date, region,
// service, secret key) so that signing many requests against the same
// service on the same UTC day costs one HMAC chain instead of four per
// request. Keyed on the secret key itself (not a credential identity)
// since that is the only input the derivation depends on beyond the
// date/region/service already in the cache key.
type signerCache struct {
	mu      sync.Mutex
	dateKey string
	entries map[string][]byte
}

func cacheKey(secretKey, dateStamp, region, service string) string {
	return dateStamp + "|" + region + "|" + service + "|" + secretKey
}

func (s *Signer) signingKey(secretKey, dateStamp, region, service string) []byte {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()

	if s.cache.dateKey != dateStamp {
		s.cache.entries = nil
		s.cache.dateKey = dateStamp
	}
	if s.cache.entries == nil {
		s.cache.entries = make(map[string][]byte)
	}

	key := cacheKey(secretKey, dateStamp, region, service)
	if k, ok := s.cache.entries[key]; ok {
		return k
	}
	k := deriveSigningKey(secretKey, dateStamp, region, service)
	s.cache.entries[key] = k
	return k
}

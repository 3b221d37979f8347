package flagcore

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"regexp"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// bucketingHash returns the first 8 bytes of a user's SHA-256-hashed
// bucketing key, big-endian, as used for salted rule/experiment allocation.
func bucketingHash(key string) uint64 {
	sum := sha256.Sum256([]byte(key))
	return binary.BigEndian.Uint64(sum[:8])
}

// segmentHash returns the base64 prefix an in_segment_list condition looks
// up against an IDList's membership set.
func segmentHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.StdEncoding.EncodeToString(sum[:])[:8]
}

// djb2Hash is the classic Bernstein string hash, used (as a string, base36)
// by the "djb2" client-projection hash algorithm.
func djb2Hash(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range []byte(s) {
		hash = hash*33 + uint32(c)
	}
	return hash
}

// hashName projects a spec name according to algorithm: "sha256" (default,
// full base64-encoded digest), "djb2" (compact numeric hash), or "none"
// (the name is left untouched — used for debugging, never by real clients).
func hashName(name string, algorithm string) string {
	switch algorithm {
	case "djb2":
		return itoa36(djb2Hash(name))
	case "none":
		return name
	default:
		sum := sha256.Sum256([]byte(name))
		return base64.StdEncoding.EncodeToString(sum[:])
	}
}

func itoa36(v uint32) string {
	if v == 0 {
		return "0"
	}
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	var buf [32]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v%36]
		v /= 36
	}
	return string(buf[i:])
}

// regexCache bounds the cost of re-compiling str_matches patterns: entries
// are evicted LRU once the cache hits capacity, and a failed compile is
// never cached (so a bad pattern never poisons a later, corrected one).
type regexCache struct {
	cache *lru.Cache
}

func newRegexCache(capacity int) *regexCache {
	c, _ := lru.New(capacity)
	return &regexCache{cache: c}
}

func (r *regexCache) compile(pattern string) (*regexp.Regexp, error) {
	if v, ok := r.cache.Get(pattern); ok {
		return v.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	r.cache.Add(pattern, re)
	return re, nil
}

// hashLookupCache is the bounded, non-LRU segment-membership lookup cache:
// once it reaches its capacity it clears entirely and starts collecting
// fresh rather than evicting individual entries, trading a one-time cold
// burst for a far cheaper cache in the steady state.
type hashLookupCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]bool
}

func newHashLookupCache(capacity int) *hashLookupCache {
	return &hashLookupCache{capacity: capacity, entries: make(map[string]bool)}
}

func (h *hashLookupCache) get(key string) (bool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.entries[key]
	return v, ok
}

func (h *hashLookupCache) set(key string, value bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) >= h.capacity {
		h.entries = make(map[string]bool)
	}
	h.entries[key] = value
}

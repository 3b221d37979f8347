package flagcore

import "testing"

func TestBucketingHashIsStableAndDistinct(t *testing.T) {
	a := bucketingHash("user:1")
	b := bucketingHash("user:1")
	if a != b {
		t.Fatalf("bucketingHash not stable: %d != %d", a, b)
	}
	if bucketingHash("user:2") == a {
		t.Fatalf("expected distinct hashes for distinct keys")
	}
}

func TestSegmentHashLength(t *testing.T) {
	h := segmentHash("user-123")
	if len(h) != 8 {
		t.Fatalf("expected an 8-character segment hash, got %q", h)
	}
}

func TestHashNameAlgorithms(t *testing.T) {
	if hashName("my_gate", "none") != "my_gate" {
		t.Fatalf("none algorithm should leave the name untouched")
	}
	sha := hashName("my_gate", "sha256")
	if sha == "my_gate" || len(sha) == 0 {
		t.Fatalf("sha256 algorithm should hash the name")
	}
	djb2 := hashName("my_gate", "djb2")
	if djb2 == "my_gate" || djb2 == sha {
		t.Fatalf("djb2 algorithm should produce a distinct compact hash")
	}
	if hashName("my_gate", "djb2") != djb2 {
		t.Fatalf("djb2 algorithm should be deterministic")
	}
}

func TestRegexCacheOnlyCachesSuccessfulCompiles(t *testing.T) {
	cache := newRegexCache(10)
	if _, err := cache.compile("["); err == nil {
		t.Fatalf("expected an error compiling an invalid pattern")
	}
	if _, ok := cache.cache.Get("["); ok {
		t.Fatalf("a failed compile should never be cached")
	}
	re, err := cache.compile("^abc$")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !re.MatchString("abc") {
		t.Fatalf("expected compiled regex to match")
	}
	if _, ok := cache.cache.Get("^abc$"); !ok {
		t.Fatalf("expected a successful compile to be cached")
	}
}

func TestHashLookupCacheClearsAtCapacity(t *testing.T) {
	cache := newHashLookupCache(2)
	cache.set("a", true)
	cache.set("b", false)
	if v, ok := cache.get("a"); !ok || !v {
		t.Fatalf("expected a to be cached as true")
	}
	cache.set("c", true)
	if _, ok := cache.get("a"); ok {
		t.Fatalf("expected the cache to have cleared at capacity")
	}
	if v, ok := cache.get("c"); !ok || !v {
		t.Fatalf("expected c to survive the clear that admitted it")
	}
}

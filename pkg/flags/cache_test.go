package flags

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"flagsync/pkg/api"
)

func testEntries() map[string]Entry {
	return map[string]Entry{
		"feature": {
			Variation:    Value{Kind: KindString, Str: "on"},
			VariationID:  "v1",
			Version:      "2",
			ConfigID:     "c1",
			ExperienceID: "e1",
		},
	}
}

func newTestCache(t *testing.T, policy CachePolicy) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.bin")
	return NewCache(path, policy, log.New(io.Discard, "", 0))
}

func TestCache_RoundTrip(t *testing.T) {
	c := newTestCache(t, CachePolicy{Persist: true, TTL: time.Hour})
	headers := api.CacheHeaders{ETag: `"v1"`, LastModified: "Tue, 01 Aug 2023 00:00:00 GMT"}

	c.Save(testEntries(), headers, true)

	entries, gotHeaders, enabled, ok := c.Load()
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !enabled {
		t.Error("enabled flag lost")
	}
	if gotHeaders != headers {
		t.Errorf("headers mismatch: %+v", gotHeaders)
	}
	e, found := entries["feature"]
	if !found || e.ExperienceID != "e1" {
		t.Errorf("entries mismatch: %+v", entries)
	}
	if v, okv := e.Variation.AsString(); !okv || v != "on" {
		t.Errorf("variation lost in round trip: %+v", e.Variation)
	}
}

func TestCache_ExpiredSnapshotKeepsHeaders(t *testing.T) {
	c := newTestCache(t, CachePolicy{Persist: true, TTL: time.Hour})
	headers := api.CacheHeaders{ETag: `"v1"`}
	c.Save(testEntries(), headers, true)

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	entries, gotHeaders, _, ok := c.Load()
	if ok {
		t.Fatal("expired snapshot should not be served")
	}
	if entries != nil {
		t.Error("expired entries leaked")
	}
	// Markers survive expiry so the next fetch stays conditional.
	if gotHeaders != headers {
		t.Errorf("expected headers preserved past expiry, got %+v", gotHeaders)
	}
}

func TestCache_AllowStaleServesExpiredSnapshot(t *testing.T) {
	c := newTestCache(t, CachePolicy{Persist: true, TTL: time.Hour, AllowStale: true})
	c.Save(testEntries(), api.CacheHeaders{}, true)

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, _, _, ok := c.Load(); !ok {
		t.Error("stale-while-revalidate policy should serve the expired snapshot")
	}
}

func TestCache_EvictOnRestartDiscards(t *testing.T) {
	c := newTestCache(t, CachePolicy{Persist: true, EvictOnRestart: true})
	c.policy.EvictOnRestart = false
	c.Save(testEntries(), api.CacheHeaders{}, true)
	c.policy.EvictOnRestart = true

	if _, _, _, ok := c.Load(); ok {
		t.Fatal("evict-on-restart policy must discard the snapshot")
	}
	if _, err := os.Stat(c.path); !os.IsNotExist(err) {
		t.Error("expected cache file removed")
	}
}

func TestCache_PersistDisabledWritesNothing(t *testing.T) {
	c := newTestCache(t, CachePolicy{Persist: false})
	c.Save(testEntries(), api.CacheHeaders{}, true)

	if _, err := os.Stat(c.path); !os.IsNotExist(err) {
		t.Error("persist=false must not write a file")
	}
	if _, _, _, ok := c.Load(); ok {
		t.Error("persist=false must not load")
	}
}

func TestCache_SaveMetadataKeepsEntries(t *testing.T) {
	c := newTestCache(t, CachePolicy{Persist: true})
	c.Save(testEntries(), api.CacheHeaders{ETag: `"v1"`}, true)

	c.SaveMetadata(api.CacheHeaders{ETag: `"v2"`}, false)

	entries, headers, enabled, ok := c.Load()
	if !ok {
		t.Fatal("expected cache hit")
	}
	if enabled {
		t.Error("enablement flag should have advanced to false")
	}
	if headers.ETag != `"v2"` {
		t.Errorf("expected advanced markers, got %+v", headers)
	}
	if _, found := entries["feature"]; !found {
		t.Error("metadata-only save must keep the stored entries")
	}
}

func TestCache_CorruptFileStartsEmpty(t *testing.T) {
	c := newTestCache(t, CachePolicy{Persist: true})
	if err := os.WriteFile(c.path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, ok := c.Load(); ok {
		t.Error("corrupt cache must load as empty")
	}
}

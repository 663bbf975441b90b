package flags

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"flagsync/pkg/api"
)

// CachePolicy governs how the persisted snapshot is treated.
type CachePolicy struct {
	TTL            time.Duration // 0 disables expiry
	AllowStale     bool          // stale-while-revalidate: serve an expired snapshot until refreshed
	EvictOnRestart bool          // discard the persisted snapshot at load
	Persist        bool          // write the snapshot across restarts at all
}

type cacheFile struct {
	Entries     map[string]Entry `msgpack:"entries"`
	Headers     api.CacheHeaders `msgpack:"headers"`
	FetchedAtMs int64            `msgpack:"fetched_at_ms"`
	Enabled     bool             `msgpack:"enabled"`
}

// Cache persists the config snapshot and its conditional-fetch metadata.
// Like the overflow store it is fail-soft throughout.
type Cache struct {
	path   string
	policy CachePolicy
	logger *log.Logger
	now    func() time.Time
}

// NewCache creates a cache at path under the given policy.
func NewCache(path string, policy CachePolicy, logger *log.Logger) *Cache {
	return &Cache{path: path, policy: policy, logger: logger, now: time.Now}
}

// Load returns the persisted snapshot if the policy admits it. The
// returned headers still seed conditional fetches even when the entries
// are rejected as expired.
func (c *Cache) Load() (entries map[string]Entry, headers api.CacheHeaders, enabled bool, ok bool) {
	if !c.policy.Persist {
		return nil, api.CacheHeaders{}, false, false
	}
	if c.policy.EvictOnRestart {
		if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
			c.logger.Printf("config cache: evict failed: %v", err)
		}
		return nil, api.CacheHeaders{}, false, false
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Printf("config cache: read failed: %v", err)
		}
		return nil, api.CacheHeaders{}, false, false
	}

	var f cacheFile
	if err := msgpack.Unmarshal(data, &f); err != nil {
		c.logger.Printf("config cache: corrupt file, discarding: %v", err)
		return nil, api.CacheHeaders{}, false, false
	}

	if c.policy.TTL > 0 {
		age := c.now().Sub(time.UnixMilli(f.FetchedAtMs))
		if age > c.policy.TTL && !c.policy.AllowStale {
			c.logger.Printf("config cache: snapshot expired (%s old), starting empty", age.Round(time.Second))
			return nil, f.Headers, f.Enabled, false
		}
	}
	return f.Entries, f.Headers, f.Enabled, true
}

// Save persists the snapshot with its metadata.
func (c *Cache) Save(entries map[string]Entry, headers api.CacheHeaders, enabled bool) {
	if !c.policy.Persist {
		return
	}
	c.write(cacheFile{
		Entries:     entries,
		Headers:     headers,
		FetchedAtMs: c.now().UnixMilli(),
		Enabled:     enabled,
	})
}

// SaveMetadata updates headers and the enablement flag while keeping the
// stored entries. Used when the SDK is disabled: markers advance, the
// snapshot does not.
func (c *Cache) SaveMetadata(headers api.CacheHeaders, enabled bool) {
	if !c.policy.Persist {
		return
	}
	var entries map[string]Entry
	if data, err := os.ReadFile(c.path); err == nil {
		var f cacheFile
		if err := msgpack.Unmarshal(data, &f); err == nil {
			entries = f.Entries
		}
	}
	c.write(cacheFile{
		Entries:     entries,
		Headers:     headers,
		FetchedAtMs: c.now().UnixMilli(),
		Enabled:     enabled,
	})
}

func (c *Cache) write(f cacheFile) {
	data, err := msgpack.Marshal(&f)
	if err != nil {
		c.logger.Printf("config cache: encode failed: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		c.logger.Printf("config cache: mkdir failed: %v", err)
		return
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		c.logger.Printf("config cache: write failed: %v", err)
		return
	}
	if err := os.Rename(tmp, c.path); err != nil {
		c.logger.Printf("config cache: rename failed: %v", err)
	}
}

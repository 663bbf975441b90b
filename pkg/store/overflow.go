// Package store persists undelivered telemetry batches on disk so they
// survive restarts. Every operation is fail-soft: loss of persisted
// telemetry must never crash the host application.
package store

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"flagsync/pkg/telemetry"
)

const formatVersion = 1

type record struct {
	Kind    int                `msgpack:"k"`
	Event   *telemetry.Event   `msgpack:"e,omitempty"`
	Summary *telemetry.Summary `msgpack:"s,omitempty"`
}

type envelope struct {
	Version int      `msgpack:"v"`
	Records []record `msgpack:"r"`
}

// FileStore keeps one msgpack-encoded file of ordered telemetry items,
// truncated oldest-first to MaxItems. Store replaces the file contents;
// the flusher merges when it needs append behaviour.
type FileStore struct {
	mu       sync.Mutex
	path     string
	maxItems int
	logger   *log.Logger
}

// NewFileStore creates a store writing to path, keeping at most maxItems.
func NewFileStore(path string, maxItems int, logger *log.Logger) *FileStore {
	return &FileStore{path: path, maxItems: maxItems, logger: logger}
}

// Store writes items to disk, dropping the oldest entries beyond the cap.
// Returns false on any I/O or encoding failure.
func (s *FileStore) Store(items []telemetry.Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(items) > s.maxItems {
		dropped := len(items) - s.maxItems
		items = items[dropped:]
		s.logger.Printf("overflow store full: dropped %d oldest items", dropped)
	}

	env := envelope{Version: formatVersion, Records: make([]record, 0, len(items))}
	for _, it := range items {
		switch v := it.(type) {
		case telemetry.Event:
			ev := v
			env.Records = append(env.Records, record{Kind: int(telemetry.KindEvent), Event: &ev})
		case telemetry.Summary:
			sm := v
			env.Records = append(env.Records, record{Kind: int(telemetry.KindSummary), Summary: &sm})
		}
	}

	data, err := msgpack.Marshal(&env)
	if err != nil {
		s.logger.Printf("overflow store: encode failed: %v", err)
		return false
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Printf("overflow store: mkdir failed: %v", err)
		return false
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Printf("overflow store: write failed: %v", err)
		return false
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Printf("overflow store: rename failed: %v", err)
		return false
	}
	return true
}

// Load returns the persisted items in their stored order. A missing or
// corrupt file yields an empty slice.
func (s *FileStore) Load() []telemetry.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *FileStore) loadLocked() []telemetry.Item {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Printf("overflow store: read failed: %v", err)
		}
		return nil
	}

	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		s.logger.Printf("overflow store: corrupt file, discarding: %v", err)
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			s.logger.Printf("overflow store: remove failed: %v", err)
		}
		return nil
	}

	items := make([]telemetry.Item, 0, len(env.Records))
	for _, r := range env.Records {
		switch telemetry.ItemKind(r.Kind) {
		case telemetry.KindEvent:
			if r.Event != nil {
				items = append(items, *r.Event)
			}
		case telemetry.KindSummary:
			if r.Summary != nil {
				items = append(items, *r.Summary)
			}
		}
	}
	return items
}

// Clear removes the persisted batch.
func (s *FileStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.logger.Printf("overflow store: clear failed: %v", err)
	}
}

// Count returns the number of persisted items.
func (s *FileStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loadLocked())
}

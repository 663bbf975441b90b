package testutil

import (
	"context"
	"sync"

	"flagsync/pkg/telemetry"
)

// MockSender is a reusable mock that implements telemetry.Sender for
// tests. Errors are returned per call from the configured fields.
type MockSender struct {
	mu sync.Mutex

	EventsError    error
	SummariesError error

	EventCalls   [][]telemetry.Event
	SummaryCalls [][]telemetry.Summary
}

func (m *MockSender) SendEvents(ctx context.Context, events []telemetry.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EventCalls = append(m.EventCalls, events)
	return m.EventsError
}

func (m *MockSender) SendSummaries(ctx context.Context, summaries []telemetry.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummaryCalls = append(m.SummaryCalls, summaries)
	return m.SummariesError
}

// SetEventsError swaps the events-path error under the mock's lock.
func (m *MockSender) SetEventsError(err error) {
	m.mu.Lock()
	m.EventsError = err
	m.mu.Unlock()
}

// SentEvents flattens every delivered event batch.
func (m *MockSender) SentEvents() []telemetry.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []telemetry.Event
	for _, batch := range m.EventCalls {
		out = append(out, batch...)
	}
	return out
}

// SentSummaries flattens every delivered summary batch.
func (m *MockSender) SentSummaries() []telemetry.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []telemetry.Summary
	for _, batch := range m.SummaryCalls {
		out = append(out, batch...)
	}
	return out
}

// MemoryStore implements telemetry.OverflowStore in memory with the
// same replace semantics as the file store.
type MemoryStore struct {
	mu       sync.Mutex
	items    []telemetry.Item
	FailNext bool

	StoreCalls int
	ClearCalls int
}

func (s *MemoryStore) Store(items []telemetry.Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StoreCalls++
	if s.FailNext {
		s.FailNext = false
		return false
	}
	s.items = append([]telemetry.Item(nil), items...)
	return true
}

func (s *MemoryStore) Load() []telemetry.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]telemetry.Item(nil), s.items...)
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClearCalls++
	s.items = nil
}

func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// NopRecorder discards connection outcomes.
type NopRecorder struct{}

func (NopRecorder) RecordSuccess()          {}
func (NopRecorder) RecordFailure(err error) {}

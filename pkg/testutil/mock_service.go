package testutil

import (
	"context"
	"sync"

	"flagsync/pkg/api"
)

// MockService is a reusable mock that implements flags.Service for
// tests. Each endpoint returns its configured result until changed.
type MockService struct {
	mu sync.Mutex

	ProbeResult api.ProbeResult
	ProbeError  error

	Settings        api.Settings
	SettingsHeaders api.CacheHeaders
	SettingsError   error

	ConfigsBody    []byte
	ConfigsHeaders api.CacheHeaders
	ConfigsError   error

	ProbeCalls    int
	SettingsCalls int
	ConfigsCalls  []api.CacheHeaders
}

func (m *MockService) ProbeSettings(ctx context.Context, since api.CacheHeaders) (api.ProbeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProbeCalls++
	return m.ProbeResult, m.ProbeError
}

func (m *MockService) FetchSettings(ctx context.Context, since api.CacheHeaders) (api.Settings, api.CacheHeaders, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SettingsCalls++
	return m.Settings, m.SettingsHeaders, m.SettingsError
}

func (m *MockService) FetchConfigs(ctx context.Context, user map[string]interface{}, since api.CacheHeaders) ([]byte, api.CacheHeaders, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConfigsCalls = append(m.ConfigsCalls, since)
	return m.ConfigsBody, m.ConfigsHeaders, m.ConfigsError
}

// Set applies a mutation under the mock's lock so tests can reconfigure
// results between refresh cycles.
func (m *MockService) Set(fn func(*MockService)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

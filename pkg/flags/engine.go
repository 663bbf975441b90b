package flags

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"flagsync/pkg/api"
	"flagsync/pkg/breaker"
)

// Outcome classifies a refresh cycle.
type Outcome int

const (
	// OutcomeSkipped: offline mode, no network touched.
	OutcomeSkipped Outcome = iota
	// OutcomeUnchanged: the remote confirmed the cached snapshot.
	OutcomeUnchanged
	// OutcomeUpdated: a new snapshot was installed.
	OutcomeUpdated
	// OutcomeDisabled: SDK disabled server-side; metadata advanced, the
	// snapshot did not.
	OutcomeDisabled
	// OutcomeFailed: the cycle errored; state untouched.
	OutcomeFailed
)

// Service is the remote surface the engine consumes.
type Service interface {
	ProbeSettings(ctx context.Context, since api.CacheHeaders) (api.ProbeResult, error)
	FetchSettings(ctx context.Context, since api.CacheHeaders) (api.Settings, api.CacheHeaders, error)
	FetchConfigs(ctx context.Context, user map[string]interface{}, since api.CacheHeaders) ([]byte, api.CacheHeaders, error)
}

// ExposureHook is called after every successful typed lookup so the
// client can enqueue a summary. Best-effort and fire-and-forget.
type ExposureHook func(key string, e Entry)

// Engine runs the conditional fetch cycle and serves lookups from an
// immutable snapshot swapped atomically. Readers never block a refresh.
type Engine struct {
	svc    Service
	br     *breaker.Breaker
	cache  *Cache
	user   func() map[string]interface{}
	logger *log.Logger

	snap     atomic.Value // map[string]Entry, replaced wholesale
	enabled  atomic.Bool
	offline  atomic.Bool
	exposure atomic.Value // ExposureHook

	metaMu  sync.Mutex
	headers api.CacheHeaders

	flightMu sync.Mutex
	inflight *refreshCall
}

type refreshCall struct {
	done    chan struct{}
	outcome Outcome
	err     error
}

// NewEngine wires the fetch engine. br gates every network call.
func NewEngine(svc Service, br *breaker.Breaker, cache *Cache, user func() map[string]interface{}, logger *log.Logger) *Engine {
	e := &Engine{svc: svc, br: br, cache: cache, user: user, logger: logger}
	e.snap.Store(map[string]Entry{})
	return e
}

// Start loads the persisted snapshot so reads are non-empty before the
// first network call.
func (e *Engine) Start() {
	entries, headers, enabled, ok := e.cache.Load()
	e.metaMu.Lock()
	e.headers = headers
	e.metaMu.Unlock()
	if !ok {
		return
	}
	e.snap.Store(entries)
	e.enabled.Store(enabled)
	e.logger.Printf("loaded cached config snapshot: %d keys, enabled=%t", len(entries), enabled)
}

// SetExposureHook installs the summary enqueue callback.
func (e *Engine) SetExposureHook(h ExposureHook) { e.exposure.Store(h) }

// SetOffline toggles offline mode; refresh cycles are skipped entirely
// while set.
func (e *Engine) SetOffline(offline bool) { e.offline.Store(offline) }

// Enabled reports the SDK-enablement gate.
func (e *Engine) Enabled() bool { return e.enabled.Load() }

// Keys returns the number of keys in the live snapshot.
func (e *Engine) Keys() int { return len(e.snapshot()) }

func (e *Engine) snapshot() map[string]Entry {
	return e.snap.Load().(map[string]Entry)
}

func (e *Engine) headersSnapshot() api.CacheHeaders {
	e.metaMu.Lock()
	defer e.metaMu.Unlock()
	return e.headers
}

func (e *Engine) setHeaders(h api.CacheHeaders) {
	e.metaMu.Lock()
	e.headers = h
	e.metaMu.Unlock()
}

// Refresh runs one fetch cycle. Idempotent-safe under concurrent
// invocation: a second caller observes the in-flight cycle's outcome
// instead of issuing duplicate requests.
func (e *Engine) Refresh(ctx context.Context) (Outcome, error) {
	e.flightMu.Lock()
	if c := e.inflight; c != nil {
		e.flightMu.Unlock()
		select {
		case <-c.done:
			return c.outcome, c.err
		case <-ctx.Done():
			return OutcomeFailed, ctx.Err()
		}
	}
	c := &refreshCall{done: make(chan struct{})}
	e.inflight = c
	e.flightMu.Unlock()

	c.outcome, c.err = e.refreshOnce(ctx)

	e.flightMu.Lock()
	e.inflight = nil
	e.flightMu.Unlock()
	close(c.done)
	return c.outcome, c.err
}

func (e *Engine) refreshOnce(ctx context.Context) (Outcome, error) {
	if e.offline.Load() {
		return OutcomeSkipped, nil
	}
	since := e.headersSnapshot()

	var probe api.ProbeResult
	if err := e.br.Execute(func() error {
		var err error
		probe, err = e.svc.ProbeSettings(ctx, since)
		return err
	}); err != nil {
		return OutcomeFailed, err
	}
	if !probe.Modified {
		return OutcomeUnchanged, nil
	}

	var (
		settings        api.Settings
		settingsHeaders api.CacheHeaders
		notModified     bool
	)
	if err := e.br.Execute(func() error {
		var err error
		settings, settingsHeaders, err = e.svc.FetchSettings(ctx, since)
		if err == api.ErrNotModified {
			notModified = true
			return nil
		}
		return err
	}); err != nil {
		return OutcomeFailed, err
	}
	if notModified {
		return OutcomeUnchanged, nil
	}

	if !settings.Enabled() {
		// Value lookups fall back from here on, but the markers still
		// advance so the next cycle stays conditional.
		e.enabled.Store(false)
		e.setHeaders(settingsHeaders)
		e.cache.SaveMetadata(settingsHeaders, false)
		e.logger.Printf("sdk disabled by settings (account_enabled=%t skip=%t)", settings.AccountEnabled, settings.SkipSDK)
		return OutcomeDisabled, nil
	}

	var (
		body        []byte
		bodyHeaders api.CacheHeaders
	)
	notModified = false
	if err := e.br.Execute(func() error {
		var err error
		body, bodyHeaders, err = e.svc.FetchConfigs(ctx, e.user(), since)
		if err == api.ErrNotModified {
			notModified = true
			return nil
		}
		return err
	}); err != nil {
		return OutcomeFailed, err
	}
	if notModified {
		return OutcomeUnchanged, nil
	}

	entries, err := parseConfigs(body)
	if err != nil {
		// Serialization failure: logged and surfaced, snapshot untouched.
		e.logger.Printf("config decode failed: %v", err)
		return OutcomeFailed, &api.Error{Kind: api.KindSerialization, Op: "decode configs", Err: err}
	}

	e.snap.Store(entries)
	e.enabled.Store(true)
	e.setHeaders(bodyHeaders)
	e.cache.Save(entries, bodyHeaders, true)
	e.logger.Printf("config snapshot updated: %d keys", len(entries))
	return OutcomeUpdated, nil
}

// Lookup returns the entry for key from the live snapshot. False when the
// SDK is disabled or the key is absent.
func (e *Engine) Lookup(key string) (Entry, bool) {
	if !e.enabled.Load() {
		return Entry{}, false
	}
	entry, ok := e.snapshot()[key]
	return entry, ok
}

func (e *Engine) fireExposure(key string, entry Entry) {
	if h, ok := e.exposure.Load().(ExposureHook); ok && h != nil {
		h(key, entry)
	}
}

// GetString returns the variation for key, or fallback when disabled,
// absent, or not a string. A successful read records an exposure.
func (e *Engine) GetString(key, fallback string) string {
	entry, ok := e.Lookup(key)
	if !ok {
		return fallback
	}
	v, ok := entry.Variation.AsString()
	if !ok {
		return fallback
	}
	e.fireExposure(key, entry)
	return v
}

// GetNumber is the numeric counterpart of GetString.
func (e *Engine) GetNumber(key string, fallback float64) float64 {
	entry, ok := e.Lookup(key)
	if !ok {
		return fallback
	}
	v, ok := entry.Variation.AsNumber()
	if !ok {
		return fallback
	}
	e.fireExposure(key, entry)
	return v
}

// GetBool is the boolean counterpart of GetString.
func (e *Engine) GetBool(key string, fallback bool) bool {
	entry, ok := e.Lookup(key)
	if !ok {
		return fallback
	}
	v, ok := entry.Variation.AsBool()
	if !ok {
		return fallback
	}
	e.fireExposure(key, entry)
	return v
}

// GetJSON is the raw-JSON counterpart of GetString.
func (e *Engine) GetJSON(key string, fallback json.RawMessage) json.RawMessage {
	entry, ok := e.Lookup(key)
	if !ok {
		return fallback
	}
	v, ok := entry.Variation.AsJSON()
	if !ok {
		return fallback
	}
	e.fireExposure(key, entry)
	return v
}

// Package client is the public handle: it wires the fetch engine, the
// telemetry pipeline, the overflow store and the connection machine
// into one lifecycle.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"flagsync/pkg/api"
	"flagsync/pkg/breaker"
	"flagsync/pkg/config"
	"flagsync/pkg/conn"
	"flagsync/pkg/dedup"
	"flagsync/pkg/flags"
	"flagsync/pkg/store"
	"flagsync/pkg/telemetry"
	"flagsync/pkg/version"
)

// Breaker name for the config-fetch cycle; the telemetry endpoints get
// their own breakers from the same registry.
const endpointConfigs = "configs"

// Status is a point-in-time view of the client internals.
type Status struct {
	Queue      telemetry.Stats
	Connection conn.Snapshot
	SDKEnabled bool
	ConfigKeys int
	SessionID  string
}

// Client is the top-level handle. All methods are safe for concurrent
// use. Background failures are logged and counted, never returned.
type Client struct {
	cfg    *config.Config
	logger *log.Logger

	api      *api.Client
	queue    *telemetry.Queue
	flusher  *telemetry.Flusher
	engine   *flags.Engine
	machine  *conn.Machine
	tracker  *dedup.Tracker
	breakers *breaker.Registry

	sessionMu sync.Mutex
	sessionID string
	user      User

	started  atomic.Bool
	paused   atomic.Bool
	closed   atomic.Bool
	pollStop chan struct{}
	pollWG   sync.WaitGroup
}

// userSource adapts the client's user to the submitter interface.
type userSource struct{ c *Client }

func (s userSource) UserSnapshot() map[string]interface{} { return s.c.userSnapshot() }

// New wires a client from resolved configuration. Nothing touches the
// network until Start.
func New(cfg *config.Config, user User, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	if user.ID == "" {
		user.ID = cfg.UserID
	}
	if user.ID == "" {
		return nil, validationError("user id must not be blank")
	}

	c := &Client{
		cfg:       cfg,
		logger:    logger,
		sessionID: uuid.New().String(),
		user:      user,
		tracker:   dedup.NewTracker(),
	}

	c.api = api.NewClient(api.Config{
		BaseURL:     cfg.BaseURL,
		ClientKey:   cfg.ClientKey,
		DimensionID: cfg.DimensionID,
		SDKVersion:  version.Version,
		Timeouts: api.Timeouts{
			Probe:  time.Duration(cfg.Timeouts.ProbeSeconds) * time.Second,
			Fetch:  time.Duration(cfg.Timeouts.FetchSeconds) * time.Second,
			Submit: time.Duration(cfg.Timeouts.SubmitSeconds) * time.Second,
		},
	}, logger)

	c.queue = telemetry.NewQueue(cfg.Queue.Capacity)
	c.breakers = breaker.NewRegistry(cfg.Network.BreakerThreshold, time.Duration(cfg.Network.BreakerResetSeconds)*time.Second)
	c.machine = conn.NewMachine(conn.Config{
		InitialBackoff: time.Duration(cfg.Network.InitialBackoffSeconds) * time.Second,
		MaxBackoff:     time.Duration(cfg.Network.MaxBackoffSeconds) * time.Second,
	}, logger)

	overflow := store.NewFileStore(cfg.Overflow.Path, cfg.Overflow.MaxItems, logger)
	submitter := &api.Submitter{Client: c.api, User: userSource{c}}
	c.flusher = telemetry.NewFlusher(c.queue, submitter, overflow, c.breakers, c.machine, nil, logger, telemetry.FlusherConfig{
		Interval: time.Duration(cfg.Queue.FlushIntervalSeconds) * time.Second,
		MaxAge:   time.Duration(cfg.Queue.FlushAgeSeconds) * time.Second,
	})

	cache := flags.NewCache(cfg.Cache.Path, flags.CachePolicy{
		TTL:            time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		AllowStale:     cfg.Cache.AllowStale,
		EvictOnRestart: cfg.Cache.EvictOnRestart,
		Persist:        cfg.Cache.Persist,
	}, logger)
	c.engine = flags.NewEngine(c.api, c.breakers.Get(endpointConfigs), cache, c.userSnapshot, logger)
	c.engine.SetExposureHook(c.onExposure)

	if cfg.Offline {
		c.machine.SetOfflineMode(true)
		c.engine.SetOffline(true)
	}
	return c, nil
}

func (c *Client) userSnapshot() map[string]interface{} {
	c.sessionMu.Lock()
	u := c.user
	c.sessionMu.Unlock()
	return u.snapshot()
}

// onExposure turns a successful typed lookup into a summary. The
// tracker admits at most one summary per experience per session.
func (c *Client) onExposure(key string, e flags.Entry) {
	s := telemetry.Summary{
		Name:         key,
		Count:        1,
		ExperienceID: e.ExperienceID,
		ConfigID:     e.ConfigID,
		VariationID:  e.VariationID,
		Version:      e.Version,
		Timestamp:    time.Now().UTC(),
	}
	if !c.tracker.Admit(s) {
		return
	}
	c.flusher.Track(s)
}

// Start loads persisted state, launches the flush scheduler, performs
// an initial refresh, and starts the poll loop and heartbeat. ctx
// bounds the background goroutines.
func (c *Client) Start(ctx context.Context) error {
	if c.closed.Load() {
		return stateError("client is shut down")
	}
	if !c.started.CompareAndSwap(false, true) {
		return stateError("client already started")
	}
	c.engine.Start()
	c.flusher.LoadPersisted()
	c.flusher.Start(ctx)

	if _, err := c.refresh(ctx); err != nil {
		// Startup stays usable on cached state; the poll loop retries.
		c.logger.Printf("initial refresh failed: %v", err)
	}

	c.pollStop = make(chan struct{})
	c.pollWG.Add(1)
	go c.pollLoop(ctx)

	poll := time.Duration(c.cfg.PollIntervalSeconds) * time.Second
	c.machine.StartHeartbeat(ctx, 4*poll, func(ctx context.Context) error {
		_, err := c.api.ProbeSettings(ctx, api.CacheHeaders{})
		return err
	})
	return nil
}

// refresh runs one engine cycle and feeds the outcome into the
// connection machine. A breaker rejection is not a network attempt and
// does not count as a failure.
func (c *Client) refresh(ctx context.Context) (flags.Outcome, error) {
	outcome, err := c.engine.Refresh(ctx)
	switch {
	case err == nil && outcome != flags.OutcomeSkipped:
		c.machine.RecordSuccess()
	case err != nil && !errors.Is(err, breaker.ErrOpen):
		c.machine.RecordFailure(err)
	}
	return outcome, err
}

func (c *Client) pollLoop(ctx context.Context) {
	defer c.pollWG.Done()
	interval := time.Duration(c.cfg.PollIntervalSeconds) * time.Second
	tick := interval / 4
	if tick < time.Second {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.pollStop:
			return
		case <-ticker.C:
			if c.paused.Load() {
				continue
			}
			snap := c.machine.Snapshot()
			due := time.Since(last) >= interval
			retrying := snap.ConsecutiveFailures > 0
			if !due && !retrying {
				continue
			}
			if !c.machine.RetryDue() {
				continue
			}
			last = time.Now()
			if _, err := c.refresh(ctx); err != nil {
				c.logger.Printf("scheduled refresh failed: %v", err)
			}
		}
	}
}

// TrackEvent enqueues a usage event. Blank names are rejected; a full
// queue forces a flush and retries once before reporting failure.
func (c *Client) TrackEvent(name string, props map[string]interface{}) error {
	if c.closed.Load() {
		return stateError("client is shut down")
	}
	if strings.TrimSpace(name) == "" {
		return validationError("event name must not be blank")
	}
	c.sessionMu.Lock()
	sid := c.sessionID
	u := c.user
	c.sessionMu.Unlock()

	ev := telemetry.NewEvent(name, sid, u.ID, u.Device, u.App, props)
	if !c.flusher.Track(ev) {
		return stateError("telemetry queue full, event dropped")
	}
	return nil
}

// GetString returns the variation for key, or fallback when the SDK is
// disabled, the key is absent, or the value is not a string.
func (c *Client) GetString(key, fallback string) string {
	return c.engine.GetString(key, fallback)
}

// GetNumber is the numeric counterpart of GetString.
func (c *Client) GetNumber(key string, fallback float64) float64 {
	return c.engine.GetNumber(key, fallback)
}

// GetBool is the boolean counterpart of GetString.
func (c *Client) GetBool(key string, fallback bool) bool {
	return c.engine.GetBool(key, fallback)
}

// GetJSON is the raw-JSON counterpart of GetString.
func (c *Client) GetJSON(key string, fallback json.RawMessage) json.RawMessage {
	return c.engine.GetJSON(key, fallback)
}

// ForceRefresh runs a fetch cycle immediately, bypassing the poll
// schedule but not the circuit breaker.
func (c *Client) ForceRefresh(ctx context.Context) error {
	if c.closed.Load() {
		return stateError("client is shut down")
	}
	_, err := c.refresh(ctx)
	return err
}

// Flush sends queued telemetry now and reports how many items left the
// queue.
func (c *Client) Flush(ctx context.Context) (int, error) {
	return c.flusher.Flush(ctx)
}

// SetOfflineMode toggles offline operation: no network calls, lookups
// served from the cached snapshot, telemetry accumulating locally.
func (c *Client) SetOfflineMode(offline bool) {
	c.machine.SetOfflineMode(offline)
	c.engine.SetOffline(offline)
}

// Pause suspends scheduled refreshes and flushes. Foreground calls
// still work.
func (c *Client) Pause() {
	c.paused.Store(true)
	c.flusher.Pause()
}

// Resume re-enables the schedulers.
func (c *Client) Resume() {
	c.paused.Store(false)
	c.flusher.Resume()
}

// RotateSession starts a fresh session: new session id, exposure
// deduplication cleared. Returns the new id.
func (c *Client) RotateSession() string {
	sid := uuid.New().String()
	c.sessionMu.Lock()
	c.sessionID = sid
	c.sessionMu.Unlock()
	c.tracker.Reset()
	c.logger.Printf("session rotated")
	return sid
}

// OnConnectionChange registers a listener; it receives the current
// snapshot synchronously and every transition after. The token removes
// it via RemoveListener.
func (c *Client) OnConnectionChange(l conn.Listener) string {
	return c.machine.Subscribe(l)
}

// RemoveListener unregisters the listener behind token.
func (c *Client) RemoveListener(token string) {
	c.machine.Unsubscribe(token)
}

// Status reports queue counters, connection state and snapshot size.
func (c *Client) Status() Status {
	c.sessionMu.Lock()
	sid := c.sessionID
	c.sessionMu.Unlock()
	return Status{
		Queue:      c.queue.Stats(),
		Connection: c.machine.Snapshot(),
		SDKEnabled: c.engine.Enabled(),
		ConfigKeys: c.engine.Keys(),
		SessionID:  sid,
	}
}

// Shutdown stops the background loops, attempts a final flush within
// ctx, and persists whatever telemetry remains. Safe to call once.
func (c *Client) Shutdown(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.machine.StopHeartbeat()
	if c.pollStop != nil {
		close(c.pollStop)
		c.pollWG.Wait()
	}
	return c.flusher.Close(ctx)
}

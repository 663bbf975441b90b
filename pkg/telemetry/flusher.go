package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"flagsync/pkg/breaker"
)

// Clock interface allows for deterministic testing
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Sender submits merged batches to the remote service.
type Sender interface {
	SendEvents(ctx context.Context, events []Event) error
	SendSummaries(ctx context.Context, summaries []Summary) error
}

// OverflowStore persists undelivered items across restarts. Implementations
// are fail-soft: they log and return false/empty instead of propagating.
type OverflowStore interface {
	Store(items []Item) bool
	Load() []Item
	Clear()
	Count() int
}

// Recorder receives the outcome of network attempts so the connection
// state machine can adjust.
type Recorder interface {
	RecordSuccess()
	RecordFailure(err error)
}

// Endpoint names used for per-channel circuit breakers.
const (
	EndpointEvents    = "events"
	EndpointSummaries = "summaries"
)

// Queue occupancy ratio above which the scheduler persists a speculative
// copy of the queue before attempting the send.
const highWaterMark = 0.7

// FlusherConfig carries the scheduler knobs.
type FlusherConfig struct {
	Interval time.Duration // wall-clock flush trigger
	MaxAge   time.Duration // oldest-item age flush trigger
}

// Flusher drains the queue into merged batches and sends them through the
// per-endpoint circuit breakers. Only one flush runs at a time; concurrent
// callers observe the in-flight flush's result.
type Flusher struct {
	queue    *Queue
	sender   Sender
	store    OverflowStore
	breakers *breaker.Registry
	recorder Recorder
	clock    Clock
	logger   *log.Logger
	cfg      FlusherConfig

	mu       sync.Mutex
	inflight *flushCall

	pauseMu sync.Mutex
	paused  bool

	// pending mirrors the failed-send overflow held in the store. Every
	// flush cycle includes it, so the store is only cleared once these
	// items have actually been delivered.
	pendingMu sync.Mutex
	pending   []Item

	lastFlush time.Time
	done      chan struct{}
	wg        sync.WaitGroup
}

type flushCall struct {
	done chan struct{}
	n    int
	err  error
}

// NewFlusher wires a flusher. recorder and store may not be nil; pass a
// no-op implementation instead.
func NewFlusher(q *Queue, sender Sender, store OverflowStore, breakers *breaker.Registry, recorder Recorder, clock Clock, logger *log.Logger, cfg FlusherConfig) *Flusher {
	if clock == nil {
		clock = RealClock{}
	}
	return &Flusher{
		queue:     q,
		sender:    sender,
		store:     store,
		breakers:  breakers,
		recorder:  recorder,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
		lastFlush: clock.Now(),
		done:      make(chan struct{}),
	}
}

// LoadPersisted picks up items persisted by an earlier process. Called once
// before the scheduler starts. The items ride along with the next flush;
// the store keeps its copy until a send is confirmed.
func (f *Flusher) LoadPersisted() int {
	items := f.store.Load()
	f.setPending(items)
	if len(items) > 0 {
		f.logger.Printf("restored %d persisted telemetry items", len(items))
	}
	return len(items)
}

func (f *Flusher) pendingItems() []Item {
	f.pendingMu.Lock()
	defer f.pendingMu.Unlock()
	return append([]Item(nil), f.pending...)
}

func (f *Flusher) setPending(items []Item) {
	f.pendingMu.Lock()
	f.pending = items
	f.pendingMu.Unlock()
}

// Track enqueues an item, forcing a flush and retrying once if the first
// insert fails. Returns false only when the retry also fails.
func (f *Flusher) Track(item Item) bool {
	if f.queue.Enqueue(item) {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := f.Flush(ctx); err != nil {
		f.logger.Printf("forced flush failed: %v", err)
	}
	if f.queue.Enqueue(item) {
		return true
	}
	f.queue.addDropped(1)
	return false
}

// Start launches the scheduler goroutine. It fires on the wall-clock
// interval and independently when the oldest item exceeds MaxAge.
func (f *Flusher) Start(ctx context.Context) {
	tick := f.cfg.Interval / 4
	if tick < time.Second {
		tick = time.Second
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-f.done:
				return
			case <-ticker.C:
				f.tick(ctx)
			}
		}
	}()
}

func (f *Flusher) tick(ctx context.Context) {
	if f.isPaused() {
		return
	}
	now := f.clock.Now()

	if f.queue.Occupancy() >= highWaterMark {
		if items := f.queue.Snapshot(); len(items) > 0 {
			// The overflow shares the file with the speculative copy, so
			// write both or the copy would erase undelivered items.
			if f.store.Store(append(f.pendingItems(), items...)) {
				f.queue.addPersisted(len(items))
			}
		}
	}

	due := now.Sub(f.lastFlushTime()) >= f.cfg.Interval
	aged := f.cfg.MaxAge > 0 && f.queue.OldestAge(now) >= f.cfg.MaxAge
	if !due && !aged {
		return
	}
	if _, err := f.Flush(ctx); err != nil {
		// Background failures never propagate past the task boundary.
		f.logger.Printf("scheduled flush failed: %v", err)
	}
}

// Pause stops the scheduler from starting new flush cycles.
func (f *Flusher) Pause() {
	f.pauseMu.Lock()
	f.paused = true
	f.pauseMu.Unlock()
}

// Resume re-enables scheduled flushes.
func (f *Flusher) Resume() {
	f.pauseMu.Lock()
	f.paused = false
	f.pauseMu.Unlock()
}

func (f *Flusher) isPaused() bool {
	f.pauseMu.Lock()
	defer f.pauseMu.Unlock()
	return f.paused
}

func (f *Flusher) lastFlushTime() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFlush
}

// Flush drains and sends the queue. Safe to call concurrently: a second
// caller waits for the in-flight flush and receives its result.
func (f *Flusher) Flush(ctx context.Context) (int, error) {
	f.mu.Lock()
	if c := f.inflight; c != nil {
		f.mu.Unlock()
		select {
		case <-c.done:
			return c.n, c.err
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	c := &flushCall{done: make(chan struct{})}
	f.inflight = c
	f.lastFlush = f.clock.Now()
	f.mu.Unlock()

	c.n, c.err = f.flushOnce(ctx)

	f.mu.Lock()
	f.inflight = nil
	f.mu.Unlock()
	close(c.done)
	return c.n, c.err
}

func (f *Flusher) flushOnce(ctx context.Context) (int, error) {
	items := append(f.pendingItems(), f.queue.DrainAll()...)
	if len(items) == 0 {
		return 0, nil
	}
	batch := NewBatch(items)

	var eventsFailed, summariesFailed, netFailed bool
	flushed := 0

	if len(batch.Events) > 0 {
		err := f.breakers.Get(EndpointEvents).Execute(func() error {
			return f.sender.SendEvents(ctx, batch.Events)
		})
		if err != nil {
			eventsFailed = true
			netFailed = netFailed || !errors.Is(err, breaker.ErrOpen)
		} else {
			flushed += len(batch.Events)
		}
	}

	if len(batch.Summaries) > 0 {
		err := f.breakers.Get(EndpointSummaries).Execute(func() error {
			return f.sender.SendSummaries(ctx, batch.Summaries)
		})
		if err != nil {
			summariesFailed = true
			netFailed = netFailed || !errors.Is(err, breaker.ErrOpen)
		} else {
			flushed += len(batch.Summaries)
		}
	}

	f.queue.addFlushed(flushed)
	f.queue.recordFlushAttempt(eventsFailed || summariesFailed)

	if !eventsFailed && !summariesFailed {
		f.store.Clear()
		f.setPending(nil)
		f.recorder.RecordSuccess()
		return flushed, nil
	}

	// Rebuild the undelivered set in drain order so Requeue's newest-wins
	// cut is by age, not by endpoint.
	var failed []Item
	for _, it := range items {
		switch it.ItemKind() {
		case KindEvent:
			if eventsFailed {
				failed = append(failed, it)
			}
		case KindSummary:
			if summariesFailed {
				failed = append(failed, it)
			}
		}
	}

	overflow := f.queue.Requeue(failed)
	f.setPending(overflow)
	if len(overflow) > 0 {
		if f.store.Store(overflow) {
			f.queue.addPersisted(len(overflow))
		}
	}
	err := fmt.Errorf("flush: %d of %d items undelivered", len(failed), len(items))
	if netFailed {
		// Open-breaker rejections never reached the network; they say
		// nothing new about connectivity.
		f.recorder.RecordFailure(err)
	}
	return flushed, err
}

// Close stops the scheduler, attempts a final flush within ctx, and
// persists whatever remains so nothing is silently lost.
func (f *Flusher) Close(ctx context.Context) error {
	close(f.done)
	f.wg.Wait()

	_, err := f.Flush(ctx)
	f.queue.Close()

	remaining := f.queue.DrainAll()
	// Store replaces the file, so write the failed-send overflow and the
	// leftovers together.
	if combined := append(f.pendingItems(), remaining...); len(combined) > 0 {
		if f.store.Store(combined) {
			f.queue.addPersisted(len(remaining))
		} else {
			f.queue.addDropped(len(remaining))
		}
	}
	return err
}

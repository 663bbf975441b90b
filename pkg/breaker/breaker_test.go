package breaker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestBreaker(threshold int, reset time.Duration) (*Breaker, *time.Time) {
	b := New(threshold, reset)
	current := time.Unix(1700000000, 0)
	b.now = func() time.Time { return current }
	return b, &current
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		if b.State() != Closed {
			t.Fatalf("breaker opened after %d failures, threshold is 3", i+1)
		}
	}
	b.RecordFailure()
	if b.State() != Open {
		t.Errorf("expected open state at threshold, got %s", b.State())
	}
	if b.Allow() {
		t.Error("open breaker must reject immediately")
	}
}

func TestBreaker_SuccessResetsFailureRun(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != Closed {
		t.Errorf("interleaved success should reset the run, got %s", b.State())
	}
	if b.ConsecutiveFailures() != 2 {
		t.Errorf("expected failure run of 2, got %d", b.ConsecutiveFailures())
	}
}

func TestBreaker_HalfOpenSingleTrial(t *testing.T) {
	b, current := newTestBreaker(1, time.Minute)

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("open breaker allowed a call before the reset timeout")
	}

	*current = current.Add(61 * time.Second)
	if !b.Allow() {
		t.Fatal("expected a half-open trial after the reset timeout")
	}
	if b.State() != HalfOpen {
		t.Fatalf("expected half-open state, got %s", b.State())
	}
	if b.Allow() {
		t.Error("half-open breaker admitted a second concurrent trial")
	}
}

func TestBreaker_HalfOpenOutcomes(t *testing.T) {
	b, current := newTestBreaker(1, time.Minute)

	// Failed trial reopens.
	b.RecordFailure()
	*current = current.Add(61 * time.Second)
	if !b.Allow() {
		t.Fatal("expected trial slot")
	}
	b.RecordFailure()
	if b.State() != Open {
		t.Errorf("failed trial should reopen, got %s", b.State())
	}

	// Successful trial closes.
	*current = current.Add(61 * time.Second)
	if !b.Allow() {
		t.Fatal("expected trial slot after second timeout")
	}
	b.RecordSuccess()
	if b.State() != Closed {
		t.Errorf("successful trial should close, got %s", b.State())
	}
	if !b.Allow() {
		t.Error("closed breaker should allow calls")
	}
}

func TestBreaker_ExecuteRejectsWithoutInvoking(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	b.RecordFailure()

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Error("rejected call must not invoke the operation")
	}
}

func TestBreaker_ExecuteRecordsOutcome(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	boom := errors.New("boom")

	if err := b.Execute(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected operation error passed through, got %v", err)
	}
	if err := b.Execute(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected operation error passed through, got %v", err)
	}
	if b.State() != Open {
		t.Errorf("expected two failed executes to open the breaker, got %s", b.State())
	}
}

func TestBreaker_ConcurrentHalfOpenSingleWinner(t *testing.T) {
	b, current := newTestBreaker(1, time.Minute)
	b.RecordFailure()
	*current = current.Add(61 * time.Second)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 1 {
		t.Errorf("expected exactly one half-open trial winner, got %d", allowed)
	}
}

func TestRegistry_IsolatesEndpoints(t *testing.T) {
	r := NewRegistry(1, time.Minute)

	r.Get("events").RecordFailure()

	if r.Get("events").State() != Open {
		t.Error("expected events breaker open")
	}
	if r.Get("summaries").State() != Closed {
		t.Error("failure on one endpoint must not affect another")
	}
	if r.Get("events") != r.Get("events") {
		t.Error("registry should return the same breaker per name")
	}
}

package warden

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"blackship/sickbay"
)

func TestRestartStateShouldRetryInitially(t *testing.T) {
	st := newRestartState("test_jail")
	if !st.shouldRetry() {
		t.Error("fresh restart state should allow retry")
	}
	if _, ok := st.nextDelay(); !ok {
		t.Error("expected a delay from a fresh backoff")
	}
}

func TestRestartStateResetClearsAttempts(t *testing.T) {
	st := newRestartState("test_jail")
	st.attempts = 5
	st.reset()
	if st.attempts != 0 {
		t.Errorf("attempts = %d, want 0", st.attempts)
	}
}

func TestRestartStateStopsAfterMaxAttempts(t *testing.T) {
	st := newRestartState("test_jail")
	st.attempts = maxRestartAttempts
	if st.shouldRetry() {
		t.Error("should not retry after max attempts")
	}
}

func TestWardenRestartsOnFailure(t *testing.T) {
	var calls int32
	w := New(func(name string) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	// Speed up the test by shrinking the initial backoff.
	st := newRestartState("web")
	st.backoff.InitialInterval = time.Millisecond
	w.mu.Lock()
	w.states["web"] = st
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Notify(EventJailFailed, "web")

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&calls) == 0 {
		select {
		case <-deadline:
			t.Fatal("restart was never called")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWardenRecoverRoutesRestartAction(t *testing.T) {
	w := New(func(name string) error { return nil })
	if err := w.Recover("web", 5, sickbay.Action{Kind: sickbay.ActionRestart}); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-w.events:
		if ev.Kind != EventJailHealthFailed || ev.Name != "web" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an event to be queued")
	}
}

// Package warden supervises running jails with a one-for-one restart
// strategy: a jail that fails or fails its health checks is restarted
// with exponential backoff, gated by a per-jail circuit breaker so a
// jail that cannot stay up stops consuming restart attempts forever.
package warden

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"blackship/jail"
	"blackship/logging"
	"blackship/sickbay"
)

const (
	maxRestartAttempts      = 10
	circuitFailureThreshold = 5
	circuitSuccessThreshold = 2
	circuitHalfOpenTimeout  = 300 * time.Second
	eventQueueDepth         = 100
)

// EventKind classifies a Warden event.
type EventKind int

const (
	EventJailFailed EventKind = iota
	EventJailHealthFailed
	EventJailStarted
	EventJailStopped
	EventShutdown
)

// Event is a notification delivered to the Warden's run loop.
type Event struct {
	Kind EventKind
	Name string
}

// RestartFunc performs the actual jail restart. The orchestrator
// supplies this at construction time so warden never has to import the
// orchestrator package (which in turn depends on warden for Recovery).
type RestartFunc func(name string) error

// restartState tracks one jail's restart backoff and circuit breaker.
type restartState struct {
	attempts int
	backoff  *backoff.ExponentialBackOff
	breaker  *gobreaker.CircuitBreaker
}

func newRestartState(name string) *restartState {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 60 * time.Second
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0

	settings := gobreaker.Settings{
		Name:        "warden_" + name,
		MaxRequests: circuitSuccessThreshold,
		Timeout:     circuitHalfOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= circuitFailureThreshold
		},
	}

	return &restartState{backoff: b, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (s *restartState) reset() {
	s.attempts = 0
	s.backoff.Reset()
}

func (s *restartState) shouldRetry() bool {
	return s.breaker.State() != gobreaker.StateOpen && s.attempts < maxRestartAttempts
}

func (s *restartState) nextDelay() (time.Duration, bool) {
	if s.attempts >= maxRestartAttempts {
		return 0, false
	}
	d := s.backoff.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	return d, true
}

// Warden supervises all jails registered with it via Notify/Recover.
type Warden struct {
	events  chan Event
	restart RestartFunc

	mu     sync.Mutex
	states map[string]*restartState
}

// New creates a Warden that calls restart to bring a failed jail back up.
func New(restart RestartFunc) *Warden {
	return &Warden{
		events:  make(chan Event, eventQueueDepth),
		restart: restart,
		states:  make(map[string]*restartState),
	}
}

// Notify enqueues an event for the Warden's run loop. It never blocks
// the caller beyond the channel's buffer: a full queue means the
// Warden is badly behind and the event is dropped rather than stalling
// the caller.
func (w *Warden) Notify(kind EventKind, name string) {
	select {
	case w.events <- Event{Kind: kind, Name: name}:
	default:
		logging.Default().Warn("warden event queue full, dropping event", "kind", kind, "jail", name)
	}
}

// Recover implements sickbay.Recovery: a health check failure routes
// through the same restart pipeline as a jail process crash.
func (w *Warden) Recover(jailName string, jid int, action sickbay.Action) error {
	logger := logging.WithJail(logging.Default(), jailName)

	switch action.Kind {
	case sickbay.ActionRestart:
		w.Notify(EventJailHealthFailed, jailName)
	case sickbay.ActionStop:
		if err := jail.Remove(jid); err != nil {
			logger.Error("warden: recovery stop failed to remove jail", "error", err)
			return err
		}
		logger.Info("warden: jail stopped by recovery action")
		w.Notify(EventJailStopped, jailName)
	case sickbay.ActionCommand:
		out, err := exec.Command("/bin/sh", "-c", action.Command).CombinedOutput()
		if err != nil {
			logger.Error("warden: recovery command failed", "error", err, "output", string(out))
			return err
		}
		logger.Info("warden: recovery command completed", "output", string(out))
	case sickbay.ActionNone:
	}
	return nil
}

// Run drains events until ctx is cancelled or an EventShutdown arrives.
func (w *Warden) Run(ctx context.Context) {
	logger := logging.Default()
	logger.Info("warden: starting jail supervisor")

	for {
		select {
		case <-ctx.Done():
			logger.Info("warden: supervisor stopped")
			return
		case ev := <-w.events:
			switch ev.Kind {
			case EventJailFailed, EventJailHealthFailed:
				logger.Info("warden: jail failed, initiating restart", "jail", ev.Name)
				w.handleFailure(ctx, ev.Name)
			case EventJailStarted:
				logger.Info("warden: jail started successfully", "jail", ev.Name)
				w.mu.Lock()
				if st, ok := w.states[ev.Name]; ok {
					st.reset()
				}
				w.mu.Unlock()
			case EventJailStopped:
				logger.Info("warden: jail stopped intentionally", "jail", ev.Name)
				w.mu.Lock()
				delete(w.states, ev.Name)
				w.mu.Unlock()
			case EventShutdown:
				logger.Info("warden: shutting down")
				return
			}
		}
	}
}

func (w *Warden) handleFailure(ctx context.Context, name string) {
	w.mu.Lock()
	st, ok := w.states[name]
	if !ok {
		st = newRestartState(name)
		w.states[name] = st
	}
	w.mu.Unlock()

	logger := logging.WithJail(logging.Default(), name)

	if !st.shouldRetry() {
		logger.Warn("warden: not restarting jail, circuit breaker open or max attempts reached")
		return
	}

	delay, ok := st.nextDelay()
	if !ok {
		logger.Warn("warden: max retries reached for jail")
		return
	}
	st.attempts++

	logger.Info("warden: restarting jail after backoff", "delay", delay, "attempt", st.attempts)

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return
	}

	_, err := st.breaker.Execute(func() (interface{}, error) {
		return nil, w.restart(name)
	})
	if err != nil {
		logger.Error("warden: failed to restart jail", "error", err)
		return
	}
	logger.Info("warden: jail restarted successfully")
	st.reset()
}

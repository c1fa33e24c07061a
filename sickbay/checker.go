package sickbay

import (
	"bytes"
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	blackerr "blackship/errors"
	"blackship/jail"
)

// Status is the health status of a jail as tracked by a Checker.
type Status string

const (
	StatusStarting  Status = "starting"
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusFailing   Status = "failing"
	StatusSuspended Status = "suspended"
	StatusUnknown   Status = "unknown"
)

// Target selects where a health check command runs.
type Target string

const (
	TargetHost Target = "host"
	TargetJail Target = "jail"
)

// Check is a single health check definition, as parsed from a jail's
// `healthcheck.checks` manifest table.
type Check struct {
	Name        string          `toml:"name"`
	Command     string          `toml:"command"`
	Target      Target          `toml:"target"`
	IntervalSec uint64          `toml:"interval"`
	TimeoutSec  uint64          `toml:"timeout"`
	StartPeriod uint64          `toml:"start_period"`
	Retries     uint32          `toml:"retries"`
	Recovery    *RecoveryConfig `toml:"recovery"`
}

const (
	defaultCheckIntervalSec = 30
	defaultCheckTimeoutSec  = 10
	defaultCheckStartPeriod = 60
	defaultCheckRetries     = 3
)

func (c Check) interval() time.Duration { return durationOrDefault(c.IntervalSec, defaultCheckIntervalSec) }
func (c Check) timeout() time.Duration  { return durationOrDefault(c.TimeoutSec, defaultCheckTimeoutSec) }
func (c Check) startPeriod() time.Duration {
	return durationOrDefault(c.StartPeriod, defaultCheckStartPeriod)
}
func (c Check) retries() uint32 {
	if c.Retries == 0 {
		return defaultCheckRetries
	}
	return c.Retries
}

func durationOrDefault(secs, fallback uint64) time.Duration {
	if secs == 0 {
		return time.Duration(fallback) * time.Second
	}
	return time.Duration(secs) * time.Second
}

// Config is the `healthcheck` manifest block for a single jail.
type Config struct {
	Enabled bool    `toml:"enabled"`
	Checks  []Check `toml:"checks"`
}

// Result is the outcome of running one Check once.
type Result struct {
	Name      string
	Passed    bool
	Duration  time.Duration
	Output    string
	Timestamp time.Time
}

// checkState is the mutable, per-check bookkeeping a Checker keeps.
type checkState struct {
	mu          sync.Mutex
	failures    uint32
	lastResult  *Result
	recoveries  uint32
	lastRecover time.Time
	breaker     *gobreaker.CircuitBreaker
	limiter     *rate.Limiter
}

func newCheckState(name string, rateCapacity float64, rateRefillPerSec float64) *checkState {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    0,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &checkState{
		breaker: gobreaker.NewCircuitBreaker(st),
		limiter: rate.NewLimiter(rate.Limit(rateRefillPerSec), int(rateCapacity)),
	}
}

// Recovery is the callback a Checker invokes when a check's failure
// count reaches its retry threshold and a recovery action is
// configured. The warden's implementation removes the jail for
// ActionStop and, for ActionRestart, queues a restart under its own
// backoff policy; sickbay never calls jail.Remove or jail.Create itself. Accepting this as an interface rather than
// importing the warden package directly avoids a checker<->warden
// import cycle.
type Recovery interface {
	Recover(jailName string, jid int, action Action) error
}

// Checker runs every configured Check for one jail, one pass per Run
// call (the caller supplies the ticker), and tracks consecutive
// failures, recovery attempts, and health status.
type Checker struct {
	jailName string
	config   Config
	recovery Recovery
	started  time.Time

	mu     sync.Mutex
	states map[string]*checkState
	status Status
}

// NewChecker creates a Checker for jailName using config, ready for
// Run once the jail is running. Every check gets a rate limiter with a
// fixed capacity of 5 tokens refilled at 5 per minute.
func NewChecker(jailName string, config Config, recovery Recovery) *Checker {
	states := make(map[string]*checkState, len(config.Checks))
	for _, c := range config.Checks {
		states[c.Name] = newCheckState(c.Name, 5, 5.0/60)
	}
	return &Checker{
		jailName: jailName,
		config:   config,
		recovery: recovery,
		states:   states,
		status:   StatusUnknown,
	}
}

// Status returns the checker's current aggregate health status.
func (c *Checker) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Run executes every configured check once against jid, updating
// failure counters, circuit breakers, and aggregate status, and
// triggering recovery once a check's failure count reaches its retry
// threshold. A check whose interval has not elapsed since its last
// result is skipped. It returns the per-check results from this pass.
func (c *Checker) Run(ctx context.Context, jid int) []Result {
	if c.started.IsZero() {
		c.started = timeNow()
	}

	results := make([]Result, 0, len(c.config.Checks))
	for _, check := range c.config.Checks {
		if timeNow().Sub(c.started) < check.startPeriod() {
			c.setStatus(StatusStarting)
			continue
		}

		st := c.states[check.Name]
		if st.breaker.State() == gobreaker.StateOpen {
			c.setStatus(StatusSuspended)
			results = append(results, Result{
				Name:      check.Name,
				Passed:    false,
				Output:    "circuit breaker open - check suspended",
				Timestamp: timeNow(),
			})
			continue
		}

		st.mu.Lock()
		last := st.lastResult
		st.mu.Unlock()
		if last != nil && timeNow().Sub(last.Timestamp) < check.interval() {
			continue
		}

		if !st.limiter.Allow() {
			continue
		}

		result := c.runOne(ctx, check, jid)
		results = append(results, result)
		c.record(check, st, result, jid)
	}
	return results
}

func (c *Checker) runOne(ctx context.Context, check Check, jid int) Result {
	start := timeNow()
	_, breakerErr := c.states[check.Name].breaker.Execute(func() (any, error) {
		passed, output := c.execute(ctx, check, jid)
		if !passed {
			return output, blackerr.New(blackerr.ErrHealthCheckFailed, check.Name, output)
		}
		return output, nil
	})

	passed := breakerErr == nil
	output := ""
	if be, ok := breakerErr.(*blackerr.JailError); ok {
		output = be.Detail
	}
	return Result{Name: check.Name, Passed: passed, Duration: timeNow().Sub(start), Output: output, Timestamp: timeNow()}
}

func (c *Checker) execute(ctx context.Context, check Check, jid int) (bool, string) {
	runCtx, cancel := context.WithTimeout(ctx, check.timeout())
	defer cancel()

	if check.Target == TargetJail {
		exitCode, stdout, stderr, err := jail.Exec(jid, []string{"/bin/sh", "-c", check.Command}, check.timeout())
		if err != nil {
			return false, err.Error()
		}
		return exitCode == 0, string(stdout) + string(stderr)
	}

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", check.Command)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return err == nil, out.String()
}

func (c *Checker) record(check Check, st *checkState, result Result, jid int) {
	st.mu.Lock()
	st.lastResult = &result
	if result.Passed {
		st.failures = 0
	} else {
		st.failures++
	}
	failures := st.failures
	st.mu.Unlock()

	if result.Passed {
		c.setStatus(StatusHealthy)
		return
	}

	if failures < check.retries() {
		c.setStatus(StatusUnhealthy)
		return
	}

	c.setStatus(StatusFailing)
	if check.Recovery == nil || check.Recovery.Action == ActionNone || c.recovery == nil {
		return
	}
	if !check.Recovery.ShouldAttempt(st.lastRecover) {
		return
	}

	st.mu.Lock()
	st.lastRecover = timeNow()
	st.recoveries++
	attempted := st.recoveries
	st.mu.Unlock()

	if attempted > check.Recovery.MaxAttempts {
		c.setStatus(StatusSuspended)
		return
	}
	_ = c.recovery.Recover(c.jailName, jid, check.Recovery.ToAction())
}

func (c *Checker) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// timeNow is split out so tests could substitute it if ever needed;
// today it is always wall-clock time.
func timeNow() time.Time { return time.Now() }

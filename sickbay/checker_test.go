package sickbay

import (
	"context"
	"testing"
	"time"
)

type fakeRecovery struct {
	calls []Action
}

func (f *fakeRecovery) Recover(jailName string, jid int, action Action) error {
	f.calls = append(f.calls, action)
	return nil
}

func TestCheckerHealthyOnPassingCommand(t *testing.T) {
	cfg := Config{
		Enabled: true,
		Checks: []Check{
			{Name: "ok", Command: "true", Target: TargetHost, Retries: 1},
		},
	}
	c := NewChecker("proj-web", cfg, nil)
	c.started = timeNow().Add(-time.Hour)
	results := c.Run(context.Background(), 0)
	if len(results) != 1 || !results[0].Passed {
		t.Fatalf("Run() = %+v, want one passing result", results)
	}
	if c.Status() != StatusHealthy {
		t.Errorf("Status() = %v, want StatusHealthy", c.Status())
	}
}

func TestCheckerTriggersRecoveryAfterRetries(t *testing.T) {
	rec := &fakeRecovery{}
	cfg := Config{
		Enabled: true,
		Checks: []Check{
			{
				Name: "bad", Command: "false", Target: TargetHost, Retries: 1,
				Recovery: &RecoveryConfig{Action: ActionRestart, MaxAttempts: 3, CooldownSec: 0},
			},
		},
	}
	c := NewChecker("proj-web", cfg, rec)
	c.started = timeNow().Add(-time.Hour)

	c.Run(context.Background(), 1)
	c.Run(context.Background(), 1)

	if len(rec.calls) == 0 {
		t.Fatal("expected recovery to be invoked after exceeding retries")
	}
	if rec.calls[0].Kind != ActionRestart {
		t.Errorf("recovery action = %v, want ActionRestart", rec.calls[0].Kind)
	}
}

func TestCheckerRespectsStartPeriod(t *testing.T) {
	cfg := Config{
		Enabled: true,
		Checks:  []Check{{Name: "late", Command: "true", Target: TargetHost, StartPeriod: 3600}},
	}
	c := NewChecker("proj-web", cfg, nil)
	results := c.Run(context.Background(), 0)
	if len(results) != 0 {
		t.Errorf("Run() during start period = %+v, want no results", results)
	}
	if c.Status() != StatusStarting {
		t.Errorf("Status() = %v, want StatusStarting", c.Status())
	}
}

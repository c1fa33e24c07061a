package sickbay

import (
	"testing"
	"time"
)

func TestDefaultRecoveryConfig(t *testing.T) {
	c := DefaultRecoveryConfig()
	if c.Action != ActionNone {
		t.Errorf("default action = %v, want ActionNone", c.Action)
	}
	if c.MaxAttempts != defaultRecoveryMaxAttempts {
		t.Errorf("default max attempts = %d", c.MaxAttempts)
	}
}

func TestShouldAttemptRespectsCooldown(t *testing.T) {
	c := RecoveryConfig{CooldownSec: 60}
	if !c.ShouldAttempt(time.Time{}) {
		t.Error("zero-value last attempt should always allow recovery")
	}
	if c.ShouldAttempt(time.Now()) {
		t.Error("recovery attempted within cooldown should be rejected")
	}
	if !c.ShouldAttempt(time.Now().Add(-2 * time.Minute)) {
		t.Error("recovery attempted after cooldown should be allowed")
	}
}

func TestToAction(t *testing.T) {
	c := RecoveryConfig{Action: ActionCommand, Command: "echo hi"}
	a := c.ToAction()
	if a.Kind != ActionCommand || a.Command != "echo hi" {
		t.Errorf("ToAction() = %+v", a)
	}
}

// Package sickbay implements jail health checking and recovery-action
// selection. It decides WHAT should happen when a check keeps failing;
// actually restarting a jail is the warden's job (see blackship/warden).
package sickbay

import "time"

// Action is what to do when a health check has failed past its retry
// threshold.
type Action struct {
	// Kind selects the action; Command is only meaningful when Kind is ActionCommand.
	Kind    ActionKind
	Command string
}

// ActionKind enumerates the recovery actions a check can request.
type ActionKind string

const (
	// ActionNone takes no recovery action; the jail is just marked unhealthy.
	ActionNone ActionKind = "none"
	// ActionRestart requests that the jail be torn down and restarted.
	// Sickbay does not remove or restart jails itself: it hands the
	// action to its Recovery, and the warden's implementation queues a
	// health-failure event whose restart stops the jail and starts it
	// again under the warden's own backoff policy.
	ActionRestart ActionKind = "restart"
	// ActionStop requests that the jail be torn down and left stopped.
	ActionStop ActionKind = "stop"
	// ActionCommand runs an arbitrary host command as the recovery step.
	ActionCommand ActionKind = "command"
)

// RecoveryConfig configures how a failing health check is recovered.
type RecoveryConfig struct {
	Action      ActionKind    `toml:"action"`
	Command     string        `toml:"command"`
	MaxAttempts uint32        `toml:"max_attempts"`
	CooldownSec uint64        `toml:"cooldown"`
}

const (
	defaultRecoveryMaxAttempts = 3
	defaultRecoveryCooldownSec = 60
)

// DefaultRecoveryConfig returns the manifest defaults for an unset
// recovery block.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Action:      ActionNone,
		MaxAttempts: defaultRecoveryMaxAttempts,
		CooldownSec: defaultRecoveryCooldownSec,
	}
}

// Cooldown returns the configured cooldown as a Duration.
func (c RecoveryConfig) Cooldown() time.Duration {
	if c.CooldownSec == 0 {
		return defaultRecoveryCooldownSec * time.Second
	}
	return time.Duration(c.CooldownSec) * time.Second
}

// ShouldAttempt reports whether enough time has passed since lastAttempt
// (zero value meaning "never attempted") to try recovery again.
func (c RecoveryConfig) ShouldAttempt(lastAttempt time.Time) bool {
	if lastAttempt.IsZero() {
		return true
	}
	return time.Since(lastAttempt) >= c.Cooldown()
}

// ToAction converts the configured Action/Command pair into an Action value.
func (c RecoveryConfig) ToAction() Action {
	return Action{Kind: c.Action, Command: c.Command}
}

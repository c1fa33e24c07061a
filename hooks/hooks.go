// Package hooks implements declarative jail lifecycle hooks: commands
// run on the host or inside a jail at fixed points around create,
// start, and stop.
package hooks

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	blackerr "blackship/errors"
	"blackship/jail"
)

// Phase identifies a point in a jail's lifecycle where hooks may run.
type Phase string

const (
	PreCreate Phase = "pre_create"
	PostCreate Phase = "post_create"
	PreStart  Phase = "pre_start"
	PostStart Phase = "post_start"
	PreStop   Phase = "pre_stop"
	PostStop  Phase = "post_stop"
)

// Target selects where a hook's command runs.
type Target string

const (
	// TargetHost runs the hook command on the host.
	TargetHost Target = "host"
	// TargetJail runs the hook command inside the jail (requires a running jid).
	TargetJail Target = "jail"
)

// OnFailure selects what happens when a hook exits non-zero.
type OnFailure string

const (
	// Abort stops the surrounding operation immediately.
	Abort OnFailure = "abort"
	// Continue logs a warning and proceeds with the remaining hooks.
	Continue OnFailure = "continue"
)

// Hook is a single declarative hook entry, as parsed from a jail's
// `hooks` manifest table.
type Hook struct {
	Phase       Phase     `toml:"phase"`
	Target      Target    `toml:"target"`
	Command     string    `toml:"command"`
	Args        []string  `toml:"args"`
	TimeoutSecs uint64    `toml:"timeout"`
	OnFailure   OnFailure `toml:"on_failure"`
	Description string    `toml:"description"`
}

const defaultTimeoutSecs = 30

// Timeout returns the hook's configured timeout, defaulting to 30s.
func (h Hook) Timeout() time.Duration {
	if h.TimeoutSecs == 0 {
		return defaultTimeoutSecs * time.Second
	}
	return time.Duration(h.TimeoutSecs) * time.Second
}

// Context carries the variables available for substitution in a hook's
// command and arguments.
type Context struct {
	JailName string
	JailPath string
	JailIP   string
	Jid      int
	HasJid   bool
	Extra    map[string]string
}

// NewContext builds a hook Context for a jail at the given name/path.
func NewContext(jailName, jailPath string) Context {
	return Context{JailName: jailName, JailPath: jailPath, Extra: map[string]string{}}
}

// WithIP attaches the jail's assigned IP to the context.
func (c Context) WithIP(ip string) Context { c.JailIP = ip; return c }

// WithJid attaches the jail's kernel id to the context.
func (c Context) WithJid(jid int) Context { c.Jid = jid; c.HasJid = true; return c }

// Substitute replaces ${jail_name}, ${jail_path}, ${jail_ip}, ${jid},
// and any custom ${name} entry from Extra within input.
func (c Context) Substitute(input string) string {
	result := strings.ReplaceAll(input, "${jail_name}", c.JailName)
	result = strings.ReplaceAll(result, "${jail_path}", c.JailPath)
	result = strings.ReplaceAll(result, "${jail_ip}", c.JailIP)

	jidStr := ""
	if c.HasJid {
		jidStr = strconv.Itoa(c.Jid)
	}
	result = strings.ReplaceAll(result, "${jid}", jidStr)

	for name, value := range c.Extra {
		result = strings.ReplaceAll(result, "${"+name+"}", value)
	}
	return result
}

// Result is the outcome of running a single hook.
type Result struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns stdout and stderr joined, preferring whichever is non-empty.
func (r Result) Output() string {
	switch {
	case r.Stdout == "":
		return r.Stderr
	case r.Stderr == "":
		return r.Stdout
	default:
		return r.Stdout + "\n" + r.Stderr
	}
}

// Runner executes a set of hooks against lifecycle phases.
type Runner struct {
	hooks   []Hook
	Verbose bool
}

// NewRunner builds a Runner over the given hook set (typically a jail
// definition's entire `hooks` list; ExecutePhase filters by phase).
func NewRunner(hooks []Hook) *Runner { return &Runner{hooks: hooks} }

// ExecutePhase runs every hook declared for phase, in declaration order.
// A failing hook with OnFailure == Abort stops immediately and returns
// an error; OnFailure == Continue logs and moves to the next hook.
func (r *Runner) ExecutePhase(ctx context.Context, phase Phase, hc Context, log func(string, ...any)) error {
	for _, h := range r.hooks {
		if h.Phase != phase {
			continue
		}

		result, err := r.executeHook(ctx, h, hc)
		if err != nil {
			if h.OnFailure == Continue {
				if log != nil {
					log("hook failed, continuing", "phase", phase, "hook", h.Command, "error", err)
				}
				continue
			}
			return err
		}
		if result.Success {
			continue
		}

		desc := h.Description
		if desc == "" {
			desc = h.Command
		}

		if h.OnFailure == Continue {
			if log != nil {
				log("hook failed, continuing", "phase", phase, "hook", desc, "stderr", result.Stderr)
			}
			continue
		}
		return blackerr.New(blackerr.ErrHookFailed, "hook "+desc,
			"phase "+string(phase)+": "+result.Stderr)
	}
	return nil
}

func (r *Runner) executeHook(ctx context.Context, h Hook, hc Context) (Result, error) {
	command := hc.Substitute(h.Command)
	args := make([]string, len(h.Args))
	for i, a := range h.Args {
		args[i] = hc.Substitute(a)
	}

	switch h.Target {
	case TargetJail:
		if !hc.HasJid {
			return Result{}, blackerr.New(blackerr.ErrHookFailed, command,
				"cannot run jail-target hook: jail is not running")
		}
		return r.executeInJail(hc.Jid, command, args, h.Timeout())
	default:
		return r.executeOnHost(ctx, command, args, h.Timeout())
	}
}

func (r *Runner) executeOnHost(parent context.Context, command string, args []string, timeout time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return Result{}, blackerr.New(blackerr.ErrHookTimeout, command, "hook exceeded "+timeout.String())
	}
	if err == nil {
		return Result{Success: true, Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return Result{Success: false, ExitCode: exitErr.ExitCode(), Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}
	return Result{}, blackerr.Wrap(err, blackerr.ErrHookFailed, "run hook "+command)
}

func (r *Runner) executeInJail(jid int, command string, args []string, timeout time.Duration) (Result, error) {
	argv := append([]string{command}, args...)
	exitCode, stdout, stderr, err := jail.Exec(jid, argv, timeout)
	if err != nil {
		if blackerr.IsKind(err, blackerr.ErrJailTimeout) {
			return Result{}, blackerr.New(blackerr.ErrHookTimeout, command, "hook exceeded "+timeout.String())
		}
		return Result{}, err
	}
	return Result{Success: exitCode == 0, ExitCode: exitCode, Stdout: string(stdout), Stderr: string(stderr)}, nil
}

package hooks

import (
	"context"
	"testing"
)

func TestSubstitute(t *testing.T) {
	ctx := NewContext("proj-web", "/jails/proj-web").WithIP("10.0.1.5").WithJid(7)
	ctx.Extra["tag"] = "v2"

	got := ctx.Substitute("name=${jail_name} path=${jail_path} ip=${jail_ip} jid=${jid} tag=${tag}")
	want := "name=proj-web path=/jails/proj-web ip=10.0.1.5 jid=7 tag=v2"
	if got != want {
		t.Errorf("Substitute() = %q, want %q", got, want)
	}
}

func TestSubstituteMissingValues(t *testing.T) {
	ctx := NewContext("proj-web", "/jails/proj-web")
	got := ctx.Substitute("ip=${jail_ip} jid=${jid}")
	if got != "ip= jid=" {
		t.Errorf("Substitute() = %q, want empty substitutions", got)
	}
}

func TestExecutePhaseRunsMatchingHooksOnly(t *testing.T) {
	r := NewRunner([]Hook{
		{Phase: PreStart, Target: TargetHost, Command: "true", OnFailure: Abort},
		{Phase: PostStart, Target: TargetHost, Command: "false", OnFailure: Abort},
	})

	ctx := NewContext("proj-web", "/jails/proj-web")
	if err := r.ExecutePhase(context.Background(), PreStart, ctx, nil); err != nil {
		t.Fatalf("PreStart hook should succeed: %v", err)
	}
}

func TestExecutePhaseAbortsOnFailure(t *testing.T) {
	r := NewRunner([]Hook{
		{Phase: PreStart, Target: TargetHost, Command: "false", OnFailure: Abort},
	})

	ctx := NewContext("proj-web", "/jails/proj-web")
	if err := r.ExecutePhase(context.Background(), PreStart, ctx, nil); err == nil {
		t.Error("expected error from failing abort hook")
	}
}

func TestExecutePhaseContinuesOnFailure(t *testing.T) {
	ran := false
	r := NewRunner([]Hook{
		{Phase: PreStart, Target: TargetHost, Command: "false", OnFailure: Continue},
		{Phase: PreStart, Target: TargetHost, Command: "true", OnFailure: Abort},
	})

	ctx := NewContext("proj-web", "/jails/proj-web")
	logged := func(msg string, args ...any) { ran = true }
	if err := r.ExecutePhase(context.Background(), PreStart, ctx, logged); err != nil {
		t.Fatalf("continue-on-failure should not abort: %v", err)
	}
	if !ran {
		t.Error("expected failure to be logged")
	}
}

func TestJailTargetWithoutJidFails(t *testing.T) {
	r := NewRunner([]Hook{
		{Phase: PostStart, Target: TargetJail, Command: "echo", Args: []string{"hi"}, OnFailure: Abort},
	})

	ctx := NewContext("proj-web", "/jails/proj-web")
	if err := r.ExecutePhase(context.Background(), PostStart, ctx, nil); err == nil {
		t.Error("expected error running a jail-target hook with no jid")
	}
}

func TestHookTimeoutDefault(t *testing.T) {
	h := Hook{}
	if h.Timeout() != defaultTimeoutSecs*1_000_000_000 {
		t.Errorf("Timeout() default = %v, want %ds", h.Timeout(), defaultTimeoutSecs)
	}
}

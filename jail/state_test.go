package jail

import "testing"

func TestInstanceInitialState(t *testing.T) {
	i := NewInstance("proj-web", "/jails/proj-web")
	if i.State() != Stopped {
		t.Errorf("initial state = %v, want Stopped", i.State())
	}
}

func TestInstanceFullLifecycle(t *testing.T) {
	i := NewInstance("proj-web", "/jails/proj-web")

	if err := i.Start(); err != nil {
		t.Fatal(err)
	}
	if i.State() != Starting {
		t.Fatalf("state = %v, want Starting", i.State())
	}

	if err := i.Started(42); err != nil {
		t.Fatal(err)
	}
	if i.State() != Running {
		t.Fatalf("state = %v, want Running", i.State())
	}
	if jid, ok := i.Jid(); !ok || jid != 42 {
		t.Fatalf("Jid() = (%d, %v), want (42, true)", jid, ok)
	}

	if err := i.Stop(); err != nil {
		t.Fatal(err)
	}
	if i.State() != Stopping {
		t.Fatalf("state = %v, want Stopping", i.State())
	}

	if err := i.Stopped(); err != nil {
		t.Fatal(err)
	}
	if i.State() != Stopped {
		t.Fatalf("state = %v, want Stopped", i.State())
	}
	if _, ok := i.Jid(); ok {
		t.Fatal("Jid() should not be valid once Stopped")
	}
}

func TestInstanceFailAndRecover(t *testing.T) {
	i := NewInstance("proj-web", "/jails/proj-web")
	_ = i.Start()

	if err := i.Fail(); err != nil {
		t.Fatal(err)
	}
	if i.State() != Failed {
		t.Fatalf("state = %v, want Failed", i.State())
	}

	if err := i.Recover(); err != nil {
		t.Fatal(err)
	}
	if i.State() != Stopped {
		t.Fatalf("state = %v, want Stopped", i.State())
	}
}

func TestInstanceFailFromEachActiveState(t *testing.T) {
	for _, from := range []State{Starting, Running, Stopping} {
		if _, err := Transition(from, EventFail); err != nil {
			t.Errorf("Transition(%v, EventFail) returned error: %v", from, err)
		}
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	i := NewInstance("proj-web", "/jails/proj-web")

	// Stopped jail cannot receive "started" directly.
	if err := i.Started(1); err == nil {
		t.Error("expected error transitioning Stopped -> started")
	}
	if i.State() != Stopped {
		t.Errorf("state changed on rejected transition: %v", i.State())
	}

	// Running jail cannot receive "start" again.
	_ = i.Start()
	_ = i.Started(1)
	if err := i.Start(); err == nil {
		t.Error("expected error transitioning Running -> start")
	}
}

func TestTransitionTableRejectsUnknownPairs(t *testing.T) {
	if _, err := Transition(Stopped, EventStop); err == nil {
		t.Error("expected error for Stopped -> stop")
	}
	if _, err := Transition(Failed, EventStart); err == nil {
		t.Error("expected error for Failed -> start")
	}
}

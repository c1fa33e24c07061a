package jail

import blackerr "blackship/errors"

// State is one of the five lifecycle states an Instance can occupy.
type State int

const (
	// Stopped is the initial state: no kernel jail exists.
	Stopped State = iota
	// Starting means start() has been called but the jail is not yet confirmed up.
	Starting
	// Running means the jail has a live jid and passed its start sequence.
	Running
	// Stopping means stop() has been called but teardown is not complete.
	Stopping
	// Failed means the jail's start or stop sequence errored.
	Failed
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one of the six transitions the state machine accepts.
type Event int

const (
	// EventStart requests a transition from Stopped to Starting.
	EventStart Event = iota
	// EventStarted confirms a transition from Starting to Running.
	EventStarted
	// EventStop requests a transition from Running to Stopping.
	EventStop
	// EventStopped confirms a transition from Stopping to Stopped.
	EventStopped
	// EventFail forces a transition from Starting/Running/Stopping to Failed.
	EventFail
	// EventRecover clears a Failed instance back to Stopped.
	EventRecover
)

// transitions is the complete table of legal (state, event) -> state
// moves. Anything not in this table is rejected by Transition.
var transitions = map[State]map[Event]State{
	Stopped:  {EventStart: Starting},
	Starting: {EventStarted: Running, EventFail: Failed},
	Running:  {EventStop: Stopping, EventFail: Failed},
	Stopping: {EventStopped: Stopped, EventFail: Failed},
	Failed:   {EventRecover: Stopped},
}

// Transition applies event to from and returns the resulting state.
// It is a pure function: on an illegal transition it returns from
// unchanged alongside an error, never mutating caller state itself
// (callers own their own state field and only assign it the returned
// value on success).
func Transition(from State, event Event) (State, error) {
	if next, ok := transitions[from][event]; ok {
		return next, nil
	}
	return from, blackerr.New(blackerr.ErrInternal, "state transition",
		"invalid transition "+from.String()+" -> event "+eventName(event))
}

func eventName(e Event) string {
	switch e {
	case EventStart:
		return "start"
	case EventStarted:
		return "started"
	case EventStop:
		return "stop"
	case EventStopped:
		return "stopped"
	case EventFail:
		return "fail"
	case EventRecover:
		return "recover"
	default:
		return "unknown"
	}
}

// Instance is the runtime record for one configured jail.
type Instance struct {
	// Name is the jail's project-prefixed kernel name.
	Name string
	// Path is the effective root directory of the jail.
	Path string

	state State
	jid   int // valid iff state == Running or Stopping
}

// NewInstance creates an Instance in the initial Stopped state.
func NewInstance(name, path string) *Instance {
	return &Instance{Name: name, Path: path, state: Stopped}
}

// State returns the instance's current state.
func (i *Instance) State() State { return i.state }

// Jid returns the kernel jail id and whether it is currently valid
// (state is Running or Stopping).
func (i *Instance) Jid() (int, bool) {
	if i.state == Running || i.state == Stopping {
		return i.jid, true
	}
	return 0, false
}

// IsRunning reports whether the instance is in the Running state.
func (i *Instance) IsRunning() bool { return i.state == Running }

func (i *Instance) apply(event Event) error {
	next, err := Transition(i.state, event)
	if err != nil {
		return err
	}
	i.state = next
	return nil
}

// Start transitions Stopped -> Starting.
func (i *Instance) Start() error { return i.apply(EventStart) }

// Started transitions Starting -> Running and records the jid.
func (i *Instance) Started(jid int) error {
	if err := i.apply(EventStarted); err != nil {
		return err
	}
	i.jid = jid
	return nil
}

// Stop transitions Running -> Stopping.
func (i *Instance) Stop() error { return i.apply(EventStop) }

// Stopped transitions Stopping -> Stopped and clears the jid.
func (i *Instance) Stopped() error {
	if err := i.apply(EventStopped); err != nil {
		return err
	}
	i.jid = 0
	return nil
}

// Fail forces a transition to Failed from any of Starting/Running/Stopping.
func (i *Instance) Fail() error { return i.apply(EventFail) }

// Recover transitions Failed -> Stopped.
func (i *Instance) Recover() error { return i.apply(EventRecover) }

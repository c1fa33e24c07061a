// Package bulkhead manages jail port forwarding through a dedicated PF
// anchor, so blackship never touches the host's /etc/pf.conf directly.
package bulkhead

import (
	"bytes"
	"net/netip"
	"os/exec"
	"strconv"
	"sync"

	blackerr "blackship/errors"
)

// pfAnchor is the PF anchor blackship's rdr rules live under. The
// host's pf.conf must contain:
//
//	rdr-anchor "blackship"
//	anchor "blackship"
const pfAnchor = "blackship"

// Forward is a single external-port -> jail-port RDR rule.
type Forward struct {
	ExternalPort uint16
	InternalPort uint16
	Protocol     string
	JailIP       netip.Addr
	BindIP       netip.Addr // zero value means "all interfaces"
	JailName     string
}

// Rule renders the PF rdr rule text for this forward.
func (f Forward) Rule() string {
	var b bytes.Buffer
	b.WriteString("rdr ")
	if f.BindIP.IsValid() {
		b.WriteString("on ")
		b.WriteString(f.BindIP.String())
		b.WriteByte(' ')
	}
	b.WriteString("proto ")
	b.WriteString(f.Protocol)
	b.WriteString(" from any to any port ")
	b.WriteString(strconv.Itoa(int(f.ExternalPort)))
	b.WriteString(" -> ")
	b.WriteString(f.JailIP.String())
	b.WriteString(" port ")
	b.WriteString(strconv.Itoa(int(f.InternalPort)))
	b.WriteString(" # jail:")
	b.WriteString(f.JailName)
	return b.String()
}

// Manager tracks the active port forwards and keeps the PF anchor in
// sync with them.
type Manager struct {
	mu       sync.Mutex
	forwards []Forward
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Init verifies PF is enabled and warns (via the returned error, if
// any, being non-fatal to callers that choose to log it) when the
// blackship anchor isn't wired into pf.conf yet.
func Init() error {
	if out, err := exec.Command("pfctl", "-s", "info").CombinedOutput(); err != nil {
		return blackerr.New(blackerr.ErrBulkhead, "check pf status",
			"PF is not running, enable it with `service pf start`: "+string(out))
	}

	if _, err := exec.Command("pfctl", "-a", pfAnchor, "-s", "rules").CombinedOutput(); err != nil {
		return blackerr.New(blackerr.ErrBulkhead, "check pf anchor",
			"anchor '"+pfAnchor+"' is not configured; add `rdr-anchor \""+pfAnchor+"\"` and `anchor \""+pfAnchor+"\"` to /etc/pf.conf")
	}
	return nil
}

// AddForward registers forward and reloads the anchor with the full
// current rule set.
func (m *Manager) AddForward(forward Forward) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forwards = append(m.forwards, forward)
	return m.applyRulesLocked()
}

// RemoveJailForwards drops every forward registered for jailName and
// reloads the anchor.
func (m *Manager) RemoveJailForwards(jailName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.forwards[:0:0]
	for _, f := range m.forwards {
		if f.JailName != jailName {
			kept = append(kept, f)
		}
	}
	m.forwards = kept
	return m.applyRulesLocked()
}

// ListForwards returns a copy of the currently-registered forwards.
func (m *Manager) ListForwards() []Forward {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Forward, len(m.forwards))
	copy(out, m.forwards)
	return out
}

// JailForwards returns the forwards registered for a specific jail.
func (m *Manager) JailForwards(jailName string) []Forward {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Forward
	for _, f := range m.forwards {
		if f.JailName == jailName {
			out = append(out, f)
		}
	}
	return out
}

func (m *Manager) applyRulesLocked() error {
	var rules bytes.Buffer
	for i, f := range m.forwards {
		if i > 0 {
			rules.WriteByte('\n')
		}
		rules.WriteString(f.Rule())
	}

	cmd := exec.Command("pfctl", "-a", pfAnchor, "-f", "-")
	cmd.Stdin = bytes.NewReader(rules.Bytes())
	out, err := cmd.CombinedOutput()
	if err != nil {
		return blackerr.New(blackerr.ErrBulkhead, "load pf rules", string(out))
	}
	return nil
}

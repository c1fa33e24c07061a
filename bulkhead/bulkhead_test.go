package bulkhead

import (
	"net/netip"
	"strings"
	"testing"
)

func TestForwardRule(t *testing.T) {
	f := Forward{
		ExternalPort: 8080,
		InternalPort: 80,
		Protocol:     "tcp",
		JailIP:       netip.MustParseAddr("10.0.1.10"),
		JailName:     "webserver",
	}
	rule := f.Rule()
	for _, want := range []string{"rdr", "proto tcp", "port 8080", "-> 10.0.1.10", "port 80", "# jail:webserver"} {
		if !strings.Contains(rule, want) {
			t.Errorf("Rule() = %q, missing %q", rule, want)
		}
	}
}

func TestForwardRuleWithBindIP(t *testing.T) {
	f := Forward{
		ExternalPort: 443,
		InternalPort: 443,
		Protocol:     "tcp",
		JailIP:       netip.MustParseAddr("10.0.1.10"),
		BindIP:       netip.MustParseAddr("192.168.1.100"),
		JailName:     "webserver",
	}
	rule := f.Rule()
	if !strings.Contains(rule, "on 192.168.1.100") {
		t.Errorf("Rule() = %q, missing bind clause", rule)
	}
}

func TestManagerStartsEmpty(t *testing.T) {
	m := NewManager()
	if len(m.ListForwards()) != 0 {
		t.Error("new manager should have no forwards")
	}
}

func TestJailForwardsFiltersbyName(t *testing.T) {
	m := &Manager{forwards: []Forward{
		{JailName: "a", ExternalPort: 1, Protocol: "tcp", JailIP: netip.MustParseAddr("10.0.0.1")},
		{JailName: "b", ExternalPort: 2, Protocol: "tcp", JailIP: netip.MustParseAddr("10.0.0.2")},
	}}
	got := m.JailForwards("a")
	if len(got) != 1 || got[0].JailName != "a" {
		t.Errorf("JailForwards(a) = %v", got)
	}
}

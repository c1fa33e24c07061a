package network

import (
	"strconv"
	"strings"
	"sync/atomic"

	blackerr "blackship/errors"
	"blackship/jail"
	"blackship/netioctl"
)

// epairCounter generates the unique suffix used by CreateEpairForJail so
// concurrent jail starts never collide on an interface name.
var epairCounter uint32

// Epair is a virtual Ethernet pair connecting a VNET jail to a bridge:
// the host-side leg stays attached to the bridge, the jail-side leg is
// moved into the jail's vnet.
type Epair struct {
	hostSide string
	jailSide string
}

// CreateEpair creates a new epair pair with system-assigned names
// (epairNa/epairNb) and brings the host side up.
func CreateEpair() (*Epair, error) {
	hostSide, err := netioctl.CreateInterface("epair")
	if err != nil {
		return nil, err
	}

	jailSide, ok := strings.CutSuffix(hostSide, "a")
	if !ok {
		return nil, blackerr.New(blackerr.ErrNetwork, "create epair", "unexpected epair name format: "+hostSide)
	}
	jailSide += "b"

	if err := netioctl.SetUp(hostSide, true); err != nil {
		return nil, err
	}

	return &Epair{hostSide: hostSide, jailSide: jailSide}, nil
}

// CreateEpairForJail creates an epair and renames both legs to
// "e<n>a_<jail>"/"e<n>b_<jail>" so the host-side leg is identifiable in
// `ifconfig` output and bridge member lists.
func CreateEpairForJail(jailName string) (*Epair, error) {
	epair, err := CreateEpair()
	if err != nil {
		return nil, err
	}

	counter := atomic.AddUint32(&epairCounter, 1) - 1
	suffix := sanitizeInterfaceName(jailName)
	newHost := "e" + strconv.FormatUint(uint64(counter), 10) + "a_" + suffix
	newJail := "e" + strconv.FormatUint(uint64(counter), 10) + "b_" + suffix

	if err := netioctl.Rename(epair.hostSide, newHost); err != nil {
		_ = netioctl.DestroyInterface(epair.hostSide)
		return nil, err
	}
	if err := netioctl.Rename(epair.jailSide, newJail); err != nil {
		_ = netioctl.DestroyInterface(newHost)
		return nil, err
	}

	return &Epair{hostSide: newHost, jailSide: newJail}, nil
}

// HostSide returns the host-side interface name.
func (e *Epair) HostSide() string { return e.hostSide }

// JailSide returns the jail-side interface name (this is what will be
// visible inside the jail once moved).
func (e *Epair) JailSide() string { return e.jailSide }

// SetMacAddress assigns a link-layer address to the jail-side
// interface. Must be called before MoveToJail.
func (e *Epair) SetMacAddress(mac string) error {
	return netioctl.SetLinkAddress(e.jailSide, mac)
}

// MoveToJail reassigns the jail-side interface into jid's vnet.
func (e *Epair) MoveToJail(jid int) error {
	return netioctl.MoveToVnet(e.jailSide, jid)
}

// ConfigureInJail configures the named interface inside a running jail:
// assigns addr (CIDR form), brings it up, and adds a default route via
// gateway if one is given. Run via jail.Exec so it executes in the
// jail's own network namespace rather than the host's.
func ConfigureInJail(jid int, iface, addr, gateway string) error {
	if code, _, stderr, err := jail.Exec(jid, []string{"ifconfig", iface, addr}, 0); err != nil || code != 0 {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "configure "+iface+" in jail: "+string(stderr))
	}
	if code, _, stderr, err := jail.Exec(jid, []string{"ifconfig", iface, "up"}, 0); err != nil || code != 0 {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "bring up "+iface+" in jail: "+string(stderr))
	}
	if gateway == "" {
		return nil
	}
	if code, _, stderr, err := jail.Exec(jid, []string{"route", "add", "default", gateway}, 0); err != nil || code != 0 {
		if !strings.Contains(string(stderr), "File exists") {
			return blackerr.Wrap(err, blackerr.ErrNetwork, "add default route in jail: "+string(stderr))
		}
	}
	return nil
}

// Destroy tears down both legs of the epair (destroying either one
// destroys the pair).
func (e *Epair) Destroy() error {
	if err := netioctl.DestroyInterface(e.hostSide); err != nil {
		if exists, chkErr := netioctl.InterfaceExists(e.hostSide); chkErr == nil && !exists {
			return nil
		}
		return err
	}
	return nil
}

// sanitizeInterfaceName keeps only ASCII alphanumerics and underscores
// from name and truncates it to 10 characters, leaving room for the
// "eNa_"/"eNb_" prefix within FreeBSD's 16-byte IFNAMSIZ.
func sanitizeInterfaceName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if b.Len() >= 10 {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "jail"
	}
	return b.String()
}

package network

import "blackship/sys"

// Config describes how a VNET jail's network interface should be
// wired: which bridge it joins, its address, gateway, and optional
// static MAC/VLAN pinning.
type Config struct {
	Bridge        string
	IP            string // CIDR form, e.g. "10.0.1.10/24"
	Gateway       string
	MacAddress    string // optional
	VlanID        *uint16
	Trunk         []uint16 // non-empty marks this port a VLAN trunk instead of access port
	DisableHWFilter bool
}

// Setup is the result of wiring up a jail's host-side networking: the
// epair pair and the bridge it was attached to. AttachToJail finishes
// the job once the jail itself exists.
type Setup struct {
	Epair      *Epair
	BridgeName string
	config     Config
}

// CreateSetup creates the epair for jailName, sets its optional static
// MAC, and attaches the host-side leg to config.Bridge (creating the
// bridge if it doesn't exist yet). It does not move anything into a
// jail yet — that happens once the jail's jid is known.
func CreateSetup(jailName string, config Config) (*Setup, error) {
	bridge, err := CreateOrOpenBridge(config.Bridge)
	if err != nil {
		return nil, err
	}

	epair, err := CreateEpairForJail(jailName)
	if err != nil {
		return nil, err
	}

	if config.MacAddress != "" {
		if err := epair.SetMacAddress(config.MacAddress); err != nil {
			_ = epair.Destroy()
			return nil, err
		}
	}

	switch {
	case len(config.Trunk) > 0:
		if err := bridge.SetTrunk(epair.HostSide(), config.Trunk, config.DisableHWFilter); err != nil {
			_ = epair.Destroy()
			return nil, err
		}
		if err := bridge.AddMember(epair.HostSide()); err != nil {
			_ = epair.Destroy()
			return nil, err
		}
	case config.VlanID != nil:
		var err error
		if v, verr := sys.DetectKernel(); verr == nil && v.SupportsVLANFiltering() {
			err = bridge.AddMemberUntagged(epair.HostSide(), *config.VlanID)
		} else {
			err = bridge.AddMember(epair.HostSide())
		}
		if err != nil {
			_ = epair.Destroy()
			return nil, err
		}
	default:
		if err := bridge.AddMember(epair.HostSide()); err != nil {
			_ = epair.Destroy()
			return nil, err
		}
	}

	return &Setup{Epair: epair, BridgeName: config.Bridge, config: config}, nil
}

// JailInterface returns the interface name that will exist inside the
// jail once AttachToJail runs.
func (s *Setup) JailInterface() string {
	return s.Epair.JailSide()
}

// AttachToJail moves the jail-side leg into jid's vnet and configures
// its address and default route from inside the jail.
func (s *Setup) AttachToJail(jid int) error {
	if err := s.Epair.MoveToJail(jid); err != nil {
		return err
	}
	return ConfigureInJail(jid, s.JailInterface(), s.config.IP, s.config.Gateway)
}

// Cleanup detaches the host-side leg from its bridge (if the bridge
// still exists) and destroys the epair.
func (s *Setup) Cleanup() error {
	if bridge, err := OpenBridge(s.BridgeName); err == nil {
		_ = bridge.RemoveMember(s.Epair.HostSide())
	}
	return s.Epair.Destroy()
}

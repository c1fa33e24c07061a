package network

import (
	"strconv"
	"strings"

	blackerr "blackship/errors"
	"blackship/netioctl"
)

// Bridge is a bridge(4) interface used to connect a jail's epair
// host-side leg to the outside world (and to other jails on the same
// bridge).
type Bridge struct {
	name string
}

// CreateBridge creates a new bridge interface and brings it up.
func CreateBridge(name string) (*Bridge, error) {
	exists, err := BridgeExists(name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, blackerr.New(blackerr.ErrBridgeAlreadyExistsSentinel.Kind, "create bridge", name+" already exists")
	}

	created, err := netioctl.CreateInterface("bridge")
	if err != nil {
		return nil, err
	}
	if created != name {
		if err := netioctl.Rename(created, name); err != nil {
			_ = netioctl.DestroyInterface(created)
			return nil, err
		}
	}
	if err := netioctl.SetUp(name, true); err != nil {
		return nil, err
	}
	return &Bridge{name: name}, nil
}

// OpenBridge opens an existing bridge interface.
func OpenBridge(name string) (*Bridge, error) {
	exists, err := BridgeExists(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, blackerr.New(blackerr.ErrInterfaceNotFoundSentinel.Kind, "open bridge", name)
	}
	return &Bridge{name: name}, nil
}

// CreateOrOpenBridge opens name if it already exists, otherwise creates it.
func CreateOrOpenBridge(name string) (*Bridge, error) {
	exists, err := BridgeExists(name)
	if err != nil {
		return nil, err
	}
	if exists {
		return OpenBridge(name)
	}
	return CreateBridge(name)
}

// Name returns the bridge's interface name.
func (b *Bridge) Name() string { return b.name }

// BridgeExists reports whether a bridge interface by this name exists.
func BridgeExists(name string) (bool, error) {
	return netioctl.InterfaceExists(name)
}

// Destroy tears down the bridge interface.
func (b *Bridge) Destroy() error {
	return netioctl.DestroyInterface(b.name)
}

// AddMember attaches interface to the bridge untagged.
func (b *Bridge) AddMember(iface string) error {
	return netioctl.BridgeAddMember(b.name, iface)
}

// AddMemberUntagged attaches interface to the bridge with vlanID as its
// PVID, enabling VLAN filtering on the bridge first if needed.
func (b *Bridge) AddMemberUntagged(iface string, vlanID uint16) error {
	if err := netioctl.BridgeAddMember(b.name, iface); err != nil {
		return err
	}
	if err := netioctl.BridgeEnableVlanFiltering(b.name); err != nil {
		return err
	}
	return netioctl.BridgeSetPvid(b.name, iface, vlanID)
}

// SetTrunk configures iface as a trunk port carrying the given tagged
// VLANs, optionally disabling hardware VLAN filtering on it first (some
// NICs mishandle tagged frames in hardware).
func (b *Bridge) SetTrunk(iface string, tagged []uint16, disableHWFilter bool) error {
	if disableHWFilter {
		if err := netioctl.DisableHWFilter(iface); err != nil {
			return err
		}
	}
	if err := netioctl.BridgeEnableVlanFiltering(b.name); err != nil {
		return err
	}
	return netioctl.BridgeSetTaggedVlans(b.name, iface, tagged)
}

// RemoveMember detaches interface from the bridge.
func (b *Bridge) RemoveMember(iface string) error {
	return netioctl.BridgeDeleteMember(b.name, iface)
}

// SetAddress assigns an IPv4 address to the bridge itself. addr is a
// bare dotted-quad (a "/n" suffix is not accepted) and netmask is a
// dotted-quad mask, or "" to leave the mask unset.
func (b *Bridge) SetAddress(addr, netmask string) error {
	return netioctl.SetIPv4Address(b.name, addr, netmask)
}

// Members lists the interfaces currently attached to the bridge.
func (b *Bridge) Members() ([]string, error) {
	members, err := netioctl.BridgeListMembers(b.name)
	if err != nil {
		return nil, err
	}
	return members, nil
}

// DestroyBridge destroys the named bridge. If it still has members and
// force is false, it refuses and returns an error naming them.
func DestroyBridge(name string, force bool) error {
	bridge, err := OpenBridge(name)
	if err != nil {
		return err
	}

	members, err := bridge.Members()
	if err != nil {
		return err
	}
	if len(members) > 0 && !force {
		return blackerr.New(blackerr.ErrNetwork, "destroy bridge",
			"bridge '"+name+"' has "+strconv.Itoa(len(members))+" member(s) attached: "+strings.Join(members, ", ")+". Use force to destroy anyway")
	}

	return bridge.Destroy()
}

// ListBridges returns the names of all bridge interfaces on the system.
func ListBridges() ([]string, error) {
	return netioctl.ListBridges()
}

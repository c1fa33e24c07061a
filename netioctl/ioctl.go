// Package netioctl wraps the raw SIOC* network interface ioctls used to
// create/destroy epairs and bridges, move an interface into a jail's
// vnet, and manage bridge membership, VLAN PVID/tagged state.
//
// FreeBSD exposes all of this through ioctl(2) on a throwaway
// AF_INET/SOCK_DGRAM socket rather than through netlink (which does not
// exist on FreeBSD), so unlike a Linux equivalent this cannot go
// through golang.org/x/sys/unix's higher-level netlink helpers; it
// talks to the same ifreq/ifbreq/ifdrv wire structures ifconfig(8) and
// bridge(4) use.
package netioctl

import (
	"net"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	blackerr "blackship/errors"
)

const ifNameSize = 16

// FreeBSD SIOC* ioctl request numbers (from sys/sockio.h / net/if_bridgevar.h).
const (
	siocIfCreate2   = 0xc020697a
	siocIfDestroy   = 0x80206979
	siocGIfFlags    = 0xc0206911
	siocSIfFlags    = 0x80206910
	siocSIfName     = 0x80206928
	siocSIfLLAddr   = 0x8020693c
	siocSIfVnet     = 0xc020695a
	siocBrdgAdd     = 0x8028695c
	siocBrdgDel     = 0x8028695d
	siocSIfAddr     = 0x8020690c
	siocSIfNetmask  = 0x80206916
	siocGDrvSpec    = 0xc0286977
	siocSDrvSpec    = 0x8028695e
	siocGIfCap      = 0xc020693f
	siocSIfCap      = 0x80206937
)

const (
	ifFUp = 0x1

	ifCapVlanHWFilter = 1 << 17

	brdggifs   = 6
	brdgsifpvid = 31
	brdgsifvlanset = 32
	brdgsflags = 35
	brdggflt   = 36

	ifbrfVlanFilter = 1
	brdgVlanOpSet   = 1
	brVlanSetSize   = 4096
	brVlanBytes     = brVlanSetSize / 8
)

type ifreqName struct {
	Name [ifNameSize]byte
	Data [16]byte // union big enough for the request variants we use
}

func nameBytes(name string) ([ifNameSize]byte, error) {
	var buf [ifNameSize]byte
	if len(name) >= ifNameSize {
		return buf, blackerr.New(blackerr.ErrInterfaceNotFound, "interface name", name+" exceeds IFNAMSIZ")
	}
	copy(buf[:], name)
	return buf, nil
}

func ctlSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, blackerr.Wrap(err, blackerr.ErrIO, "open control socket")
	}
	return fd, nil
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// CreateInterface asks the kernel to clone a new interface of iftype
// (e.g. "epair", "bridge") and returns its assigned name.
func CreateInterface(iftype string) (string, error) {
	fd, err := ctlSocket()
	if err != nil {
		return "", err
	}
	defer unix.Close(fd)

	nameBuf, err := nameBytes(iftype)
	if err != nil {
		return "", err
	}
	req := ifreqName{Name: nameBuf}
	if err := ioctl(fd, siocIfCreate2, unsafe.Pointer(&req)); err != nil {
		return "", blackerr.Wrap(err, blackerr.ErrNetwork, "create "+iftype+" interface")
	}
	return cString(req.Name[:]), nil
}

// DestroyInterface destroys the named interface.
func DestroyInterface(name string) error {
	fd, err := ctlSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	nameBuf, err := nameBytes(name)
	if err != nil {
		return err
	}
	req := ifreqName{Name: nameBuf}
	if err := ioctl(fd, siocIfDestroy, unsafe.Pointer(&req)); err != nil {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "destroy interface "+name)
	}
	return nil
}

// SetUp brings the named interface administratively up or down.
func SetUp(name string, up bool) error {
	fd, err := ctlSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	nameBuf, err := nameBytes(name)
	if err != nil {
		return err
	}
	req := ifreqName{Name: nameBuf}
	if err := ioctl(fd, siocGIfFlags, unsafe.Pointer(&req)); err != nil {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "get flags for "+name)
	}

	flags := int16(req.Data[0]) | int16(req.Data[1])<<8
	if up {
		flags |= ifFUp
	} else {
		flags &^= ifFUp
	}
	req.Data[0] = byte(flags)
	req.Data[1] = byte(flags >> 8)

	if err := ioctl(fd, siocSIfFlags, unsafe.Pointer(&req)); err != nil {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "set flags for "+name)
	}
	return nil
}

// Rename changes an interface's name.
func Rename(oldName, newName string) error {
	fd, err := ctlSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	oldBuf, err := nameBytes(oldName)
	if err != nil {
		return err
	}
	newBuf, err := nameBytes(newName)
	if err != nil {
		return err
	}

	req := ifreqName{Name: oldBuf}
	newNamePtr := &newBuf[0]
	*(*uintptr)(unsafe.Pointer(&req.Data[0])) = uintptr(unsafe.Pointer(newNamePtr))

	if err := ioctl(fd, siocSIfName, unsafe.Pointer(&req)); err != nil {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "rename "+oldName+" to "+newName)
	}
	return nil
}

type sockaddrDL struct {
	Len    uint8
	Family uint8
	Data   [14]byte // sa_data; only the first 6 bytes are the MAC here
}

type ifreqLLAddr struct {
	Name [ifNameSize]byte
	Addr sockaddrDL
}

// SetLinkAddress assigns a MAC address (colon-hex form, e.g.
// "02:00:00:00:00:01") to the named interface.
func SetLinkAddress(name, mac string) error {
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return blackerr.New(blackerr.ErrConfigValidation, "set mac address", "invalid MAC address format: "+mac)
	}
	var macBytes [6]byte
	for i, part := range parts {
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return blackerr.New(blackerr.ErrConfigValidation, "set mac address", "invalid MAC address: "+mac)
		}
		macBytes[i] = byte(b)
	}

	fd, err := ctlSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	nameBuf, err := nameBytes(name)
	if err != nil {
		return err
	}

	req := ifreqLLAddr{Name: nameBuf, Addr: sockaddrDL{Len: 20, Family: unix.AF_LINK}}
	copy(req.Addr.Data[:6], macBytes[:])

	if err := ioctl(fd, siocSIfLLAddr, unsafe.Pointer(&req)); err != nil {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "set mac address "+mac+" on "+name)
	}
	return nil
}

// MoveToVnet reassigns the named interface into the vnet owned by jid.
// This is how an epair's jail-side leg is handed into a VNET jail.
func MoveToVnet(name string, jid int) error {
	fd, err := ctlSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	nameBuf, err := nameBytes(name)
	if err != nil {
		return err
	}
	req := ifreqName{Name: nameBuf}
	*(*int32)(unsafe.Pointer(&req.Data[0])) = int32(jid)

	if err := ioctl(fd, siocSIfVnet, unsafe.Pointer(&req)); err != nil {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "move "+name+" to vnet of jid "+strconv.Itoa(jid))
	}
	return nil
}

type ifbreq struct {
	Name    [ifNameSize]byte
	Ifsname [ifNameSize]byte
	Ifs     [32]byte // ifbrmreq/ifbreq tail we don't otherwise use
}

// BridgeAddMember adds member to bridge's member set.
func BridgeAddMember(bridge, member string) error {
	return bridgeMemberOp(bridge, member, siocBrdgAdd)
}

// BridgeDeleteMember removes member from bridge's member set.
func BridgeDeleteMember(bridge, member string) error {
	return bridgeMemberOp(bridge, member, siocBrdgDel)
}

func bridgeMemberOp(bridge, member string, req uintptr) error {
	fd, err := ctlSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	bridgeBuf, err := nameBytes(bridge)
	if err != nil {
		return err
	}
	memberBuf, err := nameBytes(member)
	if err != nil {
		return err
	}

	breq := ifbreq{Ifsname: memberBuf}
	ifr := struct {
		Name [ifNameSize]byte
		Data unsafe.Pointer
	}{Name: bridgeBuf, Data: unsafe.Pointer(&breq)}

	if err := ioctl(fd, req, unsafe.Pointer(&ifr)); err != nil {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "bridge "+bridge+" member "+member)
	}
	return nil
}

// InterfaceExists reports whether name currently exists.
func InterfaceExists(name string) (bool, error) {
	fd, err := ctlSocket()
	if err != nil {
		return false, err
	}
	defer unix.Close(fd)

	nameBuf, err := nameBytes(name)
	if err != nil {
		return false, err
	}
	req := ifreqName{Name: nameBuf}
	if err := ioctl(fd, siocGIfFlags, unsafe.Pointer(&req)); err != nil {
		if err == unix.ENXIO || err == unix.EADDRNOTAVAIL {
			return false, nil
		}
		return false, blackerr.Wrap(err, blackerr.ErrNetwork, "check interface "+name)
	}
	return true, nil
}

type sockaddrIn struct {
	Len    uint8
	Family uint8
	Port   uint16
	Addr   [4]byte
	Zero   [8]byte
}

type ifreqAddr struct {
	Name [ifNameSize]byte
	Addr sockaddrIn
}

// SetIPv4Address assigns addr (dotted-quad) and netmask (dotted-quad or
// "" to skip) to the named interface.
func SetIPv4Address(name, addr, netmask string) error {
	fd, err := ctlSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	nameBuf, err := nameBytes(name)
	if err != nil {
		return err
	}

	ip, perr := parseIPv4(addr)
	if perr != nil {
		return blackerr.New(blackerr.ErrConfigValidation, "set address on "+name, perr.Error())
	}

	req := ifreqAddr{Name: nameBuf, Addr: sockaddrIn{Len: 16, Family: unix.AF_INET, Addr: ip}}
	if err := ioctl(fd, siocSIfAddr, unsafe.Pointer(&req)); err != nil {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "set address "+addr+" on "+name)
	}

	if netmask == "" {
		return nil
	}
	mask, perr := parseIPv4(netmask)
	if perr != nil {
		return blackerr.New(blackerr.ErrConfigValidation, "set netmask on "+name, perr.Error())
	}
	req.Addr.Addr = mask
	if err := ioctl(fd, siocSIfNetmask, unsafe.Pointer(&req)); err != nil {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "set netmask "+netmask+" on "+name)
	}
	return nil
}

func parseIPv4(s string) ([4]byte, error) {
	var out [4]byte
	ip := net.ParseIP(s)
	v4 := ip.To4()
	if v4 == nil {
		return out, blackerr.New(blackerr.ErrConfigValidation, "parse ipv4", s)
	}
	copy(out[:], v4)
	return out, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ifdrv mirrors struct ifdrv from net/if.h: the generic envelope
// SIOCGDRVSPEC/SIOCSDRVSPEC use to carry a driver-specific command and
// payload, here always a bridge(4) BRDG* sub-command.
type ifdrv struct {
	Name [ifNameSize]byte
	Cmd  uint64
	Len  uint64
	Data unsafe.Pointer
}

// ifBrParam is the BRDGGFLT/BRDGSFLAGS payload: a single filter-flags word.
type ifBrParam struct {
	Csize uint32
}

// DisableHWFilter clears IFCAP_VLAN_HWFILTER on name and brings it back
// up. Some NICs (Broadcom in particular) filter tagged traffic in
// hardware in a way that breaks bridge VLAN filtering.
func DisableHWFilter(name string) error {
	fd, err := ctlSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	nameBuf, err := nameBytes(name)
	if err != nil {
		return err
	}

	type ifreqCap struct {
		Name   [ifNameSize]byte
		CurCap int32
		ReqCap int32
		_      [16]byte
	}
	req := ifreqCap{Name: nameBuf}
	if err := ioctl(fd, siocGIfCap, unsafe.Pointer(&req)); err != nil {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "get capabilities for "+name)
	}

	req.ReqCap = req.CurCap &^ ifCapVlanHWFilter
	if err := ioctl(fd, siocSIfCap, unsafe.Pointer(&req)); err != nil {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "disable vlan hwfilter on "+name)
	}

	return SetUp(name, true)
}

// BridgeEnableVlanFiltering turns on 802.1Q filtering for bridge,
// required before BridgeSetPvid/BridgeSetTaggedVlans have any effect.
func BridgeEnableVlanFiltering(bridge string) error {
	fd, err := ctlSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	bridgeBuf, err := nameBytes(bridge)
	if err != nil {
		return err
	}

	var current ifBrParam
	getReq := ifdrv{Name: bridgeBuf, Cmd: brdggflt, Len: uint64(unsafe.Sizeof(current)), Data: unsafe.Pointer(&current)}
	// A failed read just means "assume no flags set yet" per the original.
	_ = ioctl(fd, siocGDrvSpec, unsafe.Pointer(&getReq))

	set := ifBrParam{Csize: current.Csize | ifbrfVlanFilter}
	setReq := ifdrv{Name: bridgeBuf, Cmd: brdgsflags, Len: uint64(unsafe.Sizeof(set)), Data: unsafe.Pointer(&set)}
	if err := ioctl(fd, siocSDrvSpec, unsafe.Pointer(&setReq)); err != nil {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "enable vlan filtering on "+bridge)
	}
	return nil
}

// ifBReqFull is the bridge(4) per-member request structure used by
// BRDGSIFPVID/BRDGGIFS, distinct from the minimal ifbreq used for
// add/delete member operations.
type ifBReqFull struct {
	Ifsname  [ifNameSize]byte
	Ifsflags uint32
	Stpflags uint32
	PathCost uint32
	Portno   uint8
	Priority uint8
	Pvid     uint16
}

// BridgeSetPvid sets the untagged (port) VLAN ID for member on bridge.
func BridgeSetPvid(bridge, member string, pvid uint16) error {
	fd, err := ctlSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	bridgeBuf, err := nameBytes(bridge)
	if err != nil {
		return err
	}
	memberBuf, err := nameBytes(member)
	if err != nil {
		return err
	}

	breq := ifBReqFull{Ifsname: memberBuf, Pvid: pvid}
	req := ifdrv{Name: bridgeBuf, Cmd: brdgsifpvid, Len: uint64(unsafe.Sizeof(breq)), Data: unsafe.Pointer(&breq)}
	if err := ioctl(fd, siocSDrvSpec, unsafe.Pointer(&req)); err != nil {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "set pvid on "+member)
	}
	return nil
}

// ifBifVlanReq carries a 4096-bit VLAN membership bitmap for a trunk
// port, one bit per VLAN ID.
type ifBifVlanReq struct {
	Ifname [ifNameSize]byte
	Op     uint8
	_      [3]byte
	Set    [brVlanBytes]byte
}

// BridgeSetTaggedVlans replaces member's tagged VLAN set on bridge with vlans.
func BridgeSetTaggedVlans(bridge, member string, vlans []uint16) error {
	fd, err := ctlSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	bridgeBuf, err := nameBytes(bridge)
	if err != nil {
		return err
	}
	memberBuf, err := nameBytes(member)
	if err != nil {
		return err
	}

	vreq := ifBifVlanReq{Ifname: memberBuf, Op: brdgVlanOpSet}
	for _, vlan := range vlans {
		if vlan > 0 && vlan < 4095 {
			vreq.Set[vlan/8] |= 1 << (vlan % 8)
		}
	}

	req := ifdrv{Name: bridgeBuf, Cmd: brdgsifvlanset, Len: uint64(unsafe.Sizeof(vreq)), Data: unsafe.Pointer(&vreq)}
	if err := ioctl(fd, siocSDrvSpec, unsafe.Pointer(&req)); err != nil {
		return blackerr.Wrap(err, blackerr.ErrNetwork, "set tagged vlans on "+member)
	}
	return nil
}

// ifBifConf is the BRDGGIFS request envelope: a buffer of ifBReqFull
// entries the kernel fills in, growing on ENOMEM.
type ifBifConf struct {
	Len uint32
	_   [4]byte
	Req unsafe.Pointer
}

// BridgeListMembers returns the member interface names currently
// attached to bridge.
func BridgeListMembers(bridge string) ([]string, error) {
	fd, err := ctlSocket()
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)

	bridgeBuf, err := nameBytes(bridge)
	if err != nil {
		return nil, err
	}

	capacity := 16
	for {
		buf := make([]ifBReqFull, capacity)
		bifc := ifBifConf{Len: uint32(capacity * int(unsafe.Sizeof(ifBReqFull{}))), Req: unsafe.Pointer(&buf[0])}
		req := ifdrv{Name: bridgeBuf, Cmd: brdggifs, Len: uint64(unsafe.Sizeof(bifc)), Data: unsafe.Pointer(&bifc)}

		err := ioctl(fd, siocGDrvSpec, unsafe.Pointer(&req))
		if err != nil {
			if err == unix.ENOMEM {
				capacity *= 2
				continue
			}
			return nil, blackerr.Wrap(err, blackerr.ErrNetwork, "list members of "+bridge)
		}

		count := int(bifc.Len) / int(unsafe.Sizeof(ifBReqFull{}))
		if count > len(buf) {
			count = len(buf)
		}
		members := make([]string, 0, count)
		for _, entry := range buf[:count] {
			members = append(members, cString(entry.Ifsname[:]))
		}
		return members, nil
	}
}

// ListBridges returns the names of all bridge(4) interfaces on the
// system by scanning the system's interface list for a "bridge" prefix.
func ListBridges() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, blackerr.Wrap(err, blackerr.ErrNetwork, "list interfaces")
	}
	var bridges []string
	for _, iface := range ifaces {
		if strings.HasPrefix(iface.Name, "bridge") {
			bridges = append(bridges, iface.Name)
		}
	}
	return bridges, nil
}

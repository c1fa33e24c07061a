// Package network manages the virtual networking side of a jail:
// bridges, epair pairs, VNET wiring, and the IP address pools jails
// draw from.
package network

import (
	"net/netip"

	blackerr "blackship/errors"
)

// maxIPv6Iteration caps how many IPv6 host addresses Pool.Allocate will
// scan before giving up, matching the original's rationale: a /64 (or
// wider) has far too many hosts to iterate exhaustively.
const maxIPv6Iteration = 65536

// Pool allocates addresses out of a single subnet, reserving the
// gateway so it is never handed to a jail.
type Pool struct {
	subnet    netip.Prefix
	gateway   netip.Addr
	allocated map[netip.Addr]bool
}

// NewPool creates a Pool over subnet, reserving its first usable host
// address as the gateway.
func NewPool(subnet netip.Prefix) (*Pool, error) {
	gw, err := firstUsable(subnet)
	if err != nil {
		return nil, err
	}
	return &Pool{subnet: subnet, gateway: gw, allocated: map[netip.Addr]bool{gw: true}}, nil
}

// NewPoolWithGateway creates a Pool over subnet using an explicit
// gateway address, which must lie within the subnet.
func NewPoolWithGateway(subnet netip.Prefix, gateway netip.Addr) (*Pool, error) {
	if !subnet.Contains(gateway) {
		return nil, blackerr.New(blackerr.ErrAddressOutOfSubnet.Kind, "create ip pool",
			gateway.String()+" is not in subnet "+subnet.String())
	}
	return &Pool{subnet: subnet, gateway: gateway, allocated: map[netip.Addr]bool{gateway: true}}, nil
}

func firstUsable(subnet netip.Prefix) (netip.Addr, error) {
	addr := subnet.Masked().Addr()
	next := addr.Next()
	if !subnet.Contains(next) {
		return netip.Addr{}, blackerr.New(blackerr.ErrConfigValidation, "create ip pool", "network too small for gateway")
	}
	return next, nil
}

// Gateway returns the pool's reserved gateway address.
func (p *Pool) Gateway() netip.Addr { return p.gateway }

// Subnet returns the pool's subnet.
func (p *Pool) Subnet() netip.Prefix { return p.subnet }

// Allocate reserves and returns the next available address in the
// subnet, skipping the network and broadcast addresses for IPv4 and
// capping iteration at maxIPv6Iteration hosts for IPv6.
func (p *Pool) Allocate() (netip.Addr, error) {
	limit := -1
	if p.subnet.Addr().Is6() {
		limit = maxIPv6Iteration
	}

	addr := p.subnet.Masked().Addr()
	broadcast := lastHost(p.subnet)
	count := 0
	for addr = addr.Next(); p.subnet.Contains(addr); addr = addr.Next() {
		if limit >= 0 {
			count++
			if count > limit {
				break
			}
		}
		if addr.Is4() && addr == broadcast {
			continue
		}
		if !p.allocated[addr] {
			p.allocated[addr] = true
			return addr, nil
		}
	}
	return netip.Addr{}, blackerr.New(blackerr.ErrNoAvailableAddresses.Kind, "allocate address", "no available addresses in "+p.subnet.String())
}

// AllocateSpecific reserves a specific address, failing if it is
// outside the subnet or already allocated.
func (p *Pool) AllocateSpecific(addr netip.Addr) error {
	if !p.subnet.Contains(addr) {
		return blackerr.New(blackerr.ErrAddressOutOfSubnet.Kind, "allocate address", addr.String()+" is not in subnet "+p.subnet.String())
	}
	if p.allocated[addr] {
		return blackerr.New(blackerr.ErrAddressAlreadyAllocated.Kind, "allocate address", addr.String()+" is already allocated")
	}
	p.allocated[addr] = true
	return nil
}

// Release returns addr to the pool, unless it is the reserved gateway.
func (p *Pool) Release(addr netip.Addr) {
	if addr == p.gateway {
		return
	}
	delete(p.allocated, addr)
}

// IsAvailable reports whether addr is in-subnet and not currently allocated.
func (p *Pool) IsAvailable(addr netip.Addr) bool {
	return p.subnet.Contains(addr) && !p.allocated[addr]
}

// AllocatedCount returns the number of currently-allocated addresses,
// including the reserved gateway.
func (p *Pool) AllocatedCount() int { return len(p.allocated) }

func lastHost(subnet netip.Prefix) netip.Addr {
	if !subnet.Addr().Is4() {
		return netip.Addr{}
	}
	base := subnet.Masked().Addr().As4()
	ones := subnet.Bits()
	hostBits := 32 - ones
	var mask uint32
	if hostBits >= 32 {
		mask = 0xffffffff
	} else {
		mask = (uint32(1) << hostBits) - 1
	}
	val := uint32(base[0])<<24 | uint32(base[1])<<16 | uint32(base[2])<<8 | uint32(base[3])
	val |= mask
	return netip.AddrFrom4([4]byte{byte(val >> 24), byte(val >> 16), byte(val >> 8), byte(val)})
}

// Allocator manages one Pool per named network.
type Allocator struct {
	pools map[string]*Pool
}

// NewAllocator creates an empty Allocator.
func NewAllocator() *Allocator { return &Allocator{pools: make(map[string]*Pool)} }

// AddPool registers pool under name, replacing any existing pool of that name.
func (a *Allocator) AddPool(name string, pool *Pool) { a.pools[name] = pool }

// Pool returns the named pool, or nil if none is registered.
func (a *Allocator) Pool(name string) *Pool { return a.pools[name] }

// Allocate draws the next address from the named pool.
func (a *Allocator) Allocate(network string) (netip.Addr, error) {
	pool, ok := a.pools[network]
	if !ok {
		return netip.Addr{}, blackerr.New(blackerr.ErrNetworkPoolNotFound.Kind, "allocate address", "network '"+network+"' not found")
	}
	return pool.Allocate()
}

// Release returns addr to the named pool, if it exists.
func (a *Allocator) Release(network string, addr netip.Addr) {
	if pool, ok := a.pools[network]; ok {
		pool.Release(addr)
	}
}

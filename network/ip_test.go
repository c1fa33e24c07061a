package network

import (
	"net/netip"
	"testing"
)

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewPoolReservesGateway(t *testing.T) {
	subnet := mustPrefix(t, "10.0.1.0/24")
	pool, err := NewPool(subnet)
	if err != nil {
		t.Fatal(err)
	}
	if pool.Gateway().String() != "10.0.1.1" {
		t.Errorf("gateway = %s, want 10.0.1.1", pool.Gateway())
	}
	if pool.AllocatedCount() != 1 {
		t.Errorf("AllocatedCount() = %d, want 1", pool.AllocatedCount())
	}
}

func TestAllocateSkipsGatewayAndBroadcast(t *testing.T) {
	pool, err := NewPool(mustPrefix(t, "10.0.1.0/24"))
	if err != nil {
		t.Fatal(err)
	}
	first, err := pool.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if first.String() != "10.0.1.2" {
		t.Errorf("first allocation = %s, want 10.0.1.2", first)
	}
	second, err := pool.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if second.String() != "10.0.1.3" {
		t.Errorf("second allocation = %s, want 10.0.1.3", second)
	}
}

func TestReleaseAndReallocate(t *testing.T) {
	pool, err := NewPool(mustPrefix(t, "10.0.1.0/24"))
	if err != nil {
		t.Fatal(err)
	}
	ip, _ := pool.Allocate()
	if pool.AllocatedCount() != 2 {
		t.Fatalf("AllocatedCount() = %d, want 2", pool.AllocatedCount())
	}
	pool.Release(ip)
	if pool.AllocatedCount() != 1 {
		t.Fatalf("AllocatedCount() after release = %d, want 1", pool.AllocatedCount())
	}
	ip2, _ := pool.Allocate()
	if ip2 != ip {
		t.Errorf("expected released address to be reallocated: got %s, want %s", ip2, ip)
	}
}

func TestGatewayNeverReleased(t *testing.T) {
	pool, err := NewPool(mustPrefix(t, "10.0.1.0/24"))
	if err != nil {
		t.Fatal(err)
	}
	pool.Release(pool.Gateway())
	if pool.AllocatedCount() != 1 {
		t.Error("gateway should never be released")
	}
}

func TestAllocateSpecificRejectsOutOfSubnet(t *testing.T) {
	pool, _ := NewPool(mustPrefix(t, "10.0.1.0/24"))
	addr := netip.MustParseAddr("10.0.2.5")
	if err := pool.AllocateSpecific(addr); err == nil {
		t.Error("expected error for out-of-subnet address")
	}
}

func TestAllocateSpecificRejectsDoubleAllocation(t *testing.T) {
	pool, _ := NewPool(mustPrefix(t, "10.0.1.0/24"))
	addr := netip.MustParseAddr("10.0.1.100")
	if err := pool.AllocateSpecific(addr); err != nil {
		t.Fatal(err)
	}
	if err := pool.AllocateSpecific(addr); err == nil {
		t.Error("expected error allocating an already-allocated address")
	}
}

func TestAllocatorRoutesToNamedPool(t *testing.T) {
	a := NewAllocator()
	pool, _ := NewPool(mustPrefix(t, "10.0.1.0/24"))
	a.AddPool("lan", pool)

	addr, err := a.Allocate("lan")
	if err != nil {
		t.Fatal(err)
	}
	if addr.String() != "10.0.1.2" {
		t.Errorf("Allocate() = %s", addr)
	}

	if _, err := a.Allocate("missing"); err == nil {
		t.Error("expected error for unknown network")
	}
}

package network

import "testing"

func TestVnetConfigFields(t *testing.T) {
	vlan := uint16(42)
	config := Config{
		Bridge:  "blackship0",
		IP:      "10.0.1.10/24",
		Gateway: "10.0.1.1",
		VlanID:  &vlan,
	}
	if config.Bridge != "blackship0" {
		t.Errorf("Bridge = %q", config.Bridge)
	}
	if config.IP != "10.0.1.10/24" {
		t.Errorf("IP = %q", config.IP)
	}
	if config.VlanID == nil || *config.VlanID != 42 {
		t.Error("VlanID not set as expected")
	}
}

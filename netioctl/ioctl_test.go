package netioctl

import "testing"

func TestNameBytesRejectsOverlongNames(t *testing.T) {
	if _, err := nameBytes("this_name_is_way_too_long_for_ifnamsiz"); err == nil {
		t.Error("expected error for name exceeding IFNAMSIZ")
	}
}

func TestNameBytesRoundTrip(t *testing.T) {
	buf, err := nameBytes("epair0a")
	if err != nil {
		t.Fatal(err)
	}
	if got := cString(buf[:]); got != "epair0a" {
		t.Errorf("cString(nameBytes(...)) = %q", got)
	}
}

func TestParseIPv4(t *testing.T) {
	got, err := parseIPv4("10.0.1.5")
	if err != nil {
		t.Fatal(err)
	}
	want := [4]byte{10, 0, 1, 5}
	if got != want {
		t.Errorf("parseIPv4() = %v, want %v", got, want)
	}
}

func TestParseIPv4Invalid(t *testing.T) {
	if _, err := parseIPv4("not-an-ip"); err == nil {
		t.Error("expected error for invalid address")
	}
	if _, err := parseIPv4("::1"); err == nil {
		t.Error("expected error for IPv6 address")
	}
}

package sys

import "testing"

func TestParseCurrent(t *testing.T) {
	v, err := Parse("16.0-CURRENT")
	if err != nil {
		t.Fatal(err)
	}
	if v.Major != 16 || v.Minor != 0 || v.HasPatch || v.ReleaseType != Current {
		t.Errorf("unexpected parse: %+v", v)
	}
}

func TestParseRelease(t *testing.T) {
	v, err := Parse("15.0-RELEASE")
	if err != nil {
		t.Fatal(err)
	}
	if v.Major != 15 || v.Minor != 0 || v.HasPatch || v.ReleaseType != Release {
		t.Errorf("unexpected parse: %+v", v)
	}
}

func TestParseReleaseWithPatch(t *testing.T) {
	v, err := Parse("15.0-RELEASE-p1")
	if err != nil {
		t.Fatal(err)
	}
	if v.Major != 15 || v.Minor != 0 || !v.HasPatch || v.Patch != 1 || v.ReleaseType != Release {
		t.Errorf("unexpected parse: %+v", v)
	}
}

func TestParseStable(t *testing.T) {
	v, err := Parse("14.2-STABLE")
	if err != nil {
		t.Fatal(err)
	}
	if v.Major != 14 || v.Minor != 2 || v.ReleaseType != Stable {
		t.Errorf("unexpected parse: %+v", v)
	}
}

func TestParseRC(t *testing.T) {
	v, err := Parse("15.0-RC2")
	if err != nil {
		t.Fatal(err)
	}
	if v.Major != 15 || v.Minor != 0 || v.ReleaseType != RC || v.RCNumber != 2 {
		t.Errorf("unexpected parse: %+v", v)
	}
}

func TestVLANFilteringSupport(t *testing.T) {
	cases := []struct {
		version string
		want    bool
	}{
		{"15.0-RELEASE", true},
		{"16.0-CURRENT", true},
		{"14.2-STABLE", false},
		{"13.3-RELEASE", false},
	}
	for _, c := range cases {
		v, err := Parse(c.version)
		if err != nil {
			t.Fatal(err)
		}
		if got := v.SupportsVLANFiltering(); got != c.want {
			t.Errorf("%s: SupportsVLANFiltering() = %v, want %v", c.version, got, c.want)
		}
	}
}

func TestDisplay(t *testing.T) {
	v, _ := Parse("16.0-CURRENT")
	if v.String() != "16.0-CURRENT" {
		t.Errorf("String() = %q", v.String())
	}
	v, _ = Parse("15.0-RELEASE-p1")
	if v.String() != "15.0-RELEASE-p1" {
		t.Errorf("String() = %q", v.String())
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse("garbage"); err == nil {
		t.Error("expected error for malformed version string")
	}
	if _, err := Parse("15.0-BOGUS"); err == nil {
		t.Error("expected error for unknown release type")
	}
}

package network

import "testing"

func TestSanitizeInterfaceName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"myjail", "myjail"},
		{"my-jail", "myjail"},
		{"verylongjailname", "verylongja"},
		{"", "jail"},
	}
	for _, c := range cases {
		if got := sanitizeInterfaceName(c.in); got != c.want {
			t.Errorf("sanitizeInterfaceName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

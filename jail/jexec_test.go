package jail

import "testing"

func TestIsExecHelperInvocation(t *testing.T) {
	cases := []struct {
		argv   []string
		wantOK bool
		want   string
	}{
		{[]string{"blackship", execHelperArg}, true, execHelperArg},
		{[]string{"blackship", chrootHelperArg}, true, chrootHelperArg},
		{[]string{"blackship", "up"}, false, ""},
		{[]string{"blackship"}, false, ""},
	}
	for _, c := range cases {
		got, ok := IsExecHelperInvocation(c.argv)
		if ok != c.wantOK || got != c.want {
			t.Errorf("IsExecHelperInvocation(%v) = (%q, %v), want (%q, %v)", c.argv, got, ok, c.want, c.wantOK)
		}
	}
}

func TestExecEmptyArgvRejected(t *testing.T) {
	if _, _, _, err := Exec(1, nil, 0); err == nil {
		t.Error("expected error for empty argv")
	}
}

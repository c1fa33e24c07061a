package zfs

import "testing"

func TestManagerDatasetPaths(t *testing.T) {
	m := New("zroot", "blackship")

	if got, want := m.JailsDataset(), "zroot/blackship/jails"; got != want {
		t.Errorf("JailsDataset() = %q, want %q", got, want)
	}
	if got, want := m.JailDataset("web"), "zroot/blackship/jails/web"; got != want {
		t.Errorf("JailDataset(web) = %q, want %q", got, want)
	}
	if got, want := m.JailPath("web"), "/zroot/blackship/jails/web"; got != want {
		t.Errorf("JailPath(web) = %q, want %q", got, want)
	}
}

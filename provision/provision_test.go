package provision

import "testing"

func TestParseManifest(t *testing.T) {
	content := "base.txz\tabc123\t100\t1000\nkernel.txz\tdef456\t50\t500"
	checksums := parseManifest(content)

	if checksums["base"] != "abc123" {
		t.Errorf("base checksum = %q, want abc123", checksums["base"])
	}
	if checksums["kernel"] != "def456" {
		t.Errorf("kernel checksum = %q, want def456", checksums["kernel"])
	}
}

func TestArchiveURL(t *testing.T) {
	p := &Provisioner{mirrorURL: "https://download.freebsd.org/releases", arch: Amd64}
	got := p.archiveURL("14.2-RELEASE", "base")
	want := "https://download.freebsd.org/releases/amd64/14.2-RELEASE/base.txz"
	if got != want {
		t.Errorf("archiveURL() = %q, want %q", got, want)
	}
}

func TestManifestURL(t *testing.T) {
	p := &Provisioner{mirrorURL: "https://download.freebsd.org/releases", arch: Arm64}
	got := p.manifestURL("14.2-RELEASE")
	want := "https://download.freebsd.org/releases/arm64/14.2-RELEASE/MANIFEST"
	if got != want {
		t.Errorf("manifestURL() = %q, want %q", got, want)
	}
}

func TestArchFreeBSDName(t *testing.T) {
	cases := map[Arch]string{Amd64: "amd64", Arm64: "arm64", I386: "i386"}
	for arch, want := range cases {
		if got := arch.FreeBSDName(); got != want {
			t.Errorf("%v.FreeBSDName() = %q, want %q", arch, got, want)
		}
	}
}

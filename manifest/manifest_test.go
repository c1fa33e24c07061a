package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMinimalConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "blackship.toml", `
[config]
data_dir = "/var/blackship"

[[jails]]
name = "web"
path = "/jails/web"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Global.ProjectName() != filepath.Base(dir) {
		t.Errorf("project name = %q, want directory name %q", cfg.Global.ProjectName(), filepath.Base(dir))
	}
	if cfg.Global.Dataset != defaultDataset {
		t.Errorf("dataset default not applied: %q", cfg.Global.Dataset)
	}
	if len(cfg.Jails) != 1 || cfg.Jails[0].Name != "web" {
		t.Fatalf("jails = %+v", cfg.Jails)
	}
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	cfg := Config{Jails: []JailDef{{Name: "web"}, {Name: "web"}}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for duplicate jail names")
	}
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	cfg := Config{Jails: []JailDef{{Name: "web", DependsOn: []string{"db"}}}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown dependency")
	}
}

func TestValidateRejectsSelfDependency(t *testing.T) {
	cfg := Config{Jails: []JailDef{{Name: "web", DependsOn: []string{"web"}}}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for self dependency")
	}
}

func TestValidateRejectsZFSWithoutZpool(t *testing.T) {
	cfg := Config{Global: GlobalConfig{ZFSEnabled: true}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zfs_enabled without zpool")
	}
}

func TestJailNameAddsPrefixOnce(t *testing.T) {
	cfg := Config{Global: GlobalConfig{Project: "myproj"}}
	if got := cfg.JailName("web"); got != "myproj-web" {
		t.Errorf("JailName() = %q", got)
	}
	if got := cfg.JailName("myproj-web"); got != "myproj-web" {
		t.Errorf("JailName() on already-prefixed name = %q", got)
	}
}

func TestEffectivePathPrecedence(t *testing.T) {
	global := GlobalConfig{DataDir: "/var/blackship", ZFSEnabled: true, Zpool: "zroot", Dataset: "blackship"}

	explicit := JailDef{Path: "/custom/path"}
	if got := explicit.EffectivePath(global, "proj-web"); got != "/custom/path" {
		t.Errorf("explicit path not honored: %q", got)
	}

	zfs := JailDef{}
	if got := zfs.EffectivePath(global, "proj-web"); got != "/zroot/blackship/jails/proj-web" {
		t.Errorf("zfs path = %q", got)
	}

	global.ZFSEnabled = false
	fallback := JailDef{}
	if got := fallback.EffectivePath(global, "proj-web"); got != "/var/blackship/jails/proj-web" {
		t.Errorf("fallback path = %q", got)
	}
}

func TestLoadMergedOverridesLaterFields(t *testing.T) {
	dir := t.TempDir()
	base := writeConfig(t, dir, "base.toml", `
[config]
data_dir = "/var/blackship"

[[jails]]
name = "web"
path = "/jails/web"
`)
	override := writeConfig(t, dir, "override.toml", `
[config]
data_dir = "/var/blackship"

[[jails]]
name = "web"
hostname = "web.local"
`)

	cfg, err := LoadMerged([]string{base, override})
	if err != nil {
		t.Fatal(err)
	}
	jail, ok := cfg.GetJail("web")
	if !ok {
		t.Fatal("expected web jail")
	}
	if jail.Path != "/jails/web" {
		t.Errorf("merged jail lost base path: %+v", jail)
	}
	if jail.Hostname != "web.local" {
		t.Errorf("merged jail missing override hostname: %+v", jail)
	}
}

func TestDnsConfigInherit(t *testing.T) {
	var d DnsConfig
	if !d.IsInherit() {
		t.Error("empty DnsConfig should inherit")
	}
	d.Nameservers = []string{"8.8.8.8"}
	if d.IsInherit() {
		t.Error("DnsConfig with nameservers should not inherit")
	}
	if got := d.ToResolvConf(); got != "nameserver 8.8.8.8\n" {
		t.Errorf("ToResolvConf() = %q", got)
	}
}

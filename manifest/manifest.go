// Package manifest parses and validates blackship.toml configuration
// files: the declarative description of a project's jails, networks,
// and global settings.
package manifest

import (
	"fmt"
	"path/filepath"

	"blackship/hooks"
	"blackship/sickbay"
)

// Config is the root of a parsed blackship.toml file.
type Config struct {
	Global   GlobalConfig    `toml:"config"`
	Networks []NetworkConfig `toml:"networks"`
	Jails    []JailDef       `toml:"jails"`
}

// GlobalConfig holds project-wide settings.
type GlobalConfig struct {
	Project           string            `toml:"project"`
	DataDir           string            `toml:"data_dir"`
	ZFSEnabled        bool              `toml:"zfs_enabled"`
	Zpool             string            `toml:"zpool"`
	Dataset           string            `toml:"dataset"`
	ReleasesDir       string            `toml:"releases_dir"`
	CacheDir          string            `toml:"cache_dir"`
	MirrorURL         string            `toml:"mirror_url"`
	BootstrapArchives []string          `toml:"bootstrap_archives"`
	RateLimit         RateLimitConfig   `toml:"rate_limit"`
	Health            HealthDefaults    `toml:"health"`
	Retry             RetryConfig       `toml:"retry"`
	Bridge            *BridgeVlanConfig `toml:"bridge"`
}

const (
	defaultDataset    = "blackship"
	defaultReleasesDir = "/var/blackship/releases"
	defaultCacheDir    = "/var/blackship/cache"
	defaultMirrorURL   = "https://download.freebsd.org/releases"
)

// ProjectName returns the effective project name, defaulting to
// "blackship" if one was never set (Load/LoadMerged always set one
// from the config's directory before this would be reached).
func (g GlobalConfig) ProjectName() string {
	if g.Project == "" {
		return "blackship"
	}
	return g.Project
}

func (g GlobalConfig) withDefaults() GlobalConfig {
	if g.Dataset == "" {
		g.Dataset = defaultDataset
	}
	if g.ReleasesDir == "" {
		g.ReleasesDir = defaultReleasesDir
	}
	if g.CacheDir == "" {
		g.CacheDir = defaultCacheDir
	}
	if g.MirrorURL == "" {
		g.MirrorURL = defaultMirrorURL
	}
	if len(g.BootstrapArchives) == 0 {
		g.BootstrapArchives = []string{"base"}
	}
	g.RateLimit = g.RateLimit.withDefaults()
	g.Health = g.Health.withDefaults()
	g.Retry = g.Retry.withDefaults()
	return g
}

// merge applies other on top of g, Docker-Compose style: other's
// explicitly-set fields win, everything else falls back to g. A later
// file can switch zfs_enabled on but cannot switch it back off.
func (g GlobalConfig) merge(other GlobalConfig) GlobalConfig {
	merged := g
	if other.Project != "" {
		merged.Project = other.Project
	}
	if other.DataDir != "" {
		merged.DataDir = other.DataDir
	}
	if other.ZFSEnabled {
		merged.ZFSEnabled = true
	}
	if other.Zpool != "" {
		merged.Zpool = other.Zpool
	}
	if other.Dataset != "" {
		merged.Dataset = other.Dataset
	}
	if other.ReleasesDir != "" {
		merged.ReleasesDir = other.ReleasesDir
	}
	if other.CacheDir != "" {
		merged.CacheDir = other.CacheDir
	}
	if other.MirrorURL != "" {
		merged.MirrorURL = other.MirrorURL
	}
	if len(other.BootstrapArchives) > 0 {
		merged.BootstrapArchives = other.BootstrapArchives
	}
	if other.RateLimit != (RateLimitConfig{}) {
		merged.RateLimit = other.RateLimit
	}
	if other.Health != (HealthDefaults{}) {
		merged.Health = other.Health
	}
	if other.Retry != (RetryConfig{}) {
		merged.Retry = other.Retry
	}
	if other.Bridge != nil {
		merged.Bridge = other.Bridge
	}
	return merged
}

// RateLimitConfig holds the token-bucket settings. JailStartCapacity is
// the burst of the jail-start limiter, which refills at one token per
// second. HealthCapacity and HealthRefillRate are parsed and defaulted
// but not consulted: each health check's limiter has a fixed capacity of
// 5 tokens refilled at 5 per minute.
type RateLimitConfig struct {
	JailStartCapacity  float64 `toml:"jail_start_capacity"`
	HealthCapacity     float64 `toml:"health_capacity"`
	HealthRefillRate   float64 `toml:"health_refill_rate"`
}

func (r RateLimitConfig) withDefaults() RateLimitConfig {
	if r.JailStartCapacity == 0 {
		r.JailStartCapacity = 3.0
	}
	if r.HealthCapacity == 0 {
		r.HealthCapacity = 5.0
	}
	if r.HealthRefillRate == 0 {
		r.HealthRefillRate = 0.5
	}
	return r
}

// HealthDefaults are the global `health` settings (interval, timeout,
// start_period, retries). They are parsed and defaulted but not
// consulted: a check that leaves one of these unset uses sickbay's
// built-in default for it (30s, 10s, 60s, 3 retries).
type HealthDefaults struct {
	IntervalSec    uint64 `toml:"interval"`
	TimeoutSec     uint64 `toml:"timeout"`
	StartPeriodSec uint64 `toml:"start_period"`
	Retries        uint32 `toml:"retries"`
}

func (h HealthDefaults) withDefaults() HealthDefaults {
	if h.IntervalSec == 0 {
		h.IntervalSec = 30
	}
	if h.TimeoutSec == 0 {
		h.TimeoutSec = 10
	}
	if h.StartPeriodSec == 0 {
		h.StartPeriodSec = 60
	}
	if h.Retries == 0 {
		h.Retries = 3
	}
	return h
}

// RetryConfig governs exponential backoff for HTTP/provisioning
// operations (downloading releases, fetching checksums). This is a
// distinct config block from the warden's own restart backoff, which
// is not user-configurable.
type RetryConfig struct {
	BaseDelayMs  uint64  `toml:"base_delay_ms"`
	MaxDelayMs   uint64  `toml:"max_delay_ms"`
	Multiplier   float64 `toml:"multiplier"`
	MaxAttempts  uint8   `toml:"max_attempts"`
	JitterFactor float64 `toml:"jitter_factor"`
}

func (r RetryConfig) withDefaults() RetryConfig {
	if r.BaseDelayMs == 0 {
		r.BaseDelayMs = 1000
	}
	if r.MaxDelayMs == 0 {
		r.MaxDelayMs = 30000
	}
	if r.Multiplier == 0 {
		r.Multiplier = 2.0
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.JitterFactor == 0 {
		r.JitterFactor = 0.25
	}
	return r
}

// NetworkConfig declares a named virtual network jails can attach to.
type NetworkConfig struct {
	Name    string `toml:"name"`
	Subnet  string `toml:"subnet"`
	Gateway string `toml:"gateway"`
}

// BridgeVlanConfig configures the bridge interface used for VNET jails,
// optionally with VLAN filtering against a physical trunk (FreeBSD 15.0+).
type BridgeVlanConfig struct {
	Name          string       `toml:"name"`
	VlanFiltering bool         `toml:"vlan_filtering"`
	Trunk         *TrunkConfig `toml:"trunk"`
}

// TrunkConfig describes the physical NIC carrying tagged VLANs onto the bridge.
type TrunkConfig struct {
	Interface      string   `toml:"interface"`
	Tagged         []uint16 `toml:"tagged"`
	DisableHWFilter bool    `toml:"disable_hwfilter"`
}

// DnsConfig configures /etc/resolv.conf inside a jail.
type DnsConfig struct {
	Nameservers []string `toml:"nameservers"`
	Search      []string `toml:"search"`
	Domain      string   `toml:"domain"`
	Mode        string   `toml:"mode"`
}

// IsInherit reports whether the jail should copy the host's resolv.conf
// rather than generate its own.
func (d DnsConfig) IsInherit() bool {
	return d.Mode == "inherit" || (d.Mode != "custom" && len(d.Nameservers) == 0)
}

// ToResolvConf renders resolv.conf content for a non-inherit DnsConfig,
// or "" if the jail should inherit the host's.
func (d DnsConfig) ToResolvConf() string {
	if d.IsInherit() {
		return ""
	}
	content := ""
	if d.Domain != "" {
		content += fmt.Sprintf("domain %s\n", d.Domain)
	}
	if len(d.Search) > 0 {
		content += "search " + joinStrings(d.Search) + "\n"
	}
	for _, ns := range d.Nameservers {
		content += fmt.Sprintf("nameserver %s\n", ns)
	}
	return content
}

func joinStrings(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

// JailNetworkConfig is a jail's `network` manifest block.
type JailNetworkConfig struct {
	Vnet       bool               `toml:"vnet"`
	Bridge     string             `toml:"bridge"`
	Networks   []string           `toml:"networks"`
	IP         string             `toml:"ip"`
	IPCidr     string             `toml:"ip_cidr"`
	Gateway    string             `toml:"gateway"`
	MacAddress string             `toml:"mac_address"`
	VlanID     *uint16            `toml:"vlan_id"`
	DNS        DnsConfig          `toml:"dns"`
}

// JailMountConfig holds a jail's `mount` manifest block (volumes).
// Blackship parses it but does not act on it.
type JailMountConfig struct {
	Volumes []string `toml:"volumes"`
}

// JailDef is a single jail's manifest entry.
type JailDef struct {
	Name        string                   `toml:"name"`
	Path        string                   `toml:"path"`
	Release     string                   `toml:"release"`
	Build       string                   `toml:"build"`
	Jailfile    string                   `toml:"jailfile"`
	Hostname    string                   `toml:"hostname"`
	DependsOn   []string                 `toml:"depends_on"`
	Params      map[string]any           `toml:"params"`
	Network     *JailNetworkConfig       `toml:"network"`
	Mount       *JailMountConfig         `toml:"mount"`
	Hooks       []hooks.Hook             `toml:"hooks"`
	HealthCheck sickbay.Config           `toml:"healthcheck"`
}

// EffectivePath resolves the jail's root directory: an explicit path
// wins, then a ZFS mountpoint under global.Zpool/global.Dataset, then a
// plain directory under global.DataDir.
func (j JailDef) EffectivePath(global GlobalConfig, fullName string) string {
	if j.Path != "" {
		return j.Path
	}
	if global.ZFSEnabled {
		pool := global.Zpool
		if pool == "" {
			pool = "zroot"
		}
		return filepath.Join("/", pool, global.Dataset, "jails", fullName)
	}
	return filepath.Join(global.DataDir, "jails", fullName)
}

// merge applies other on top of j, Docker-Compose style.
func (j JailDef) merge(other JailDef) JailDef {
	merged := j
	merged.Name = other.Name
	if other.Path != "" {
		merged.Path = other.Path
	}
	if other.Release != "" {
		merged.Release = other.Release
	}
	if other.Build != "" {
		merged.Build = other.Build
	}
	if other.Jailfile != "" {
		merged.Jailfile = other.Jailfile
	}
	if other.Hostname != "" {
		merged.Hostname = other.Hostname
	}
	if len(other.DependsOn) > 0 {
		merged.DependsOn = other.DependsOn
	}
	if len(other.Params) > 0 {
		params := make(map[string]any, len(j.Params)+len(other.Params))
		for k, v := range j.Params {
			params[k] = v
		}
		for k, v := range other.Params {
			params[k] = v
		}
		merged.Params = params
	}
	if other.Network != nil {
		merged.Network = other.Network
	}
	if other.Mount != nil {
		merged.Mount = other.Mount
	}
	if len(other.Hooks) > 0 {
		merged.Hooks = other.Hooks
	}
	if other.HealthCheck.Enabled || len(other.HealthCheck.Checks) > 0 {
		merged.HealthCheck = other.HealthCheck
	}
	return merged
}

// Package sys detects the host FreeBSD kernel version to gate
// version-sensitive features such as bridge VLAN filtering.
package sys

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	blackerr "blackship/errors"
)

// ReleaseType identifies the FreeBSD branch a kernel build came from.
type ReleaseType int

const (
	// Current is the -CURRENT development branch.
	Current ReleaseType = iota
	// Stable is the -STABLE maintenance branch.
	Stable
	// Release is an official -RELEASE build.
	Release
	// RC is a release candidate, numbered.
	RC
)

func (r ReleaseType) String() string {
	switch r {
	case Current:
		return "CURRENT"
	case Stable:
		return "STABLE"
	case Release:
		return "RELEASE"
	case RC:
		return "RC"
	default:
		return "UNKNOWN"
	}
}

// OSVersion is a parsed FreeBSD kernel release string.
type OSVersion struct {
	Major       uint8
	Minor       uint8
	Patch       uint8 // 0 if absent; HasPatch reports whether a -pN suffix was present
	HasPatch    bool
	ReleaseType ReleaseType
	RCNumber    uint8 // valid only when ReleaseType == RC
}

// DetectKernel reads the kern.osrelease sysctl and parses it.
//
// Uses the native sysctl(3) interface instead of spawning `uname -r`
// because the result gates which ioctl code paths the network package
// may take, and this is the idiomatic FreeBSD way to read kernel
// metadata without forking a process.
func DetectKernel() (OSVersion, error) {
	release, err := unix.Sysctl("kern.osrelease")
	if err != nil {
		return OSVersion{}, blackerr.Wrap(err, blackerr.ErrInternal, "sysctl kern.osrelease")
	}
	return Parse(strings.TrimRight(release, "\x00"))
}

// Parse parses a FreeBSD version string, e.g. "15.0-RELEASE-p1",
// "16.0-CURRENT", "14.2-STABLE", "15.0-RC2".
func Parse(s string) (OSVersion, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 2 {
		return OSVersion{}, blackerr.New(blackerr.ErrInternal, "parse version", fmt.Sprintf("invalid version format: %s", s))
	}

	nums := strings.SplitN(parts[0], ".", 2)
	if len(nums) != 2 {
		return OSVersion{}, blackerr.New(blackerr.ErrInternal, "parse version", fmt.Sprintf("invalid version number: %s", parts[0]))
	}

	major, err := strconv.ParseUint(nums[0], 10, 8)
	if err != nil {
		return OSVersion{}, blackerr.New(blackerr.ErrInternal, "parse version", fmt.Sprintf("invalid major version: %s", nums[0]))
	}
	minor, err := strconv.ParseUint(nums[1], 10, 8)
	if err != nil {
		return OSVersion{}, blackerr.New(blackerr.ErrInternal, "parse version", fmt.Sprintf("invalid minor version: %s", nums[1]))
	}

	v := OSVersion{Major: uint8(major), Minor: uint8(minor)}

	switch {
	case parts[1] == "CURRENT":
		v.ReleaseType = Current
	case parts[1] == "STABLE":
		v.ReleaseType = Stable
	case parts[1] == "RELEASE":
		v.ReleaseType = Release
	case strings.HasPrefix(parts[1], "RC"):
		v.ReleaseType = RC
		n, err := strconv.ParseUint(strings.TrimPrefix(parts[1], "RC"), 10, 8)
		if err != nil {
			n = 1
		}
		v.RCNumber = uint8(n)
	default:
		return OSVersion{}, blackerr.New(blackerr.ErrInternal, "parse version", fmt.Sprintf("unknown release type: %s", parts[1]))
	}

	if len(parts) > 2 && strings.HasPrefix(parts[2], "p") {
		if n, err := strconv.ParseUint(strings.TrimPrefix(parts[2], "p"), 10, 8); err == nil {
			v.Patch = uint8(n)
			v.HasPatch = true
		}
	}

	return v, nil
}

// SupportsVLANFiltering reports whether if_bridge VLAN filtering is
// available (FreeBSD >= 15.0).
func (v OSVersion) SupportsVLANFiltering() bool {
	return v.Major >= 15
}

// SupportsServiceJails reports whether service jails are available
// (FreeBSD >= 15.0). Not yet consulted by the core; exposed for future
// callers, mirroring the upstream predicate.
func (v OSVersion) SupportsServiceJails() bool {
	return v.Major >= 15
}

// SupportsZFSDataset reports whether the zfs.dataset jail parameter is
// available (FreeBSD >= 15.0). Not yet consulted by the core.
func (v OSVersion) SupportsZFSDataset() bool {
	return v.Major >= 15
}

// RequiresPkgbase reports whether distribution sets have been removed
// in favor of mandatory pkgbase (FreeBSD >= 16.0). Not yet consulted by
// the core.
func (v OSVersion) RequiresPkgbase() bool {
	return v.Major >= 16
}

func (v OSVersion) String() string {
	s := fmt.Sprintf("%d.%d-%s", v.Major, v.Minor, v.ReleaseType)
	if v.ReleaseType == RC {
		s = fmt.Sprintf("%d.%d-RC%d", v.Major, v.Minor, v.RCNumber)
	}
	if v.HasPatch {
		s += fmt.Sprintf("-p%d", v.Patch)
	}
	return s
}

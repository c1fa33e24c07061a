package provision

import (
	"runtime"

	blackerr "blackship/errors"
)

// Arch is a FreeBSD release architecture.
type Arch int

const (
	Amd64 Arch = iota
	Arm64
	I386
)

// CurrentArch maps the running Go architecture to a FreeBSD one.
func CurrentArch() (Arch, error) {
	switch runtime.GOARCH {
	case "amd64":
		return Amd64, nil
	case "arm64":
		return Arm64, nil
	case "386":
		return I386, nil
	default:
		return 0, blackerr.New(blackerr.ErrRelease, "detect architecture", "unsupported architecture: "+runtime.GOARCH)
	}
}

// FreeBSDName is the directory-name form FreeBSD mirrors use.
func (a Arch) FreeBSDName() string {
	switch a {
	case Arm64:
		return "arm64"
	case I386:
		return "i386"
	default:
		return "amd64"
	}
}

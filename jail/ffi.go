// Package jail provides thin typed wrappers around the FreeBSD jail
// syscalls (jail_set/jail_get/jail_remove/jail_attach) and the
// fork+attach+exec helpers used to run commands inside a jail or a
// chroot.
package jail

import (
	"fmt"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"

	blackerr "blackship/errors"
)

// Flags for the jail_set(2)/jail_get(2) syscalls.
type Flags int32

const (
	// FlagCreate requests that the jail be created if it doesn't exist.
	FlagCreate Flags = 0x01
	// FlagUpdate requests that parameters of an existing jail be updated.
	FlagUpdate Flags = 0x02
	// FlagAttach requests that the caller be attached to the jail upon creation.
	FlagAttach Flags = 0x04
	// FlagDying allows getting a jail that is in the process of being removed.
	FlagDying Flags = 0x08
)

const errmsgSize = 256

// iovecBuilder accumulates name/value pairs into the iovec array the
// jail syscalls expect. Each entry is a (nul-terminated name, value
// bytes) pair.
type iovecBuilder struct {
	keep [][]byte // keeps slices alive so their backing arrays aren't GC'd
	iov  []unix.Iovec
}

func (b *iovecBuilder) add(name string, value []byte) {
	key := append([]byte(name), 0)
	b.keep = append(b.keep, key, value)
	b.iov = append(b.iov,
		unix.Iovec{Base: &key[0], Len: uint64(len(key))},
		unix.Iovec{Base: valueBase(value), Len: uint64(len(value))},
	)
}

func valueBase(v []byte) *byte {
	if len(v) == 0 {
		return nil
	}
	return &v[0]
}

func (b *iovecBuilder) ptr() (*unix.Iovec, uint32) {
	if len(b.iov) == 0 {
		return nil, 0
	}
	return &b.iov[0], uint32(len(b.iov))
}

// Create creates a jail rooted at path with the given kernel parameters
// and returns its jid. Parameters are serialized per ParamValue.Bytes.
func Create(path string, params map[string]ParamValue) (int, error) {
	var b iovecBuilder
	for name, value := range params {
		raw, err := value.Bytes()
		if err != nil {
			return 0, blackerr.Wrap(err, blackerr.ErrConfigValidation, "encode jail parameter "+name)
		}
		b.add(name, raw)
	}

	pathBytes := append([]byte(path), 0)
	errmsg := make([]byte, errmsgSize)
	b.add("path", pathBytes)
	b.add("errmsg", errmsg)
	b.add("persist", nil)

	iov, n := b.ptr()
	jid, _, errno := unix.Syscall(unix.SYS_JAIL_SET, uintptr(unsafe.Pointer(iov)), uintptr(n), uintptr(FlagCreate))

	if int32(jid) < 0 {
		if errmsg[0] != 0 {
			return 0, blackerr.New(blackerr.ErrSyscall, "jail_set", cString(errmsg))
		}
		return 0, blackerr.Wrap(errno, blackerr.ErrIO, "jail_set")
	}
	return int(int32(jid)), nil
}

// GetID resolves a jail name to its kernel jid. If name parses as an
// integer it is returned directly, matching jail(8)'s convention of
// accepting either a kernel name or a decimal jid.
func GetID(name string) (int, error) {
	if n, err := strconv.ParseInt(name, 10, 32); err == nil {
		return int(n), nil
	}

	var b iovecBuilder
	nameBytes := append([]byte(name), 0)
	errmsg := make([]byte, errmsgSize)
	b.add("name", nameBytes)
	b.add("errmsg", errmsg)

	iov, n := b.ptr()
	jid, _, errno := unix.Syscall(unix.SYS_JAIL_GET, uintptr(unsafe.Pointer(iov)), uintptr(n), 0)

	if int32(jid) < 0 {
		if errmsg[0] != 0 {
			return 0, blackerr.New(blackerr.ErrSyscall, "jail_get", cString(errmsg))
		}
		return 0, blackerr.Wrap(errno, blackerr.ErrIO, "jail_get")
	}
	return int(int32(jid)), nil
}

// Remove destroys the jail identified by jid, killing all processes
// inside it.
func Remove(jid int) error {
	ret, _, errno := unix.Syscall(unix.SYS_JAIL_REMOVE, uintptr(jid), 0, 0)
	switch int32(ret) {
	case 0:
		return nil
	case -1:
		return blackerr.Wrap(errno, blackerr.ErrIO, "jail_remove")
	default:
		return blackerr.New(blackerr.ErrSyscall, "jail_remove", fmt.Sprintf("jail_remove(%d) failed", jid))
	}
}

// Attach attaches the calling process (or thread) to the jail. This
// must only be called in a forked child: the jail becomes the calling
// process's root context and cannot be left.
func Attach(jid int) error {
	ret, _, errno := unix.Syscall(unix.SYS_JAIL_ATTACH, uintptr(jid), 0, 0)
	if ret != 0 {
		if errno != 0 {
			return blackerr.Wrap(errno, blackerr.ErrSyscall, fmt.Sprintf("jail_attach(%d)", jid))
		}
		return blackerr.New(blackerr.ErrSyscall, "jail_attach", fmt.Sprintf("jail_attach(%d) failed", jid))
	}
	return nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

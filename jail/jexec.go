package jail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	blackerr "blackship/errors"
)

// execHelperArg is the hidden argv[1] that tells a re-exec'd copy of the
// running binary to act as a jail-exec helper rather than the normal
// CLI entrypoint. main.go checks for this before cobra ever sees argv.
const execHelperArg = "__jail_exec_helper"

// chrootHelperArg is the chroot_exec equivalent of execHelperArg.
const chrootHelperArg = "__jail_chroot_helper"

const (
	envExecJid  = "_BLACKSHIP_EXEC_JID"
	envExecArgs = "_BLACKSHIP_EXEC_ARGS"
	envChrootAt = "_BLACKSHIP_CHROOT_PATH"
	envChrootSh = "_BLACKSHIP_CHROOT_CMD"
)

// Exec runs argv inside the jail identified by jid and returns its exit
// code and captured stdout/stderr. A zero timeout means no deadline.
//
// Go's runtime does not support a bare fork(2) safely once a process has
// more than one OS thread running, so unlike jexec(8) (and the syscall
// sequence it wraps) this does not fork in-process. Instead it re-execs
// the running binary with a hidden helper argv; the helper calls Attach
// and then execve's the target command, so the attach happens in a fresh
// single-threaded process rather than through an in-process fork.
func Exec(jid int, argv []string, timeout time.Duration) (int, []byte, []byte, error) {
	if len(argv) == 0 {
		return 0, nil, nil, blackerr.New(blackerr.ErrJailOperation, "jexec", "empty command")
	}

	self, err := os.Executable()
	if err != nil {
		return 0, nil, nil, blackerr.Wrap(err, blackerr.ErrJailOperation, "resolve self executable")
	}

	encoded, err := json.Marshal(argv)
	if err != nil {
		return 0, nil, nil, blackerr.Wrap(err, blackerr.ErrInternal, "encode jexec argv")
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, self, execHelperArg)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", envExecJid, jid),
		fmt.Sprintf("%s=%s", envExecArgs, encoded),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return 0, stdout.Bytes(), stderr.Bytes(),
			blackerr.New(blackerr.ErrJailTimeout, "jexec", fmt.Sprintf("command exceeded %s", timeout))
	}
	if runErr == nil {
		return 0, stdout.Bytes(), stderr.Bytes(), nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), stdout.Bytes(), stderr.Bytes(), nil
	}
	return 0, stdout.Bytes(), stderr.Bytes(), blackerr.Wrap(runErr, blackerr.ErrJailOperation, "jexec")
}

// ExecHelper is the entrypoint for a re-exec'd copy of this binary when
// invoked with execHelperArg as argv[1]. It attaches to the jail named
// by envExecJid and then replaces itself with the requested command.
// main.go must call this before handing argv to the CLI parser.
func ExecHelper() error {
	jid, err := strconv.Atoi(os.Getenv(envExecJid))
	if err != nil {
		return blackerr.Wrap(err, blackerr.ErrInternal, "parse jexec helper jid")
	}

	var argv []string
	if err := json.Unmarshal([]byte(os.Getenv(envExecArgs)), &argv); err != nil || len(argv) == 0 {
		return blackerr.New(blackerr.ErrInternal, "jexec helper", "missing or invalid command")
	}

	if err := Attach(jid); err != nil {
		return err
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return blackerr.Wrap(err, blackerr.ErrJailOperation, "resolve "+argv[0]+" inside jail")
	}
	return unix.Exec(path, argv, os.Environ())
}

// ChrootExec runs a shell command inside a chroot at path with the given
// extra environment variables, returning its exit code and captured
// output. Like Exec, this re-execs the binary rather than raw-forking.
func ChrootExec(path, shellCmd string, env []string) (int, []byte, []byte, error) {
	self, err := os.Executable()
	if err != nil {
		return 0, nil, nil, blackerr.Wrap(err, blackerr.ErrJailOperation, "resolve self executable")
	}

	cmd := exec.Command(self, chrootHelperArg)
	cmd.Env = append(append(os.Environ(), env...),
		fmt.Sprintf("%s=%s", envChrootAt, path),
		fmt.Sprintf("%s=%s", envChrootSh, shellCmd),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr == nil {
		return 0, stdout.Bytes(), stderr.Bytes(), nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), stdout.Bytes(), stderr.Bytes(), nil
	}
	return 0, stdout.Bytes(), stderr.Bytes(), blackerr.Wrap(runErr, blackerr.ErrJailOperation, "chroot exec")
}

// ChrootExecHelper is the entrypoint for a re-exec'd copy of this binary
// when invoked with chrootHelperArg as argv[1]. It chroots into
// envChrootAt, chdirs to "/", and execs /bin/sh -c envChrootSh.
func ChrootExecHelper() error {
	path := os.Getenv(envChrootAt)
	shellCmd := os.Getenv(envChrootSh)
	if path == "" || shellCmd == "" {
		return blackerr.New(blackerr.ErrInternal, "chroot helper", "missing path or command")
	}

	if err := unix.Chroot(path); err != nil {
		return blackerr.Wrap(err, blackerr.ErrSyscall, "chroot "+path)
	}
	if err := unix.Chdir("/"); err != nil {
		return blackerr.Wrap(err, blackerr.ErrSyscall, "chdir / after chroot")
	}

	return unix.Exec("/bin/sh", []string{"/bin/sh", "-c", shellCmd}, os.Environ())
}

// IsExecHelperInvocation reports whether argv (typically os.Args) invokes
// one of the re-exec helpers, and which one.
func IsExecHelperInvocation(argv []string) (helper string, ok bool) {
	if len(argv) < 2 {
		return "", false
	}
	switch argv[1] {
	case execHelperArg:
		return execHelperArg, true
	case chrootHelperArg:
		return chrootHelperArg, true
	default:
		return "", false
	}
}

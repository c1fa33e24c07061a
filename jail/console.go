package jail

import (
	"os"
	"os/exec"
	"strconv"

	"golang.org/x/term"

	blackerr "blackship/errors"
)

// ExecInteractive runs argv inside the jail identified by jid as user,
// with stdio inherited directly from this process. Unlike Exec, which
// re-execs this binary to capture output, this shells out to the real
// jexec(8) utility: jexec already knows how to resolve a login class
// and switch user/group/supplementary groups correctly, which would
// otherwise have to be reimplemented here.
func ExecInteractive(jid int, user string, argv []string) error {
	if len(argv) == 0 {
		return blackerr.New(blackerr.ErrJailOperation, "exec", "empty command")
	}

	args := append([]string{"-u", user, strconv.Itoa(jid)}, argv...)
	cmd := exec.Command("/usr/sbin/jexec", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err == nil {
			defer term.Restore(int(os.Stdin.Fd()), oldState)
		}
	}

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return blackerr.New(blackerr.ErrJailOperation, "exec",
				"command exited with status "+strconv.Itoa(exitErr.ExitCode()))
		}
		return blackerr.Wrap(err, blackerr.ErrJailOperation, "jexec")
	}
	return nil
}

// Console opens an interactive login shell inside the jail identified
// by jid, running as user.
func Console(jid int, user string) error {
	return ExecInteractive(jid, user, []string{"/bin/sh", "-l"})
}

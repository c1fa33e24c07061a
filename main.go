// blackship is a declarative FreeBSD jail orchestrator: docker-compose
// for jails.
package main

import (
	"fmt"
	"os"

	"blackship/cmd"
	"blackship/jail"
)

func main() {
	if helper, ok := jail.IsExecHelperInvocation(os.Args); ok {
		var err error
		switch helper {
		case "__jail_exec_helper":
			err = jail.ExecHelper()
		case "__jail_chroot_helper":
			err = jail.ChrootExecHelper()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

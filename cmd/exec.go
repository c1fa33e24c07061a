package cmd

import (
	"github.com/spf13/cobra"

	"blackship/jail"
)

var execUser string

var execCmd = &cobra.Command{
	Use:                "exec <jail> -- <command> [args...]",
	Short:              "Execute a command in a running jail",
	Args:               cobra.MinimumNArgs(2),
	DisableFlagParsing: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		fleet, err := loadFleet()
		if err != nil {
			return err
		}

		name := args[0]
		command := args[1:]

		jid, err := jail.GetID(fleet.FullName(name))
		if err != nil {
			return cmdErrorf("jail %q is not running", name)
		}

		return jail.ExecInteractive(jid, execUser, command)
	},
}

func init() {
	execCmd.Flags().StringVarP(&execUser, "user", "u", "root", "user to run as inside the jail")
	rootCmd.AddCommand(execCmd)
}

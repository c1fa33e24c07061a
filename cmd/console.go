package cmd

import (
	"github.com/spf13/cobra"

	"blackship/jail"
)

var consoleUser string

var consoleCmd = &cobra.Command{
	Use:   "console <jail>",
	Short: "Open an interactive console in a running jail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fleet, err := loadFleet()
		if err != nil {
			return err
		}

		name := args[0]
		jid, err := jail.GetID(fleet.FullName(name))
		if err != nil {
			return cmdErrorf("jail %q is not running", name)
		}

		return jail.Console(jid, consoleUser)
	},
}

func init() {
	consoleCmd.Flags().StringVarP(&consoleUser, "user", "u", "root", "user to run as inside the jail")
	rootCmd.AddCommand(consoleCmd)
}

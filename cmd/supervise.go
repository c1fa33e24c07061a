package cmd

import (
	"github.com/spf13/cobra"

	"blackship/logging"
	"blackship/warden"
)

var superviseCmd = &cobra.Command{
	Use:   "supervise",
	Short: "Start every jail and supervise it with automatic restart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fleet, err := loadFleet()
		if err != nil {
			return err
		}

		w := warden.New(fleet.RestartJail)
		fleet.SetWarden(w)

		if err := fleet.Up(""); err != nil {
			return err
		}

		logging.Default().Info("supervise: all jails started, entering supervisor loop")
		w.Run(GetContext())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(superviseCmd)
}

package cmd

import "github.com/spf13/cobra"

var restartCmd = &cobra.Command{
	Use:   "restart [jail]",
	Short: "Restart jails",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fleet, err := loadFleet()
		if err != nil {
			return err
		}

		name := jailArg(args)
		if name == "" && !restartAll {
			return cmdErrorf("specify a jail name or pass --all")
		}

		if restartDryRun {
			names, err := fleet.StopOrder()
			if err != nil {
				return err
			}
			for _, n := range names {
				printf("would restart: %s\n", n)
			}
			return nil
		}

		return fleet.Restart(name)
	},
}

var (
	restartAll    bool
	restartDryRun bool
)

func init() {
	restartCmd.Flags().BoolVar(&restartAll, "all", false, "restart every jail")
	restartCmd.Flags().BoolVar(&restartDryRun, "dry-run", false, "show what would be restarted without making changes")
	rootCmd.AddCommand(restartCmd)
}

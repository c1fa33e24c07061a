package cmd

import (
	"github.com/spf13/cobra"
)

var upCmd = &cobra.Command{
	Use:   "up [jail]",
	Short: "Start jails, respecting dependencies",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fleet, err := loadFleet()
		if err != nil {
			return err
		}

		name := jailArg(args)
		if name == "" && !upAll {
			return cmdErrorf("specify a jail name or pass --all")
		}

		if upDryRun {
			names, err := fleet.StartOrder()
			if err != nil {
				return err
			}
			for _, n := range names {
				printf("would start: %s\n", n)
			}
			return nil
		}

		return fleet.Up(name)
	},
}

var (
	upAll    bool
	upDryRun bool
)

func init() {
	upCmd.Flags().BoolVar(&upAll, "all", false, "start every jail")
	upCmd.Flags().BoolVar(&upDryRun, "dry-run", false, "show what would be started without making changes")
	rootCmd.AddCommand(upCmd)
}

package cmd

import "github.com/spf13/cobra"

var downCmd = &cobra.Command{
	Use:   "down [jail]",
	Short: "Stop jails, in reverse dependency order",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fleet, err := loadFleet()
		if err != nil {
			return err
		}

		name := jailArg(args)
		if name == "" && !downAll {
			return cmdErrorf("specify a jail name or pass --all")
		}

		if downDryRun {
			names, err := fleet.StopOrder()
			if err != nil {
				return err
			}
			for _, n := range names {
				printf("would stop: %s\n", n)
			}
			return nil
		}

		return fleet.Down(name)
	},
}

var (
	downAll    bool
	downDryRun bool
)

func init() {
	downCmd.Flags().BoolVar(&downAll, "all", false, "stop every jail")
	downCmd.Flags().BoolVar(&downDryRun, "dry-run", false, "show what would be stopped without making changes")
	rootCmd.AddCommand(downCmd)
}

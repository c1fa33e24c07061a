package cmd

import "github.com/spf13/cobra"

var unexposeCmd = &cobra.Command{
	Use:   "unexpose <jail>",
	Short: "Remove all port forwards for a jail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fleet, err := loadFleet()
		if err != nil {
			return err
		}
		return fleet.Bulkhead().RemoveJailForwards(fleet.FullName(args[0]))
	},
}

func init() {
	rootCmd.AddCommand(unexposeCmd)
}

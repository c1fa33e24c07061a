package cmd

import "github.com/spf13/cobra"

var cleanupForce bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <jail>",
	Short: "Clean up a failed jail, removing any leftover resources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fleet, err := loadFleet()
		if err != nil {
			return err
		}
		return fleet.Cleanup(args[0], cleanupForce)
	},
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "force cleanup even if errors occur")
	rootCmd.AddCommand(cleanupCmd)
}

package cmd

import "github.com/spf13/cobra"

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the manifest and report start order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fleet, err := loadFleet()
		if err != nil {
			return err
		}

		report, err := fleet.Check()
		if err != nil {
			return err
		}

		printf("start order: %v\n", report.StartOrder)
		printf("zfs enabled: %v\n", report.ZFSEnabled)
		for _, p := range report.JailPaths {
			status := "missing"
			if p.Exists {
				status = "exists"
			}
			printf("  %s: %s (%s)\n", p.Name, p.Path, status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

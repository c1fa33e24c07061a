package cmd

import "github.com/spf13/cobra"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize ZFS datasets for jail storage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		if !config.Global.ZFSEnabled {
			return cmdErrorf("zfs_enabled is false in %s, nothing to initialize", globalConfig)
		}

		// Building the Fleet runs zfs.Manager.Init(), creating the base
		// and jails datasets if they don't exist yet.
		if _, err := loadFleet(); err != nil {
			return err
		}

		printf("initialized ZFS datasets under %s/%s\n", config.Global.Zpool, config.Global.Dataset)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

package cmd

import (
	"github.com/spf13/cobra"

	"blackship/bulkhead"
	"blackship/network"
	"blackship/sys"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Provision the host bridge and verify the PF anchor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}

		osVersion, err := sys.DetectKernel()
		if err != nil {
			return err
		}
		printf("host kernel %s\n", osVersion)

		if config.Global.Bridge != nil {
			bridgeCfg := config.Global.Bridge
			bridge, err := network.CreateOrOpenBridge(bridgeCfg.Name)
			if err != nil {
				return err
			}
			printf("bridge %s ready\n", bridge.Name())

			if bridgeCfg.Trunk != nil {
				if len(bridgeCfg.Trunk.Tagged) > 0 && !osVersion.SupportsVLANFiltering() {
					printf("warning: host kernel %s predates if_bridge VLAN filtering (needs 15.0+); tagged vlans %v will not be enforced\n", osVersion, bridgeCfg.Trunk.Tagged)
				}
				if err := bridge.SetTrunk(bridgeCfg.Trunk.Interface, bridgeCfg.Trunk.Tagged, bridgeCfg.Trunk.DisableHWFilter); err != nil {
					return err
				}
				printf("trunk %s attached with tagged vlans %v\n", bridgeCfg.Trunk.Interface, bridgeCfg.Trunk.Tagged)
			}
		}

		if err := bulkhead.Init(); err != nil {
			printf("warning: %v\n", err)
		} else {
			printf("pf anchor ready\n")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

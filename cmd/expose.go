package cmd

import (
	"net/netip"

	"github.com/spf13/cobra"

	"blackship/bulkhead"
)

var (
	exposePort     uint16
	exposeInternal uint16
	exposeProto    string
	exposeBindIP   string
)

var exposeCmd = &cobra.Command{
	Use:   "expose <jail>",
	Short: "Expose a jail port to the host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fleet, err := loadFleet()
		if err != nil {
			return err
		}

		name := args[0]
		jailIP, err := fleet.ResolveJailIP(name)
		if err != nil {
			return err
		}

		internal := exposeInternal
		if internal == 0 {
			internal = exposePort
		}

		var bindIP netip.Addr
		if exposeBindIP != "" {
			bindIP, err = netip.ParseAddr(exposeBindIP)
			if err != nil {
				return cmdErrorf("invalid bind IP %q: %w", exposeBindIP, err)
			}
		}

		forward := bulkhead.Forward{
			ExternalPort: exposePort,
			InternalPort: internal,
			Protocol:     exposeProto,
			JailIP:       jailIP,
			BindIP:       bindIP,
			JailName:     fleet.FullName(name),
		}

		if err := fleet.Bulkhead().AddForward(forward); err != nil {
			return err
		}
		printf("exposed %s:%d -> %s:%d/%s\n", exposeBindIP, exposePort, jailIP, internal, exposeProto)
		return nil
	},
}

func init() {
	exposeCmd.Flags().Uint16VarP(&exposePort, "port", "p", 0, "external port (host-side)")
	exposeCmd.Flags().Uint16VarP(&exposeInternal, "internal", "i", 0, "internal port (jail-side, defaults to external port)")
	exposeCmd.Flags().StringVar(&exposeProto, "proto", "tcp", "protocol (tcp or udp)")
	exposeCmd.Flags().StringVarP(&exposeBindIP, "bind-ip", "I", "", "bind to specific host IP (defaults to all interfaces)")
	exposeCmd.MarkFlagRequired("port")
	rootCmd.AddCommand(exposeCmd)
}

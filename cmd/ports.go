package cmd

import (
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports [jail]",
	Short: "List exposed ports",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fleet, err := loadFleet()
		if err != nil {
			return err
		}

		name := jailArg(args)

		var rows []struct {
			ext, proto, internal, jailIP, bind, jail string
		}

		list := fleet.Bulkhead().ListForwards()
		if name != "" {
			list = fleet.Bulkhead().JailForwards(fleet.FullName(name))
		}
		for _, f := range list {
			bind := "*"
			if f.BindIP.IsValid() {
				bind = f.BindIP.String()
			}
			rows = append(rows, struct {
				ext, proto, internal, jailIP, bind, jail string
			}{
				ext:      itoa(int(f.ExternalPort)),
				proto:    f.Protocol,
				internal: itoa(int(f.InternalPort)),
				jailIP:   f.JailIP.String(),
				bind:     bind,
				jail:     f.JailName,
			})
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		printTo(w, "JAIL\tBIND\tEXTERNAL\tPROTO\tINTERNAL\tJAIL IP\n")
		for _, r := range rows {
			printTo(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.jail, r.bind, r.ext, r.proto, r.internal, r.jailIP)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

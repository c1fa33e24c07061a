package cmd

import (
	"encoding/json"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var psJSON bool

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List jail status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fleet, err := loadFleet()
		if err != nil {
			return err
		}

		statuses := fleet.Ps()

		if psJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(statuses)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		printTo(w, "NAME\tSTATE\tJID\tIP\tPATH\n")
		for _, s := range statuses {
			jid := "-"
			if s.HasID {
				jid = itoa(s.Jid)
			}
			ip := s.IP
			if ip == "" {
				ip = "-"
			}
			printTo(w, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.State, jid, ip, s.Path)
		}
		return w.Flush()
	},
}

func init() {
	psCmd.Flags().BoolVar(&psJSON, "json", false, "output in JSON format")
	rootCmd.AddCommand(psCmd)
}

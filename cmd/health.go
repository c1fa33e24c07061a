package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"blackship/sickbay"
)

var (
	healthWatch    bool
	healthInterval uint64
	healthJSON     bool
)

var healthCmd = &cobra.Command{
	Use:   "health [jail]",
	Short: "Show health check status for one or all jails",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fleet, err := loadFleet()
		if err != nil {
			return err
		}

		name := jailArg(args)

		print := func() {
			statuses := fleet.HealthStatuses()
			if name != "" {
				status, ok := statuses[name]
				if !ok {
					if healthJSON {
						json.NewEncoder(os.Stdout).Encode(map[string]sickbay.Status{})
						return
					}
					printf("%s: no active health checker\n", name)
					return
				}
				statuses = map[string]sickbay.Status{name: status}
			}
			if healthJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				enc.Encode(statuses)
				return
			}
			for jailName, status := range statuses {
				printf("%s: %s\n", jailName, status)
			}
		}

		print()
		if !healthWatch {
			return nil
		}

		ticker := time.NewTicker(time.Duration(healthInterval) * time.Second)
		defer ticker.Stop()
		ctx := GetContext()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				print()
			}
		}
	},
}

func init() {
	healthCmd.Flags().BoolVarP(&healthWatch, "watch", "w", false, "continuously monitor health")
	healthCmd.Flags().Uint64VarP(&healthInterval, "interval", "i", 5, "update interval in seconds for watch mode")
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "output in JSON format")
	rootCmd.AddCommand(healthCmd)
}

package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"blackship/provision"
)

var (
	bootstrapForce    bool
	bootstrapArchives string
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap <release>",
	Short: "Bootstrap a FreeBSD release for jail creation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}

		global := config.Global
		if bootstrapArchives != "" {
			global.BootstrapArchives = strings.Split(bootstrapArchives, ",")
		}

		p, err := provision.FromConfig(global)
		if err != nil {
			return err
		}

		release := args[0]
		path, err := p.Bootstrap(release, bootstrapForce)
		if err != nil {
			return err
		}
		printf("bootstrapped %s at %s\n", release, path)
		return nil
	},
}

func init() {
	bootstrapCmd.Flags().BoolVarP(&bootstrapForce, "force", "f", false, "force re-download even if the release exists")
	bootstrapCmd.Flags().StringVarP(&bootstrapArchives, "archives", "a", "", "comma-separated archives to download (default: base)")
	rootCmd.AddCommand(bootstrapCmd)
}

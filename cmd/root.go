// Package cmd implements the blackship CLI commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"blackship/logging"
	"blackship/manifest"
	"blackship/orchestrator"
)

// Version information, set at build time.
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// Global flags
var (
	globalConfig  string
	globalVerbose bool
	globalLog     string
	globalLogFormat string
	globalDebug   bool
)

// rootCmd is the base command for blackship.
var rootCmd = &cobra.Command{
	Use:   "blackship",
	Short: "Declarative FreeBSD jail orchestrator",
	Long: `Blackship orchestrates FreeBSD jails from a declarative manifest,
the way docker-compose orchestrates containers: it resolves start
order from jail dependencies, provisions each jail's filesystem,
wires up VNET networking and port forwarding, runs lifecycle hooks,
and supervises jail health with automatic restart.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetContext returns a context that cancels on SIGINT/SIGTERM.
func GetContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalConfig, "config", "c", "blackship.toml", "manifest file path")
	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&globalLog, "log", "", "set the log file path")
	rootCmd.PersistentFlags().StringVar(&globalLogFormat, "log-format", "text", "set the format for log output (text or json)")
	rootCmd.PersistentFlags().BoolVar(&globalDebug, "debug", false, "enable debug logging")
}

func setupLogging() {
	logOutput := os.Stderr
	if globalLog != "" {
		f, err := os.OpenFile(globalLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err == nil {
			logOutput = f
		}
	}

	logLevel := slog.LevelInfo
	if globalDebug || globalVerbose {
		logLevel = slog.LevelDebug
	}

	logger := logging.NewLogger(logging.Config{
		Level:  logLevel,
		Format: globalLogFormat,
		Output: logOutput,
	})
	logging.SetDefault(logger)
}

// loadConfig loads and validates the manifest at the --config path.
func loadConfig() (manifest.Config, error) {
	config, err := manifest.Load(globalConfig)
	if err != nil {
		return manifest.Config{}, err
	}
	if err := config.Validate(); err != nil {
		return manifest.Config{}, err
	}
	return *config, nil
}

// loadFleet loads the manifest and builds an orchestrator.Fleet from it.
func loadFleet() (*orchestrator.Fleet, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	fleet, err := orchestrator.New(config)
	if err != nil {
		return nil, err
	}
	return fleet.Verbose(globalVerbose), nil
}

// jailArg extracts an optional single jail-name positional argument.
func jailArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func printf(format string, a ...any) {
	fmt.Fprintf(os.Stdout, format, a...)
}

func cmdErrorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

func printTo(w io.Writer, format string, a ...any) {
	fmt.Fprintf(w, format, a...)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

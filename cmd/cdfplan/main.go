package main

import (
	"os"

	"github.com/spf13/cobra"

	"cdfplan/internal/config"
	"cdfplan/internal/ics"
	appLog "cdfplan/internal/log"
)

const version = "0.1.0"

// rootFlags holds flags shared by every subcommand.
type rootFlags struct {
	configPath string
	debug      bool
}

var flags rootFlags

var rootCmd = &cobra.Command{
	Use:   "cdfplan",
	Short: "Host for the Coupe de France volunteer planning App",
	Long: `cdfplan serves the volunteer planning App, persists its mission and
team selections, prints the planning and exports shifts as iCalendar files.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flags.debug {
			appLog.SetLevel(appLog.LevelDebug)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "/etc/cdfplan/config.yaml", "Path to config file (.yaml or .toml)")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd(), newExportCmd(), newInspectCmd())
}

func main() {
	defer appLog.Sync()

	if err := rootCmd.Execute(); err != nil {
		appLog.Sync()
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config.
func loadConfig() (*config.Config, error) {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return nil, err
	}
	return conf, nil
}

// newGenerator builds the calendar generator from config.
func newGenerator(conf *config.Config) ics.Generator {
	return ics.Generator{
		ProductID:   conf.Calendar.ProductID,
		FallbackDay: conf.FallbackDay(),
	}
}

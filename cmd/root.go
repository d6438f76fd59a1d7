package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"dupfinder/config"
	"dupfinder/logging"
	"dupfinder/similarity"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dupfinder",
	Short: "Find duplicate and near-duplicate images in a folder",
	Long: `dupfinder compares every image of a folder with every other one and groups
the images that look alike, even when they were resized, recompressed or
slightly edited.

Two algorithms are available: a fast colour histogram comparison and a slower
ORB feature comparison that is robust against crops and colour changes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if mustGetBool(cmd, "debug") {
			cfg.Log.Level = "debug"
		}
		logging.SetLevel(cfg.Log.Level)

		logFile := stringOr(cmd, "log-file", cfg.Log.File)
		if logFile == "" {
			return nil
		}
		if err := logging.SetupLogger(logFile); err != nil {
			return err
		}
		cfg.Log.File = logFile
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseLogger()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logging.CloseLogger()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("log-file", "", "Write the log to this file instead of stderr")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("tuning-file", "", "YAML file replacing the built-in tuning profiles")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
	cfg = config.Load()
}

// loadTuning resolves the tuning profile from flags and configuration
func loadTuning(cmd *cobra.Command) (similarity.Tuning, error) {
	set, err := similarity.LoadTuningSet(stringOr(cmd, "tuning-file", cfg.Analysis.TuningFile))
	if err != nil {
		return similarity.Tuning{}, err
	}
	name := cfg.Analysis.Tuning
	if cmd.Flags().Lookup("tuning") != nil {
		name = stringOr(cmd, "tuning", name)
	}
	return set.Profile(name)
}

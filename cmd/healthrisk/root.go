package main

import (
	"healthrisk/internal/cfg"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "healthrisk",
	Short:        "Clinical risk scoring service",
	Long:         "healthrisk serves per-condition risk scores (diabetes, heart disease, respiratory, blood pressure) from trained classifiers.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (overrides CONFIG_FILE env var)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(conditionsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadSettings reads configuration from --config when given, otherwise from
// CONFIG_FILE or the environment.
func loadSettings(cmd *cobra.Command) (cfg.Settings, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return cfg.LoadFile(p)
	}
	return cfg.Load()
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "emotrack",
	Short: "Multi-timescale emotional profiles from chat messages",
	Long: `emotrack analyses English, Hindi and Hinglish chat messages, dates the events
they talk about, and keeps a short, mid and long term emotional profile for
every user.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
}

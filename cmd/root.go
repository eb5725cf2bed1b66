package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ConfabulousDev/confab-insights/internal/config"
	"github.com/ConfabulousDev/confab-insights/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "confab-insights",
	Short: "Turn finished coding sessions into structured learning records",
	Long: `confab-insights analyzes completed AI coding-assistant sessions. It extracts
quantitative metrics from the session event log, optionally asks a language
model for a qualitative review, and stores one JSON record per session under
~/.confab/insights/sessions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Until Init succeeds logs go to stderr, never stdout
		if err := logger.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: logging to stderr: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		fmt.Sprintf("config file (default ~/.confab/insights/config.yaml, or $%s)", config.ConfigPathEnv))
}

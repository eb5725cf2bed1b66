package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ConfabulousDev/confab-insights/internal/config"
	"github.com/ConfabulousDev/confab-insights/internal/logger"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Add the SessionEnd hook to Claude Code settings",
	Long:  `Registers 'confab-insights hook session-end' as a SessionEnd hook in ~/.claude/settings.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		binary, err := config.GetBinaryPath()
		if err != nil {
			return err
		}
		if err := config.InstallHook(binary); err != nil {
			logger.Error("failed to install hook", "error", err)
			return fmt.Errorf("failed to install hook: %w", err)
		}

		settingsPath, _ := config.GetClaudeSettingsPath()
		logger.Info("hook installed", "settings", settingsPath, "command", config.HookCommand(binary))
		fmt.Fprintf(cmd.OutOrStdout(), "✓ SessionEnd hook added to %s\n", settingsPath)
		fmt.Fprintln(cmd.OutOrStdout(), "Finished sessions will be analyzed in the background.")
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the SessionEnd hook from Claude Code settings",
	Long:  `Removes our SessionEnd hook from ~/.claude/settings.json. Stored records are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UninstallHook(); err != nil {
			logger.Error("failed to uninstall hook", "error", err)
			return fmt.Errorf("failed to uninstall hook: %w", err)
		}

		settingsPath, _ := config.GetClaudeSettingsPath()
		logger.Info("hook removed", "settings", settingsPath)
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Hook removed from %s\n", settingsPath)
		fmt.Fprintln(cmd.OutOrStdout(), "Your insight records remain in place.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
}

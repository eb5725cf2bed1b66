package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ConfabulousDev/confab-insights/internal/config"
	"github.com/ConfabulousDev/confab-insights/internal/insight"
	"github.com/ConfabulousDev/confab-insights/internal/logger"
	"github.com/ConfabulousDev/confab-insights/internal/worker"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hook installation, stored records and running workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()
		out := cmd.OutOrStdout()

		installed, err := config.IsHookInstalled()
		switch {
		case err != nil:
			fmt.Fprintf(out, "Hook:      ? (%v)\n", err)
		case installed:
			fmt.Fprintln(out, "Hook:      ✓ Installed")
		default:
			fmt.Fprintln(out, "Hook:      ✗ Not installed (run 'confab-insights install')")
		}

		if a.cfg.APIKey != "" {
			fmt.Fprintf(out, "Provider:  %s (%s mode)\n", a.cfg.Provider.Model, a.cfg.SessionLearning.LLMAnalysisMode)
		} else {
			fmt.Fprintf(out, "Provider:  none, metrics only (set %s)\n", config.APIKeyEnv)
		}

		ids, err := a.store.IDs()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Records:   %d in %s\n", len(ids), a.store.Root())
		if idx := a.openIndex(); idx != nil {
			if counts, err := idx.OutcomeCounts(cmd.Context()); err == nil {
				printOutcomeCounts(out, counts)
			}
		}

		workers, err := worker.List(a.paths.WorkersDir(), true)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Workers:   %d running\n", len(workers))
		for _, w := range workers {
			fmt.Fprintf(out, "  %s  pid %d, started %s\n", shortID(w.SessionID), w.PID, humanize.Time(w.StartedAt))
		}

		if path := logger.Path(); path != "" {
			fmt.Fprintf(out, "Log:       %s\n", path)
		}
		fmt.Fprintf(out, "Config:    %s\n", a.configFile)
		return nil
	},
}

func printOutcomeCounts(w io.Writer, counts map[insight.Outcome]int) {
	outcomes := make([]string, 0, len(counts))
	for o := range counts {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(w, "  %-8s %d\n", o, counts[insight.Outcome(o)])
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ConfabulousDev/confab-insights/internal/insight"
	"github.com/ConfabulousDev/confab-insights/internal/sampler"
	"github.com/ConfabulousDev/confab-insights/internal/store"
)

var (
	listOutcome string
	listTag     string
	listSince   string
	listLimit   int
	listJSON    bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent insight records",
	Long: `Lists records from the local index, newest first.

Examples:
  confab-insights list
  confab-insights list --outcome blocked --since 7d
  confab-insights list --tag refactor --limit 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := listFilter(time.Now())
		if err != nil {
			return err
		}
		idx, err := a.requireIndex()
		if err != nil {
			return err
		}
		entries, err := idx.Query(cmd.Context(), f)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if listJSON {
			if entries == nil {
				entries = []store.Entry{}
			}
			return writeJSON(out, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "No insights found.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tWHEN\tOUTCOME\tTURNS\tDURATION\tTOKENS\tSUMMARY")
		for _, e := range entries {
			summary := e.Summary
			if summary == "" && !e.HasAnalysis {
				summary = "(metrics only)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
				shortID(e.SessionID),
				humanize.Time(e.GeneratedAt),
				e.Outcome,
				e.TurnCount,
				formatDuration(e.DurationSeconds),
				humanize.Comma(e.TotalTokens),
				sampler.TruncateWords(strings.ReplaceAll(summary, "\n", " "), 60, "..."))
		}
		return tw.Flush()
	},
}

func listFilter(now time.Time) (store.Filter, error) {
	f := store.Filter{Tag: listTag, Limit: listLimit}
	if listOutcome != "" {
		f.Outcome = insight.Outcome(listOutcome)
		if !f.Outcome.Valid() {
			return f, fmt.Errorf("invalid outcome %q (success, partial, blocked, unknown)", listOutcome)
		}
	}
	since, err := store.ParseSince(listSince, now)
	if err != nil {
		return f, err
	}
	f.Since = since
	return f, nil
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&listOutcome, "outcome", "", "only records with this outcome")
	f.StringVar(&listTag, "tag", "", "only records carrying this tag")
	f.StringVar(&listSince, "since", "", "only records generated since (7d, 12h, 2025-06-01)")
	f.IntVar(&listLimit, "limit", 20, "maximum records to show (0 for all)")
	f.BoolVar(&listJSON, "json", false, "print entries as JSON")
	rootCmd.AddCommand(listCmd)
}

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ConfabulousDev/confab-insights/internal/config"
	"github.com/ConfabulousDev/confab-insights/internal/discovery"
	"github.com/ConfabulousDev/confab-insights/internal/eventlog"
	"github.com/ConfabulousDev/confab-insights/internal/insight"
	"github.com/ConfabulousDev/confab-insights/internal/pipeline"
)

var (
	analyzeSave        bool
	analyzeSessionDir  string
	analyzeTranscript  string
	analyzeNoLLM       bool
	analyzeJSON        bool
	analyzeVerbose     bool
	analyzeIncludeTips bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [session-id]",
	Short: "Analyze a session now and print the result",
	Long: `Runs the pipeline synchronously for one session, which may still be in
progress. Minimum turn and duration thresholds and the already-analyzed
check do not apply. Nothing is written unless --save is given.

The session is found by full or prefix id under ~/.claude/projects, or
given directly with --session-dir or --transcript.

Examples:
  confab-insights analyze 3f2a91c0
  confab-insights analyze --session-dir ./session --save
  confab-insights analyze --transcript ~/.claude/projects/x/abc.jsonl --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sig, err := resolveSignal(args)
		if err != nil {
			return err
		}

		p, err := a.newPipeline()
		if err != nil {
			return err
		}
		res, err := p.Run(cmd.Context(), sig, pipeline.Options{
			OnDemand:      true,
			Save:          analyzeSave,
			NoLLM:         analyzeNoLLM,
			HeuristicTips: analyzeIncludeTips,
		})
		if err != nil {
			return err
		}
		if res.Record == nil {
			return fmt.Errorf("analysis failed: %w", res.Err)
		}

		out := cmd.OutOrStdout()
		if analyzeJSON {
			return writeJSON(out, analyzeOutput{
				SessionInsight: res.Record,
				Assessment:     insight.Assess(res.Record.Metrics),
				CostUSD:        res.Record.Metrics.Cost().StringFixed(4),
				Saved:          res.Saved,
			})
		}

		printRecord(out, res.Record, analyzeVerbose)
		fmt.Fprintln(out)
		if res.Degraded {
			fmt.Fprintf(out, "Qualitative analysis unavailable (%s)\n", pipeline.Kind(res.Err))
		} else if res.Decision.Tier != pipeline.Full {
			fmt.Fprintf(out, "Metrics only: %s\n", res.Decision.Reason)
		}
		if res.Truncated {
			fmt.Fprintln(out, "Note: event log was longer than max_events_to_process; metrics cover the first part only.")
		}
		if res.Saved {
			fmt.Fprintf(out, "Saved to %s\n", res.Path)
		} else if analyzeSave && res.Err != nil {
			return fmt.Errorf("failed to save: %w", res.Err)
		}
		return nil
	},
}

type analyzeOutput struct {
	*insight.SessionInsight
	Assessment insight.Assessment `json:"assessment"`
	CostUSD    string             `json:"estimated_cost_usd"`
	Saved      bool               `json:"saved"`
}

// resolveSignal builds a signal from --session-dir, --transcript or a
// discovered session id prefix
func resolveSignal(args []string) (pipeline.Signal, error) {
	var id string
	if len(args) > 0 {
		id = args[0]
	}

	switch {
	case analyzeSessionDir != "":
		if id == "" {
			id = eventlog.FromSessionDir(analyzeSessionDir).Metadata.SessionID
		}
		if id == "" {
			abs, err := filepath.Abs(analyzeSessionDir)
			if err != nil {
				return pipeline.Signal{}, err
			}
			id = filepath.Base(abs)
		}
		return pipeline.Signal{SessionID: id, SessionDir: analyzeSessionDir, Reason: "manual"}, nil

	case analyzeTranscript != "":
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(analyzeTranscript), filepath.Ext(analyzeTranscript))
		}
		return pipeline.Signal{SessionID: id, TranscriptPath: analyzeTranscript, Reason: "manual"}, nil
	}

	if id == "" {
		return pipeline.Signal{}, errors.New("a session id, --session-dir or --transcript is required")
	}
	projects, err := config.GetProjectsDir()
	if err != nil {
		return pipeline.Signal{}, err
	}
	info, err := discovery.Find(projects, id)
	if err != nil {
		return pipeline.Signal{}, err
	}
	if _, err := os.Stat(info.TranscriptPath); err != nil {
		return pipeline.Signal{}, fmt.Errorf("failed to read transcript: %w", err)
	}
	return pipeline.Signal{SessionID: info.SessionID, TranscriptPath: info.TranscriptPath, Reason: "manual"}, nil
}

func init() {
	f := analyzeCmd.Flags()
	f.BoolVar(&analyzeSave, "save", false, "persist the result as the session's record")
	f.StringVar(&analyzeSessionDir, "session-dir", "", "native session directory (events.jsonl, transcript.jsonl)")
	f.StringVar(&analyzeTranscript, "transcript", "", "Claude Code transcript file")
	f.BoolVar(&analyzeNoLLM, "no-llm", false, "metrics only, no provider call")
	f.BoolVar(&analyzeJSON, "json", false, "print the record as JSON")
	f.BoolVarP(&analyzeVerbose, "verbose", "v", false, "include tool breakdown and assessment")
	f.BoolVar(&analyzeIncludeTips, "include-tips", false, "add heuristic tips when there is no qualitative analysis")
	analyzeCmd.MarkFlagsMutuallyExclusive("session-dir", "transcript")
	rootCmd.AddCommand(analyzeCmd)
}

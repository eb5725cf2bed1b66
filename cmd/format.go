package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ConfabulousDev/confab-insights/internal/insight"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// shortID is the first 8 characters, the way sessions are referred to in
// human output
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	if d < time.Minute {
		return d.String()
	}
	return d.Round(time.Minute).String()
}

// printRecord renders a record for a terminal. verbose adds the tool
// breakdown and the heuristic assessment.
func printRecord(w io.Writer, rec *insight.SessionInsight, verbose bool) {
	m := rec.Metrics

	fmt.Fprintf(w, "Session %s  (%s)\n", rec.SessionID, rec.Outcome)
	fmt.Fprintf(w, "Generated %s, privacy %s\n", humanize.Time(rec.GeneratedAt), rec.PrivacyLevel)
	fmt.Fprintln(w)

	if rec.Summary != "" {
		fmt.Fprintln(w, rec.Summary)
		fmt.Fprintln(w)
	} else if !rec.HasAnalysis {
		fmt.Fprintln(w, "(metrics only, no qualitative analysis)")
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Metrics:")
	fmt.Fprintf(w, "  Duration:  %s over %d turns\n", formatDuration(m.DurationSeconds), m.TurnCount)
	fmt.Fprintf(w, "  Tools:     %s calls\n", humanize.Comma(int64(m.TotalToolCalls())))
	fmt.Fprintf(w, "  Files:     %d read, %d modified\n", m.FilesReadCount, m.FilesModifiedCount)
	fmt.Fprintf(w, "  Errors:    %d\n", m.ErrorsEncountered)
	fmt.Fprintf(w, "  Tokens:    %s (%s in / %s out)\n",
		humanize.Comma(m.TotalTokens), humanize.Comma(m.TotalInputTokens), humanize.Comma(m.TotalOutputTokens))
	if m.ModelUsed != "" {
		fmt.Fprintf(w, "  Model:     %s (est. $%s)\n", m.ModelUsed, m.Cost().StringFixed(4))
	}

	printList(w, "What went well", rec.WhatWentWell)
	printList(w, "Areas to improve", rec.AreasToImprove)
	printList(w, "Tips for future sessions", rec.TipsForFuture)
	if len(rec.Tags) > 0 {
		fmt.Fprintf(w, "\nTags: %s\n", strings.Join(rec.Tags, ", "))
	}

	if !verbose {
		return
	}
	if top := insight.TopTools(m.ToolUsage, 10); len(top) > 0 {
		fmt.Fprintln(w, "\nTop tools:")
		for _, t := range top {
			fmt.Fprintf(w, "  %-16s %d\n", t.Name, t.Calls)
		}
	}
	if len(m.FilesModified) > 0 {
		fmt.Fprintln(w, "\nFiles modified:")
		for _, f := range m.FilesModified {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	a := insight.Assess(m)
	fmt.Fprintf(w, "\nPace: %s (%s)\n", a.Pace, a.PaceNote)
	fmt.Fprintf(w, "Tool intensity: %s (%.1f per turn)\n", a.ToolIntensity, a.ToolsPerTurn)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

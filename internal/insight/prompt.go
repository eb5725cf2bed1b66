package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ConfabulousDev/confab-insights/internal/metrics"
	"github.com/ConfabulousDev/confab-insights/internal/sampler"
)

const (
	topToolsInPrompt = 10
	filesInPrompt    = 10
)

// Prompt is what crosses the process boundary to the provider
type Prompt struct {
	System string
	User   string
}

const systemPrompt = `You analyze coding assistant sessions to extract learning insights that help the user improve their workflow. Respond with JSON only, no markdown and no explanation.`

const guidelines = `<guidelines>
SUMMARY (2-3 sentences): the primary goal of the session and whether it was accomplished.

OUTCOME, one of:
- "success": task completed
- "partial": some progress, incomplete, or the user switched tasks
- "blocked": stopped by errors or missing information
- "unknown": not enough evidence

WHAT_WENT_WELL (2-4 items): effective tool use, good decomposition, efficient information gathering.
AREAS_TO_IMPROVE (2-4 items): inefficient patterns, missed opportunities, better approaches.
TIPS_FOR_FUTURE (2-3 items): specific, actionable advice based on this session.
TAGS (3-5 lowercase keywords): task type, technologies, observed patterns.
</guidelines>

Respond with exactly this JSON shape:
{
  "summary": "...",
  "outcome": "success|partial|blocked|unknown",
  "what_went_well": ["..."],
  "areas_to_improve": ["..."],
  "tips_for_future": ["..."],
  "tags": ["..."]
}`

// BuildPrompt renders sanitized metrics and the conversation sample.
// The modified-files list is included only when withPaths is set.
func BuildPrompt(sessionID string, m metrics.SessionMetrics, sample string, withPaths bool) Prompt {
	var b strings.Builder

	b.WriteString("<session_metrics>\n")
	fmt.Fprintf(&b, "Session ID: %s\n", shortID(sessionID))
	fmt.Fprintf(&b, "Duration: %.1f minutes\n", m.DurationSeconds/60)
	fmt.Fprintf(&b, "Turns: %d\n", m.TurnCount)
	model := m.ModelUsed
	if model == "" {
		model = "unknown"
	}
	fmt.Fprintf(&b, "Model: %s\n\n", model)

	b.WriteString("Tool Usage:\n")
	tools := TopTools(m.ToolUsage, topToolsInPrompt)
	if len(tools) == 0 {
		b.WriteString("  (no tools used)\n")
	}
	for _, t := range tools {
		fmt.Fprintf(&b, "  - %s: %d\n", t.Name, t.Calls)
	}

	fmt.Fprintf(&b, "\nFiles Read: %d\n", m.FilesReadCount)
	fmt.Fprintf(&b, "Files Modified: %d\n", m.FilesModifiedCount)
	if withPaths && len(m.FilesModified) > 0 {
		shown := m.FilesModified
		if len(shown) > filesInPrompt {
			shown = shown[:filesInPrompt]
		}
		fmt.Fprintf(&b, "Modified: %s", strings.Join(shown, ", "))
		if extra := len(m.FilesModified) - len(shown); extra > 0 {
			fmt.Fprintf(&b, " (+%d more)", extra)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nErrors Encountered: %d\n", m.ErrorsEncountered)
	fmt.Fprintf(&b, "Token Usage: %s input, %s output\n",
		humanize.Comma(m.TotalInputTokens), humanize.Comma(m.TotalOutputTokens))
	b.WriteString("</session_metrics>\n\n")

	b.WriteString("<conversation_sample>\n")
	b.WriteString(sample)
	b.WriteString("\n</conversation_sample>\n\n")
	b.WriteString(guidelines)

	return Prompt{System: systemPrompt, User: b.String()}
}

// Len is the number of bytes sent to the provider
func (p Prompt) Len() int { return len(p.System) + len(p.User) }

// FitPrompt builds the prompt and, when it exceeds budget bytes, shortens
// the sample by the overflow, then drops the modified-files list. The
// metrics block and guidelines are never cut.
func FitPrompt(sessionID string, m metrics.SessionMetrics, sample string, withPaths bool, budget int) Prompt {
	prompt := BuildPrompt(sessionID, m, sample, withPaths)
	if budget <= 0 || prompt.Len() <= budget {
		return prompt
	}
	if withPaths && BuildPrompt(sessionID, m, "", true).Len() > budget {
		withPaths = false
	}
	overhead := BuildPrompt(sessionID, m, "", withPaths).Len()
	sample = sampler.TruncateWords(sample, max(budget-overhead, 0), "")
	return BuildPrompt(sessionID, m, sample, withPaths)
}

// ToolCount is one entry of a ranked tool list
type ToolCount struct {
	Name  string `json:"tool"`
	Calls int    `json:"calls"`
}

// TopTools ranks usage by call count, ties broken by name
func TopTools(usage map[string]int, n int) []ToolCount {
	out := make([]ToolCount, 0, len(usage))
	for name, calls := range usage {
		out = append(out, ToolCount{Name: name, Calls: calls})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Calls != out[j].Calls {
			return out[i].Calls > out[j].Calls
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

package insight

import (
	"fmt"
	"math"
	"strings"

	"github.com/ConfabulousDev/confab-insights/internal/metrics"
)

// Assessment is a heuristic reading of metrics, no provider involved
type Assessment struct {
	Pace          string  `json:"pace"`
	PaceNote      string  `json:"pace_note"`
	ToolIntensity string  `json:"tool_intensity"`
	ToolsPerTurn  float64 `json:"tools_per_turn"`
}

// Assess classifies pace by minutes per turn and tool intensity by calls
// per turn.
func Assess(m metrics.SessionMetrics) Assessment {
	var a Assessment
	turns := m.TurnCount
	calls := m.TotalToolCalls()

	switch {
	case m.DurationSeconds <= 0 || turns <= 0:
		a.Pace, a.PaceNote = "unknown", "Not enough data"
	case minutesPerTurn(m) < 1:
		a.Pace, a.PaceNote = "fast", "Quick back-and-forth exchanges"
	case minutesPerTurn(m) < 3:
		a.Pace, a.PaceNote = "moderate", "Balanced conversation pace"
	default:
		a.Pace, a.PaceNote = "deliberate", "Taking time on each exchange"
	}

	perTurn := float64(calls) / float64(max(turns, 1))
	switch {
	case turns <= 0 || calls <= 0:
		a.ToolIntensity = "minimal"
	case perTurn > 3:
		a.ToolIntensity = "high"
	case perTurn > 1:
		a.ToolIntensity = "moderate"
	default:
		a.ToolIntensity = "low"
	}
	a.ToolsPerTurn = math.Round(perTurn*10) / 10
	return a
}

func minutesPerTurn(m metrics.SessionMetrics) float64 {
	return m.DurationSeconds / 60 / float64(m.TurnCount)
}

// toolCalls sums usage across the native and Claude Code spellings of a tool
func toolCalls(usage map[string]int, names ...string) int {
	total := 0
	for tool, n := range usage {
		for _, name := range names {
			if strings.EqualFold(tool, name) {
				total += n
			}
		}
	}
	return total
}

// Tips derives rule-based advice from metrics. It never returns an empty
// list.
func Tips(m metrics.SessionMetrics) []string {
	var tips []string

	if m.DurationSeconds > 7200 {
		tips = append(tips, "Long session! Consider taking a break or summarizing progress.")
	}
	if bash := toolCalls(m.ToolUsage, "bash"); bash > 20 {
		tips = append(tips, fmt.Sprintf("Heavy bash usage (%d calls): specialized tools may fit some of these tasks.", bash))
	}
	if reads := toolCalls(m.ToolUsage, "read_file", "read"); reads > 30 {
		tips = append(tips, fmt.Sprintf("Many file reads (%d): grep or glob might find things faster.", reads))
	}
	todos := toolCalls(m.ToolUsage, "todo", "todowrite")
	if todos == 0 && m.TurnCount > 15 {
		tips = append(tips, "Consider using a todo list to track progress on complex tasks.")
	}
	if todos > 10 {
		tips = append(tips, "Great job using todo to stay organized!")
	}
	if m.TurnCount > 0 && m.DurationSeconds > 0 && minutesPerTurn(m) > 5 {
		tips = append(tips, "Responses taking a while: try smaller, focused requests.")
	}

	if len(tips) == 0 {
		tips = append(tips, "Session looks good! Keep up the focused work.")
	}
	return tips
}

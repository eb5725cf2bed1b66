package sampler

import (
	"fmt"
	"strings"
	"testing"
	"unicode"

	"github.com/ConfabulousDev/confab-insights/internal/eventlog"
)

func makeTurns(n int, words int) []eventlog.Turn {
	turns := make([]eventlog.Turn, n)
	for i := range turns {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		var parts []string
		for w := 0; w < words; w++ {
			parts = append(parts, fmt.Sprintf("turn%dword%d", i, w))
		}
		turns[i] = eventlog.Turn{Role: role, Text: strings.Join(parts, " ")}
	}
	return turns
}

func TestSample_Empty(t *testing.T) {
	if got := Sample(nil, DefaultOptions()); got != NoContent {
		t.Errorf("Sample(nil) = %q", got)
	}
}

func TestSample_ShortConversationHasNoMiddle(t *testing.T) {
	got := Sample(makeTurns(3, 3), DefaultOptions())
	if !strings.Contains(got, headerOpening) {
		t.Errorf("missing opening section:\n%s", got)
	}
	if strings.Contains(got, headerMiddle) || strings.Contains(got, headerRecent) {
		t.Errorf("3 turns should only produce an opening section:\n%s", got)
	}
	if !strings.HasSuffix(got, "[Total: 3 messages]") {
		t.Errorf("missing footer:\n%s", got)
	}
}

func TestSample_SectionsInOrder(t *testing.T) {
	got := Sample(makeTurns(40, 2), DefaultOptions())

	iOpen := strings.Index(got, headerOpening)
	iMid := strings.Index(got, headerMiddle)
	iRecent := strings.Index(got, headerRecent)
	if iOpen < 0 || iMid < 0 || iRecent < 0 || !(iOpen < iMid && iMid < iRecent) {
		t.Fatalf("sections missing or out of order:\n%s", got)
	}

	// First 4 turns open, last 6 close
	opening := got[iOpen:iMid]
	for i := 0; i < 4; i++ {
		if !strings.Contains(opening, fmt.Sprintf("turn%dword0", i)) {
			t.Errorf("opening missing turn %d", i)
		}
	}
	recent := got[iRecent:]
	for i := 34; i < 40; i++ {
		if !strings.Contains(recent, fmt.Sprintf("turn%dword0", i)) {
			t.Errorf("recent missing turn %d", i)
		}
	}
	// Three samples from the middle region [4, 34)
	middle := got[iMid:iRecent]
	if c := strings.Count(middle, "\n["); c != 3 {
		t.Errorf("middle has %d turns, want 3:\n%s", c, middle)
	}
}

func TestSample_BoundedLargeTranscript(t *testing.T) {
	opts := DefaultOptions()
	got := Sample(makeTurns(500, 200), opts)

	if len(got) > 8000 {
		t.Fatalf("excerpt length %d exceeds 8000", len(got))
	}
	last, _ := lastRune(got)
	if unicode.IsLetter(last) || unicode.IsDigit(last) {
		// ending on a letter is only OK if the final token is complete
		if !strings.HasSuffix(got, "messages]") {
			t.Errorf("excerpt ends mid-word: %q", got[len(got)-40:])
		}
	}
	if !strings.Contains(got, "turn499word0") {
		t.Error("most recent turn was dropped")
	}
}

func TestSample_TightBudgetCutsMiddleThenOpening(t *testing.T) {
	turns := makeTurns(60, 30)
	opts := Options{MaxChars: 1200, OpeningTurns: 4, RecentTurns: 2, MiddleSamples: 3, PerTurnChars: 300}

	got := Sample(turns, opts)
	if len(got) > opts.MaxChars {
		t.Fatalf("length %d exceeds budget %d", len(got), opts.MaxChars)
	}
	if strings.Contains(got, headerMiddle) {
		t.Errorf("middle should be cut before anything else:\n%s", got)
	}
	if !strings.Contains(got, "turn59word0") || !strings.Contains(got, "turn58word0") {
		t.Errorf("recent turns must survive:\n%s", got)
	}
	// Oldest opening turns are dropped first
	if strings.Contains(got, "turn0word0") && !strings.Contains(got, "turn3word0") {
		t.Errorf("opening cut from the wrong end:\n%s", got)
	}
}

func TestMiddleIndices(t *testing.T) {
	tests := []struct {
		lo, hi, k int
		want      []int
	}{
		{4, 34, 3, []int{11, 19, 26}},
		{4, 6, 3, []int{4, 5}},
		{4, 4, 3, nil},
		{0, 100, 0, nil},
	}
	for _, tt := range tests {
		got := middleIndices(tt.lo, tt.hi, tt.k)
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("middleIndices(%d,%d,%d) = %v, want %v", tt.lo, tt.hi, tt.k, got, tt.want)
		}
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		limit  int
		suffix string
		want   string
	}{
		{"fits", "short text", 20, "...", "short text"},
		{"cuts at space", "hello wonderful world", 14, "...", "hello..."},
		{"cut lands on space", "hello world again", 11, "", "hello world"},
		{"single long token is dropped", "abcdefghijkl", 8, "...", ""},
		{"long token after words is dropped", "fix abcdefghijklmnop", 10, "...", "fix..."},
		{"budget smaller than suffix", "hello world", 2, "...", ""},
		{"multibyte boundary", "éé ééééé", 7, "", "éé"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWords(tt.in, tt.limit, tt.suffix)
			if got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
			if len(got) > tt.limit && got != tt.in {
				t.Errorf("result %q exceeds limit %d", got, tt.limit)
			}
		})
	}
}

func lastRune(s string) (rune, int) {
	r := []rune(s)
	if len(r) == 0 {
		return 0, 0
	}
	return r[len(r)-1], len(r)
}

func TestRenderTurnDropsOversizedToken(t *testing.T) {
	turn := eventlog.Turn{Role: "assistant", Text: strings.Repeat("x", 1000)}
	if got := renderTurn(turn, 400); got != "[assistant]:" {
		t.Errorf("renderTurn = %q, want bare role prefix", got)
	}

	turn.Text = "see " + strings.Repeat("y", 1000)
	if got := renderTurn(turn, 400); got != "[assistant]: see..." {
		t.Errorf("renderTurn = %q", got)
	}
}

package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

const (
	// maxTurnChars bounds how much of each message is kept in memory.
	// The sampler never shows more than a few hundred characters per turn.
	maxTurnChars = 2000

	// fallbackTurnChars bounds prompt/response pairs recovered from events
	fallbackTurnChars = 500
)

// Turn is one message of the conversation
type Turn struct {
	Role string
	Text string
}

type nativeTranscriptLine struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// LoadTranscript returns the conversation turns in order. Native sessions
// without transcript.jsonl fall back to prompt:complete events in the event log.
func LoadTranscript(src *Source) ([]Turn, error) {
	switch src.Format {
	case FormatClaude:
		return scanLines(src.TranscriptPath, claudeTurns)
	default:
		turns, err := scanLines(src.TranscriptPath, nativeTurns)
		if errors.Is(err, ErrSourceUnavailable) {
			return scanLines(src.EventsPath, eventTurns)
		}
		return turns, err
	}
}

func scanLines(path string, decode func([]byte) []Turn) ([]Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	var turns []Turn
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		turns = append(turns, decode(line)...)
	}
	if err := scanner.Err(); err != nil {
		return turns, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return turns, nil
}

func nativeTurns(line []byte) []Turn {
	var tl nativeTranscriptLine
	if err := json.Unmarshal(line, &tl); err != nil {
		return nil
	}
	if tl.Role != "user" && tl.Role != "assistant" {
		return nil
	}
	text := contentText(tl.Content)
	if text == "" {
		return nil
	}
	return []Turn{{Role: tl.Role, Text: clip(text, maxTurnChars)}}
}

func eventTurns(line []byte) []Turn {
	var nl nativeLine
	if err := json.Unmarshal(line, &nl); err != nil || Kind(nl.Event) != KindPromptComplete {
		return nil
	}
	var data nativeData
	if err := json.Unmarshal(nl.Data, &data); err != nil {
		return nil
	}
	var turns []Turn
	if data.Prompt != "" {
		turns = append(turns, Turn{Role: "user", Text: clip(data.Prompt, fallbackTurnChars)})
	}
	if data.Response != "" {
		turns = append(turns, Turn{Role: "assistant", Text: clip(data.Response, fallbackTurnChars)})
	}
	return turns
}

func claudeTurns(data []byte) []Turn {
	line, err := parseClaudeLine(data)
	if err != nil || line.Message == nil {
		return nil
	}
	switch {
	case line.isHuman():
		return []Turn{{Role: "user", Text: clip(line.Message.text(), maxTurnChars)}}
	case line.Type == "assistant":
		if text := line.Message.text(); text != "" {
			return []Turn{{Role: "assistant", Text: clip(text, maxTurnChars)}}
		}
	}
	return nil
}

// contentText accepts a string, or a list of text blocks and bare strings
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	var parts []string
	for _, item := range items {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			parts = append(parts, str)
			continue
		}
		var block claudeBlock
		if err := json.Unmarshal(item, &block); err == nil && block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, " ")
}

// clip cuts s to at most n bytes without splitting a UTF-8 sequence
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

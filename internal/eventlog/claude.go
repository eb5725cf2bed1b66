package eventlog

import (
	"encoding/json"
	"strings"
)

// claudeLine is one line of a Claude Code transcript
type claudeLine struct {
	Type      string         `json:"type"` // "user", "assistant", "system", "summary"
	Timestamp string         `json:"timestamp,omitempty"`
	Message   *claudeMessage `json:"message,omitempty"`
}

type claudeMessage struct {
	Role    string          `json:"role,omitempty"`
	Model   string          `json:"model,omitempty"`
	Usage   *claudeUsage    `json:"usage,omitempty"`
	Content json.RawMessage `json:"content,omitempty"` // string or []claudeBlock
}

type claudeUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens,omitempty"`
}

type claudeBlock struct {
	Type      string         `json:"type"` // "text", "tool_use", "tool_result", "thinking"
	Text      string         `json:"text,omitempty"`
	Name      string         `json:"name,omitempty"`
	ID        string         `json:"id,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

func parseClaudeLine(data []byte) (*claudeLine, error) {
	var line claudeLine
	if err := json.Unmarshal(data, &line); err != nil {
		return nil, err
	}
	return &line, nil
}

// text returns string content, or the joined text blocks of array content
func (m *claudeMessage) text() string {
	if m == nil || len(m.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	var parts []string
	for _, b := range m.blocks() {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, " ")
}

func (m *claudeMessage) blocks() []claudeBlock {
	if m == nil || len(m.Content) == 0 {
		return nil
	}
	var blocks []claudeBlock
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return nil
	}
	return blocks
}

// isHuman distinguishes typed user input from tool_result messages,
// which Claude Code also records with type "user".
func (l *claudeLine) isHuman() bool {
	if l.Type != "user" || l.Message == nil {
		return false
	}
	for _, b := range l.Message.blocks() {
		if b.Type == "tool_result" {
			return false
		}
	}
	return l.Message.text() != ""
}

// claudeDecoder adapts transcript lines into normalized events. It keeps
// the tool_use id to name map so tool_result errors can be attributed.
type claudeDecoder struct {
	toolNames map[string]string
}

func newClaudeDecoder() *claudeDecoder {
	return &claudeDecoder{toolNames: make(map[string]string)}
}

func (d *claudeDecoder) decode(data []byte) []Event {
	line, err := parseClaudeLine(data)
	if err != nil || line.Message == nil {
		return nil
	}
	ts := parseTimestamp(line.Timestamp)

	var events []Event
	switch line.Type {
	case "user":
		if line.isHuman() {
			events = append(events, Event{Kind: KindPromptSubmit, Timestamp: ts, Prompt: line.Message.text()})
			break
		}
		for _, b := range line.Message.blocks() {
			if b.Type == "tool_result" && b.IsError {
				events = append(events, Event{Kind: KindToolError, Timestamp: ts, Tool: d.toolNames[b.ToolUseID]})
			}
		}
	case "assistant":
		msg := line.Message
		if msg.Usage != nil {
			u := msg.Usage
			events = append(events, Event{
				Kind:         KindLLMResponse,
				Timestamp:    ts,
				InputTokens:  u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens,
				OutputTokens: u.OutputTokens,
				Model:        msg.Model,
			})
		}
		for _, b := range msg.blocks() {
			if b.Type != "tool_use" {
				continue
			}
			if b.ID != "" {
				d.toolNames[b.ID] = b.Name
			}
			events = append(events, Event{
				Kind:      KindToolPost,
				Timestamp: ts,
				Tool:      b.Name,
				FilePath:  filePathFromMap(b.Input),
			})
		}
	}
	return events
}

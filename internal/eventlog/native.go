package eventlog

import (
	"encoding/json"
	"time"
)

// nativeLine is one line of events.jsonl:
// {"ts": "...", "event": "tool:post", "lvl": "INFO", "data": {...}}
type nativeLine struct {
	TS    string          `json:"ts"`
	Event string          `json:"event"`
	Lvl   string          `json:"lvl"`
	Data  json.RawMessage `json:"data"`
}

type nativeData struct {
	ToolName  string          `json:"tool_name"`
	ToolInput json.RawMessage `json:"tool_input"`
	Usage     *struct {
		Input  int64 `json:"input"`
		Output int64 `json:"output"`
	} `json:"usage"`
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

type nativeDecoder struct{}

func (nativeDecoder) decode(line []byte) []Event {
	var nl nativeLine
	if err := json.Unmarshal(line, &nl); err != nil {
		return nil
	}

	ev := Event{
		Kind:      Kind(nl.Event),
		Timestamp: parseTimestamp(nl.TS),
		Level:     nl.Lvl,
	}

	var data nativeData
	if len(nl.Data) > 0 {
		// Payload shape errors only lose the payload, not the event
		_ = json.Unmarshal(nl.Data, &data)
	}

	switch ev.Kind {
	case KindToolPost, KindToolError:
		ev.Tool = data.ToolName
		if ev.Tool == "" && ev.Kind == KindToolPost {
			ev.Tool = "unknown"
		}
		ev.FilePath = filePathFromInput(data.ToolInput)
	case KindLLMResponse:
		if data.Usage != nil {
			ev.InputTokens = data.Usage.Input
			ev.OutputTokens = data.Usage.Output
		}
		ev.Model = data.Model
	case KindPromptSubmit, KindPromptComplete:
		ev.Prompt = data.Prompt
		ev.Response = data.Response
	}
	return []Event{ev}
}

// filePathFromInput pulls file_path (or notebook_path) from a tool input
// object. Non-object inputs yield "".
func filePathFromInput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var input map[string]any
	if err := json.Unmarshal(raw, &input); err != nil {
		return ""
	}
	return filePathFromMap(input)
}

func filePathFromMap(input map[string]any) string {
	for _, key := range []string{"file_path", "notebook_path"} {
		if p, ok := input[key].(string); ok && p != "" {
			return p
		}
	}
	return ""
}

// parseTimestamp accepts RFC3339 with or without fractional seconds.
// Unparseable values yield the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

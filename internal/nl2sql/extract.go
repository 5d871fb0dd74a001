package nl2sql

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedOutputError reports model output from which no usable SQL could be
// extracted. Terminal for the call; the caller may re-ask.
type MalformedOutputError struct {
	Reason string
}

func (e *MalformedOutputError) Error() string {
	return "malformed model output: " + e.Reason
}

// UpstreamError reports a transport or protocol failure reaching the model
// endpoint. Output that arrived but is unusable is MalformedOutputError.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return "translator upstream: " + e.Message
}

type resultPayload struct {
	SQL         string          `json:"sql"`
	Confidence  float64         `json:"confidence"`
	Assumptions json.RawMessage `json:"assumptions"`
}

// ExtractResult parses a model reply into a Result. It tolerates code-fence
// wrappers and leading/trailing prose around the JSON object, and accepts
// assumptions as either a string or a list of strings.
func ExtractResult(raw string) (Result, error) {
	text := stripFences(raw)
	if !strings.HasPrefix(text, "{") {
		span, ok := firstObjectSpan(text)
		if !ok {
			return Result{}, &MalformedOutputError{Reason: "no JSON object found"}
		}
		text = span
	}

	var payload resultPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return Result{}, &MalformedOutputError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if strings.TrimSpace(payload.SQL) == "" {
		return Result{}, &MalformedOutputError{Reason: "missing or empty 'sql' field"}
	}

	return Result{
		SQL:         strings.TrimSpace(payload.SQL),
		Confidence:  payload.Confidence,
		Assumptions: decodeAssumptions(payload.Assumptions),
		Raw:         raw,
	}, nil
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	lowered := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lowered, "```json"):
		text = text[len("```json"):]
	case strings.HasPrefix(text, "```"):
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// firstObjectSpan returns the first balanced {...} span, tracking brace depth
// and skipping braces inside JSON strings.
func firstObjectSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func decodeAssumptions(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

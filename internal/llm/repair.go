package llm

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

// RepairJSON recovers a JSON object from raw model output. It strips markdown
// fences, parses the span from the first '{' to the last '}', and when the
// output was cut off after an opening brace appends one '}' and retries once.
func RepairJSON(raw string) (map[string]any, error) {
	text := stripFences(raw)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")

	switch {
	case start >= 0 && end > start:
		return decodeObject(text[start:end+1], raw)
	case start >= 0 && end == -1:
		return decodeObject(text[start:]+"}", raw)
	default:
		return nil, &MalformedResponseError{Preview: preview(raw), Cause: errors.New("no JSON object delimiters")}
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl != -1 {
			s = strings.TrimSpace(s[nl+1:])
		} else {
			s = strings.TrimSpace(s[3:])
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(s[:len(s)-3])
	}
	if i := strings.LastIndex(s, "\n```"); i != -1 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

func decodeObject(candidate, raw string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, &MalformedResponseError{Preview: preview(raw), Cause: err}
	}
	if out == nil {
		return nil, &MalformedResponseError{Preview: preview(raw), Cause: errors.New("null object")}
	}
	return out, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= constants.ResponsePreviewChars {
		return s
	}
	return string(r[:constants.ResponsePreviewChars])
}

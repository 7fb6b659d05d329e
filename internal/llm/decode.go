package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// StripFences removes a surrounding markdown code fence, if present.
func StripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return content
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}

// DecodeJSON unmarshals model output into v. Fences and surrounding prose are
// dropped first; if the remaining text is still not valid JSON it is passed
// through jsonrepair once.
func DecodeJSON(content string, v any) error {
	text := isolateJSON(StripFences(content))
	if text == "" {
		return fmt.Errorf("empty response")
	}
	err := json.Unmarshal([]byte(text), v)
	if err == nil {
		return nil
	}
	repaired, rerr := jsonrepair.JSONRepair(text)
	if rerr != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err2 := json.Unmarshal([]byte(repaired), v); err2 != nil {
		return fmt.Errorf("invalid JSON after repair: %w", err2)
	}
	return nil
}

// isolateJSON trims prose before the first opening brace or bracket and
// after the matching last closing one.
func isolateJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

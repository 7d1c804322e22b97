package judge

import (
	"encoding/json"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ParseJSON defensively parses judge output expected to be a JSON object or
// array. A single fenced-code wrapper is stripped, then a direct parse is
// attempted. On failure, a response starting with "[" goes through
// truncated-array recovery; anything else goes through json-repair. Returns
// an error only when nothing at all can be salvaged.
func ParseJSON(raw string) (any, error) {
	cleaned := StripFence(raw)

	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err == nil {
		return v, nil
	}

	if strings.HasPrefix(strings.TrimSpace(cleaned), "[") {
		if objs := recoverArrayPrefix(cleaned); len(objs) > 0 {
			zap.L().Warn("judge: response truncated, recovered leading objects",
				zap.Int("recovered", len(objs)),
			)
			return objs, nil
		}
	}

	repaired, err := jsonrepair.RepairJSON(cleaned)
	if err == nil {
		if uerr := json.Unmarshal([]byte(repaired), &v); uerr == nil {
			zap.L().Warn("judge: response repaired before parse")
			return v, nil
		}
	}

	return nil, eris.Errorf("judge: response is not valid JSON: %.200s", raw)
}

// StripFence removes one leading/trailing markdown code fence if present.
func StripFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	lines := strings.Split(cleaned, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// recoverArrayPrefix salvages every complete top-level object from an array
// truncated mid-element: `[{"a":1}, {"b":2}, {"c":` yields the first two
// objects. Scans character by character tracking string-escape state and
// brace depth; each time depth returns to zero the candidate substring is
// parsed independently.
func recoverArrayPrefix(text string) []any {
	var (
		objs     []any
		depth    int
		inString bool
		escaped  bool
	)
	objStart := -1

	for i, ch := range text {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
			continue
		case ch == '"':
			inString = !inString
			continue
		case inString:
			continue
		}

		switch ch {
		case '{':
			if depth == 0 {
				objStart = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && objStart >= 0 {
				var obj any
				if err := json.Unmarshal([]byte(text[objStart:i+1]), &obj); err == nil {
					objs = append(objs, obj)
				}
				objStart = -1
			}
		}
	}

	return objs
}

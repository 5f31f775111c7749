package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject pulls the first JSON object out of raw model text. The
// model is treated as an untrusted text source: fences and leading prose are
// tolerated, but the object itself must decode cleanly. The returned bytes
// are exactly the decoded object's extent, not a regex guess, so trailing
// prose or unbalanced braces in surrounding text cannot corrupt the result.
func ExtractJSONObject(text string) (json.RawMessage, error) {
	cleaned := stripFences(text)

	start := strings.IndexByte(cleaned, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object found in model output")
	}

	dec := json.NewDecoder(strings.NewReader(cleaned[start:]))
	var obj json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("model output is not valid JSON: %w", err)
	}

	// Decode succeeds for any JSON value; require an object.
	trimmed := bytes.TrimSpace(obj)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("model output is not a JSON object")
	}

	return trimmed, nil
}

func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}

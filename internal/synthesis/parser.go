package synthesis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedJSONRegex = regexp.MustCompile("```(?:json)?\\s*\\n([\\s\\S]*?)\\n```")

// ExtractJSON pulls the JSON payload out of a model response. Models
// routinely wrap output in a markdown code fence despite instructions not
// to; the fence lines are stripped before parsing. If no fence is present
// the first JSON object in the text is used, tolerating leading prose.
func ExtractJSON(content string) ([]byte, error) {
	if matches := fencedJSONRegex.FindStringSubmatch(content); len(matches) > 1 {
		return []byte(strings.TrimSpace(matches[1])), nil
	}

	if extracted, ok := firstJSONObject(content); ok {
		return []byte(extracted), nil
	}

	return nil, fmt.Errorf("no JSON content found in response")
}

// firstJSONObject scans text for the first complete JSON object starting at
// '{', tolerating labels or prose before the payload.
func firstJSONObject(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	start := strings.Index(trimmed, "{")
	if start == -1 {
		return "", false
	}

	decoder := json.NewDecoder(strings.NewReader(trimmed[start:]))
	decoder.UseNumber()

	var raw json.RawMessage
	if err := decoder.Decode(&raw); err != nil {
		return "", false
	}

	return strings.TrimSpace(string(raw)), true
}

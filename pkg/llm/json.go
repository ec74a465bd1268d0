package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// thinkTagPattern matches a leading <think>...</think> block emitted by
// reasoning models.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

// ExtractJSON pulls the first JSON object or array out of a model response,
// skipping reasoning tags, markdown fences and surrounding prose.
func ExtractJSON(response string) (json.RawMessage, error) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	objStart := strings.IndexByte(cleaned, '{')
	arrStart := strings.IndexByte(cleaned, '[')

	if objStart >= 0 && (arrStart < 0 || objStart < arrStart) {
		if s, ok := balanced(cleaned[objStart:], '{', '}'); ok && json.Valid([]byte(s)) {
			return json.RawMessage(s), nil
		}
	}
	if arrStart >= 0 {
		if s, ok := balanced(cleaned[arrStart:], '[', ']'); ok && json.Valid([]byte(s)) {
			return json.RawMessage(s), nil
		}
	}

	trimmed := strings.TrimSpace(cleaned)
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}
	return nil, fmt.Errorf("no valid JSON found in response")
}

// balanced returns the prefix of s (which starts with openCh) up to the
// matching close bracket, ignoring brackets inside strings.
func balanced(s string, openCh, closeCh byte) (string, bool) {
	depth := 0
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == openCh:
			depth++
		case c == closeCh:
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// schemaInstruction is appended to the system prompt so providers without
// native schema support still answer in the expected shape.
func schemaInstruction(schemaJSON []byte) string {
	return "Respond with a single JSON document and nothing else. " +
		"It must conform to this JSON Schema:\n" + string(schemaJSON)
}

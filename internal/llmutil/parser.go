// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// Regex definitions use \x60 (hex representation) for backticks because Go raw strings cannot contain backticks.

	// jsonObjectRegex extracts a JSON object if the response is wrapped in markdown.
	jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json|JSON)?\\s*({.*})\\s*\x60\x60\x60")
	// jsonArrayRegex extracts a JSON array if the response is wrapped in markdown.
	jsonArrayRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json|JSON)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
	// codeBlockRegex extracts the body of a fenced block with any language tag (python, py, json, ...).
	codeBlockRegex = regexp.MustCompile("(?s)^\x60\x60\x60[a-zA-Z0-9_+-]*[ \\t]*\\n?(.*?)\\s*\x60\x60\x60\\s*$")
)

// ExtractJSON isolates the JSON document in a model response. It unwraps
// markdown fences and, failing that, trims conversational text around the
// outermost object or array.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	isObject := strings.Contains(response, "{")
	isArray := strings.Contains(response, "[")

	if strings.HasPrefix(response, "```") {
		var matches []string
		if isObject {
			matches = jsonObjectRegex.FindStringSubmatch(response)
		}
		if len(matches) <= 1 && isArray {
			matches = jsonArrayRegex.FindStringSubmatch(response)
		}
		if len(matches) > 1 {
			return matches[1]
		}
		return StripCodeFence(response)
	}

	if (isObject || isArray) && !strings.HasPrefix(response, "{") && !strings.HasPrefix(response, "[") {
		if isObject {
			fb := strings.Index(response, "{")
			lb := strings.LastIndex(response, "}")
			if fb != -1 && lb > fb {
				return response[fb : lb+1]
			}
		}
		if isArray {
			fb := strings.Index(response, "[")
			lb := strings.LastIndex(response, "]")
			if fb != -1 && lb > fb {
				return response[fb : lb+1]
			}
		}
	}
	return response
}

// ParseJSONResponse decodes a model response into a new T.
func ParseJSONResponse[T any](response string) (*T, error) {
	var result T
	if err := ParseJSONInto(response, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ParseJSONInto decodes a model response into target. Fields already set on
// target act as defaults for keys the response omits.
func ParseJSONInto(response string, target any) error {
	extracted := ExtractJSON(response)
	if extracted == "" {
		return fmt.Errorf("empty LLM response")
	}
	if err := json.Unmarshal([]byte(extracted), target); err != nil {
		return fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, Truncate(extracted, 500))
	}
	return nil
}

// StripCodeFence removes one enclosing markdown fence (```python ... ```) and
// surrounding whitespace. Text without a leading fence is only trimmed, apart
// from a dangling closing fence which is dropped.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if matches := codeBlockRegex.FindStringSubmatch(content); len(matches) > 1 {
			return strings.TrimSpace(matches[1])
		}
		// Opening fence without a closing one: drop the fence line.
		if nl := strings.IndexByte(content, '\n'); nl != -1 {
			return strings.TrimSpace(content[nl+1:])
		}
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(content, "```"))
}

// Truncate shortens s to at most maxLen bytes plus an ellipsis, for logging.
// The cut never splits a multi-byte character.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

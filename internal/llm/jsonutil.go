package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	// jsonBlockPattern matches an object inside a markdown fence: ```json { ... } ```
	jsonBlockPattern      = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	jsonObjectPattern     = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	jsonArrayBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\[.*\\])\\s*```")
	jsonArrayPattern      = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
	trailingCommaPattern  = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON pulls a JSON object out of a model reply. It handles markdown
// fences, line comments and trailing commas. Empty string means nothing found.
func ExtractJSON(content string) string {
	if m := jsonBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		return cleanJSON(m[1])
	}
	if m := jsonObjectPattern.FindString(content); m != "" {
		return cleanJSON(m)
	}
	return ""
}

// ExtractJSONArray is ExtractJSON for a top-level array.
func ExtractJSONArray(content string) string {
	if m := jsonArrayBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		return cleanJSON(m[1])
	}
	if m := jsonArrayPattern.FindString(content); m != "" {
		return cleanJSON(m)
	}
	return ""
}

// DecodeObject extracts and decodes a JSON object from a model reply.
// Every failure wraps ErrNoPayload.
func DecodeObject(content string, v any) error {
	raw := ExtractJSON(content)
	if raw == "" {
		return ErrNoPayload
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", ErrNoPayload, err)
	}
	return nil
}

// DecodeArray extracts and decodes a JSON array from a model reply. A reply
// holding a single object instead of an array is decoded as a one-element list.
func DecodeArray[T any](content string) ([]T, error) {
	if raw := ExtractJSONArray(content); raw != "" {
		var out []T
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out, nil
		}
	}
	var one T
	if err := DecodeObject(content, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}

func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(cleaned, "\n"), "$1")
}

// stripLineComment removes a // comment that sits outside a JSON string.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

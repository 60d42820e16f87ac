package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"k8s.io/klog/v2"
)

// ExtractJSON returns the first balanced JSON object found in the text.
// LLM responses often wrap the object in prose; everything outside the
// outermost braces is discarded.
func ExtractJSON(content string) string {
	start := -1
	end := -1
	depth := 0

	for i, ch := range content {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			depth--
			if depth == 0 && start != -1 {
				end = i + 1
				break
			}
		}
	}

	if start >= 0 && end > start {
		return content[start:end]
	}

	return content
}

var (
	openFenceRe   = regexp.MustCompile("(?i)^```\\s*json\\s*\\n?|^```\\s*\\n?")
	closeFenceRe  = regexp.MustCompile("\\n?```\\s*$")
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	missingComma  = regexp.MustCompile(`}\s*{`)
)

// StripCodeFences removes a surrounding ```json ... ``` (or bare ```) block.
func StripCodeFences(content string) string {
	stripped := strings.TrimSpace(content)
	stripped = openFenceRe.ReplaceAllString(stripped, "")
	stripped = closeFenceRe.ReplaceAllString(stripped, "")
	return strings.TrimSpace(stripped)
}

// RepairJSON fixes the two most common LLM JSON mistakes: trailing commas
// before } or ], and a missing comma between adjacent objects in an array.
func RepairJSON(content string) string {
	repaired := trailingComma.ReplaceAllString(content, "$1")
	repaired = missingComma.ReplaceAllString(repaired, "}, {")
	return repaired
}

// ParseLenient unmarshals an LLM response into v, tolerating markdown
// fences, surrounding prose and repairable syntax errors. It never assumes
// well-formed output.
func ParseLenient(content string, v any) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("empty response, expected a JSON object")
	}
	cleaned := ExtractJSON(StripCodeFences(content))

	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	repaired := RepairJSON(cleaned)
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		snippet := repaired
		if len(snippet) > 300 {
			snippet = snippet[:300] + "..."
		}
		return fmt.Errorf("response is not valid JSON: %w (content: %q)", err, snippet)
	}
	return nil
}

func ToJSON(v any) string {
	jsonData, err := json.Marshal(v)
	if err != nil {
		klog.Errorf("JSON marshal failed: %v", err)
		return ""
	}
	return string(jsonData)
}

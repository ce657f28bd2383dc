package ai

import "strings"

// cleanModelJSON strips code fences and surrounding prose, returning the
// first balanced JSON object when one is present.
func cleanModelJSON(resp string) string {
	cleaned := strings.TrimSpace(resp)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	if jsonStr, ok := extractFirstJSONObject(cleaned); ok {
		return jsonStr
	}
	return strings.TrimSpace(cleaned)
}

// extractFirstJSONObject finds the first outermost balanced {...}
func extractFirstJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if char == '{' {
				depth++
			} else if char == '}' {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}

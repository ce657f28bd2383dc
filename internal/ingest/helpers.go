package ingest

import (
	"strings"
)

// normalizeSpace collapses multiple spaces into one and trims the string.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// headerKey folds a header for fuzzy matching: lower case, separators removed.
func headerKey(s string) string {
	s = strings.ToLower(normalizeSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(s)
}

// findHeader returns the first header whose folded form is in candidates,
// trying candidates in order.
func findHeader(headers []string, candidates []string) string {
	for _, c := range candidates {
		for _, h := range headers {
			if headerKey(h) == c {
				return h
			}
		}
	}
	return ""
}

func columnIndex(headers []string, name string) int {
	if name == "" {
		return -1
	}
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	for i, h := range headers {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

// Package sanitize strips markup from user and model supplied text.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Line removes every tag, decodes entities and collapses whitespace. Used for
// titles and other single-line fields.
func Line(s string) string {
	return strings.Join(strings.Fields(Text(s)), " ")
}

// Text removes every tag and decodes entities, keeping line breaks.
func Text(s string) string {
	cleaned := html.UnescapeString(strict.Sanitize(s))
	return strings.TrimSpace(strings.ToValidUTF8(cleaned, ""))
}

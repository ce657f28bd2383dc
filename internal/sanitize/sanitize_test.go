package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLine(t *testing.T) {
	assert.Equal(t, "Export & import is slow", Line("  <b>Export</b> &amp; import\n is   slow "))
	assert.Equal(t, "", Line("<script>alert(1)</script>"))
}

func TestText_KeepsLineBreaks(t *testing.T) {
	assert.Equal(t, "first\nsecond <3", Text("first\n<i>second</i> &lt;3"))
}

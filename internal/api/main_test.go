package api

import (
	"os"
	"testing"

	"github.com/david/feedback-triage/internal/testdb"
)

func TestMain(m *testing.M) {
	code := m.Run()
	testdb.Terminate()
	os.Exit(code)
}

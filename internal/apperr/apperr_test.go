package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("update product: %w", Conflict("product_cycle", "would create a cycle"))

	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, http.StatusConflict, Status(KindOf(err)))
	assert.Equal(t, "update product: would create a cycle", err.Error())
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, Status(KindInternal))
}

func TestNotFound(t *testing.T) {
	err := NotFound("opportunity")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "opportunity not found", err.Error())
	assert.Equal(t, http.StatusNotFound, Status(err.Kind))
}

func TestUpstream_Unwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("analysis failed, try again", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadGateway, Status(err.Kind))
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/logger"
)

func TestTokens_IssueVerify(t *testing.T) {
	tokens, err := NewTokens("test-secret", logger.NewNop())
	require.NoError(t, err)

	id := uuid.New()
	tok, err := tokens.Issue(id)
	require.NoError(t, err)

	got, err := tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	other, err := NewTokens("other-secret", logger.NewNop())
	require.NoError(t, err)
	_, err = other.Verify(tok)
	assert.Error(t, err)
}

func TestTokens_Expired(t *testing.T) {
	tokens, err := NewTokens("test-secret", logger.NewNop())
	require.NoError(t, err)
	issued := time.Now().Add(-48 * time.Hour)
	tokens.now = func() time.Time { return issued }
	tok, err := tokens.Issue(uuid.New())
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.Verify(tok)
	assert.Error(t, err)
}

func TestNewTokens_EphemeralSecret(t *testing.T) {
	a, err := NewTokens("", logger.NewNop())
	require.NoError(t, err)
	b, err := NewTokens("", logger.NewNop())
	require.NoError(t, err)
	assert.NotEqual(t, a.secret, b.secret)
}

func TestMiddleware(t *testing.T) {
	tokens, err := NewTokens("test-secret", logger.NewNop())
	require.NoError(t, err)
	id := uuid.New()
	tok, err := tokens.Issue(id)
	require.NoError(t, err)

	e := echo.New()
	handler := Middleware(tokens)(func(c echo.Context) error {
		got, err := GetUserIDFromContext(c)
		require.NoError(t, err)
		assert.Equal(t, id, got)
		return c.NoContent(http.StatusNoContent)
	})

	cases := []struct {
		header string
		ok     bool
	}{
		{"Bearer " + tok, true},
		{"bearer " + tok, true},
		{"", false},
		{"Token " + tok, false},
		{"Bearer garbage", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		err := handler(e.NewContext(req, rec))
		if tc.ok {
			assert.NoError(t, err, tc.header)
			assert.Equal(t, http.StatusNoContent, rec.Code)
		} else {
			assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err), tc.header)
		}
	}
}

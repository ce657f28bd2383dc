package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/auth"
	"github.com/david/feedback-triage/internal/cache"
	"github.com/david/feedback-triage/internal/config"
	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/logger"
)

type stubGenerator struct {
	resp string
	err  error
}

func (g stubGenerator) GenerateCompletion(context.Context, string, string, bool) (string, error) {
	return g.resp, g.err
}

func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		CORSOrigins:     []string{"http://localhost:4200"},
		AITimeout:       5 * time.Second,
		ClusterMaxItems: 300,
		ClusterPrompt:   config.DefaultClusterPrompt,
		ServiceName:     "feedback-triage-test",
		ImportChunkSize: 500,
	}
}

func newTestServer(t *testing.T, store *db.Store) (*Server, string) {
	t.Helper()
	tokens, err := auth.NewTokens("test-secret", logger.NewNop())
	require.NoError(t, err)
	if store == nil {
		store = db.NewStore(nil)
	}
	s := NewServer(Deps{
		Config: testConfig(),
		Log:    logger.NewNop(),
		Store:  store,
		Tokens: tokens,
		AI:     stubGenerator{},
		Cache:  cache.NewMemory(),
	})
	token, err := tokens.Issue(uuid.New())
	require.NoError(t, err)
	return s, token
}

func do(s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	do(s, http.MethodGet, "/health", "", "")
	rec := do(s, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "triage_http_requests_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s, _ := newTestServer(t, nil)
	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/feedback"},
		{http.MethodGet, "/api/v1/opportunities"},
		{http.MethodPost, "/api/v1/cluster/analyze"},
		{http.MethodGet, "/api/v1/roadmap"},
		{http.MethodDelete, "/api/v1/products/" + uuid.NewString()},
	}
	for _, r := range routes {
		rec := do(s, r.method, r.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.path)
		body := decodeError(t, rec)
		assert.Equal(t, "unauthorized", body.Code)
		assert.NotEmpty(t, body.RequestID)
	}
}

func TestInvalidPathID(t *testing.T) {
	s, token := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/api/v1/feedback/not-a-uuid", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "validation_failed", body.Code)
	assert.Equal(t, "invalid id", body.Error)
}

func TestRequestValidation(t *testing.T) {
	s, token := newTestServer(t, nil)

	rec := do(s, http.MethodPost, "/api/v1/auth/signup", "", `{"email":"not-an-email","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Contains(t, body.Error, "field 'email' failed rule 'email'")
	assert.Contains(t, body.Error, "field 'password' failed rule 'min=8'")

	rec = do(s, http.MethodPost, "/api/v1/feedback/"+uuid.NewString()+"/opportunities", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "opportunity_id")

	rec = do(s, http.MethodPost, "/api/v1/feedback/bulk/reject", token, `{"ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPost, "/api/v1/cluster/apply", token, `{"clusters":[{"title":"x","feedback_ids":[]}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPost, "/api/v1/dimensions", token, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decodeError(t, rec).Error)
}

func TestOpportunityListRejectsBadFilters(t *testing.T) {
	s, token := newTestServer(t, nil)

	rec := do(s, http.MethodGet, "/api/v1/opportunities?status=shipped", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodGet, "/api/v1/opportunities?horizon=someday", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Code)
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()
	handle := errorHandler(logger.NewNop())

	cases := []struct {
		err     error
		status  int
		code    string
		message string
	}{
		{errors.New("pq: connection reset"), http.StatusInternalServerError, "internal", "Internal Server Error"},
		{apperr.NotFound("opportunity"), http.StatusNotFound, "not_found", "opportunity not found"},
		{apperr.Conflict("product_has_children", "has children"), http.StatusConflict, "product_has_children", "has children"},
		{apperr.Upstream("analysis failed, try again", errors.New("timeout")), http.StatusBadGateway, "upstream_failed", "analysis failed, try again"},
		{echo.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"), http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		handle(tc.err, c)

		assert.Equal(t, tc.status, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, tc.code, body.Code)
		assert.Equal(t, tc.message, body.Error)
	}
}

func TestOptionalID(t *testing.T) {
	id, ok, err := optionalID(nil, "product_id")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, id)

	empty := " "
	id, ok, err = optionalID(&empty, "product_id")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, id)

	want := uuid.New()
	raw := want.String()
	id, ok, err = optionalID(&raw, "product_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, *id)

	bad := "nope"
	_, _, err = optionalID(&bad, "product_id")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSplitIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	ids, err := splitIDs(a.String()+", ,"+b.String(), "product")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)

	_, err = splitIDs("x", "product")
	assert.Error(t, err)
}

func TestClusterLimit(t *testing.T) {
	s, _ := newTestServer(t, nil)
	assert.Equal(t, 300, s.clusterLimit(0))
	assert.Equal(t, 50, s.clusterLimit(50))
	assert.Equal(t, 300, s.clusterLimit(5000))

	s.Config.ClusterMaxItems = 100
	assert.Equal(t, 100, s.clusterLimit(0))
}

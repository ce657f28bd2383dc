package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/feedback"
	"github.com/david/feedback-triage/internal/logger"
	"github.com/david/feedback-triage/internal/models"
	"github.com/david/feedback-triage/internal/scoring"
	"github.com/david/feedback-triage/internal/testdb"
)

// integrationServer runs against the test database. Entities are created with
// unique names so runs don't depend on an empty database.
func integrationServer(t *testing.T) (*Server, string) {
	t.Helper()
	url := testdb.URL(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, url)
	if err != nil {
		t.Skipf("database unreachable: %v", err)
	}
	t.Cleanup(pool.Close)
	require.NoError(t, db.ApplyMigrations(ctx, pool, logger.NewNop()))

	s, _ := newTestServer(t, db.NewStore(pool))

	email := "pm-" + uuid.NewString()[:8] + "@example.com"
	rec := do(s, http.MethodPost, "/api/v1/auth/signup", "", `{"email":"`+email+`","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(s, http.MethodPost, "/api/v1/auth/signup", "", `{"email":"`+email+`","password":"correct horse"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(s, http.MethodPost, "/api/v1/auth/login", "", `{"email":"`+email+`","password":"wrong password"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(s, http.MethodPost, "/api/v1/auth/login", "", `{"email":"`+email+`","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	return s, login.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestIntegration_TriageFlow(t *testing.T) {
	s, token := integrationServer(t)
	suffix := uuid.NewString()[:8]

	rec := do(s, http.MethodPost, "/api/v1/products", token, `{"name":"Platform `+suffix+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	platform := decode[models.Product](t, rec)

	rec = do(s, http.MethodPost, "/api/v1/products", token, `{"name":"API `+suffix+`","parent_id":"`+platform.ID.String()+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	child := decode[models.Product](t, rec)

	rec = do(s, http.MethodPatch, "/api/v1/products/"+platform.ID.String(), token, `{"parent_id":"`+child.ID.String()+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "re-parenting under a descendant must be rejected")

	rec = do(s, http.MethodDelete, "/api/v1/products/"+platform.ID.String(), token, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(s, http.MethodPost, "/api/v1/feedback", token, `{"title":"<b>Webhooks</b> retry `+suffix+`","product_id":"`+child.ID.String()+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[models.FeedbackItem](t, rec)
	assert.Equal(t, "Webhooks retry "+suffix, item.Title)

	rec = do(s, http.MethodGet, "/api/v1/feedback?product="+platform.ID.String(), token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[feedback.ListResult](t, rec)
	require.Equal(t, 1, page.Total, "descendant feedback is included")
	assert.Equal(t, item.ID, page.Items[0].ID)

	rec = do(s, http.MethodPost, "/api/v1/opportunities", token, `{"title":"Reliable webhooks `+suffix+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	opp := decode[models.Opportunity](t, rec)

	rec = do(s, http.MethodPost, "/api/v1/feedback/"+item.ID.String()+"/opportunities", token, `{"opportunity_id":"`+opp.ID.String()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.FeedbackReviewed, decode[models.FeedbackItem](t, rec).Status)

	// the cached page must have been invalidated by the link
	rec = do(s, http.MethodGet, "/api/v1/feedback?product="+platform.ID.String()+"&opportunity="+opp.ID.String(), token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[feedback.ListResult](t, rec).Total)

	rec = do(s, http.MethodPost, "/api/v1/dimensions", token, `{"name":"Impact `+suffix+`","type":"scale","weight":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	dim := decode[models.Dimension](t, rec)

	rec = do(s, http.MethodPatch, "/api/v1/opportunities/"+opp.ID.String()+"/scores", token, `{"scores":{"`+dim.ID.String()+`":3}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.GreaterOrEqual(t, decode[models.Opportunity](t, rec).CombinedScore, 6.0)

	rec = do(s, http.MethodPatch, "/api/v1/opportunities/"+opp.ID.String()+"/scores", token, `{"scores":{"`+uuid.NewString()+`":1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPatch, "/api/v1/opportunities/"+opp.ID.String(), token, `{"horizon":"now"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/api/v1/roadmap", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rm := decode[scoring.Roadmap](t, rec)
	found := false
	for _, o := range rm.Now {
		found = found || o.ID == opp.ID
	}
	assert.True(t, found)

	rec = do(s, http.MethodDelete, "/api/v1/opportunities/"+opp.ID.String(), token, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(s, http.MethodGet, "/api/v1/feedback/"+item.ID.String(), token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.FeedbackNew, decode[models.FeedbackItem](t, rec).Status)

	rec = do(s, http.MethodDelete, "/api/v1/dimensions/"+dim.ID.String(), token, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIntegration_ImportAndCluster(t *testing.T) {
	s, token := integrationServer(t)
	suffix := uuid.NewString()[:8]

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title_column", "Summary"))
	require.NoError(t, mw.WriteField("description_column", "Details"))
	fw, err := mw.CreateFormFile("file", "tickets.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Summary;Details;Plan\nSlow export " + suffix + ";takes minutes;pro\n;blank title;free\nExport fails " + suffix + ";timeout;team\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	imp := decode[models.ImportRecord](t, rec)
	assert.Equal(t, 2, imp.RowCount)
	assert.Equal(t, 1, imp.SkippedCount)

	rec = do(s, http.MethodGet, "/api/v1/feedback?q="+suffix+"&pageSize=10", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[feedback.ListResult](t, rec)
	require.Equal(t, 2, page.Total)

	ids := `"` + page.Items[0].ID.String() + `","` + page.Items[1].ID.String() + `"`
	rec = do(s, http.MethodPost, "/api/v1/cluster/apply", token, `{"clusters":[{"title":"Export performance","feedback_ids":[`+ids+`]}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	applied := decode[applyResponse](t, rec)
	require.Len(t, applied.Opportunities, 1)
	assert.Equal(t, 2, applied.LinkedFeedback)
	assert.Equal(t, 2, applied.Opportunities[0].FeedbackCount)

	rec = do(s, http.MethodGet, "/api/v1/feedback/"+page.Items[0].ID.String(), token, "")
	assert.Equal(t, models.FeedbackReviewed, decode[models.FeedbackItem](t, rec).Status)

	rec = do(s, http.MethodDelete, "/api/v1/imports/"+imp.ID.String(), token, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(s, http.MethodGet, "/api/v1/opportunities/"+applied.Opportunities[0].ID.String(), token, "")
	require.Equal(t, http.StatusOK, rec.Code, "opportunities survive their import")
	assert.Empty(t, decode[opportunityDetail](t, rec).Feedback)
}

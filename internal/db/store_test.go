package db

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"

	"github.com/david/feedback-triage/internal/feedback"
	"github.com/david/feedback-triage/internal/models"
)

func buildFeedbackSelect(c feedback.Criteria, dir feedback.SortDir) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("f.id").From("feedback_items f")
	if where := feedbackWhere(sb, c); len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy(feedbackOrder(dir)...)
	return sb.Build()
}

func TestFeedbackWhere_ProductsOrUnassigned(t *testing.T) {
	oppID := uuid.New()
	query, args := buildFeedbackSelect(feedback.Criteria{
		ProductIDs:        []uuid.UUID{uuid.New(), uuid.New()},
		ProductUnassigned: true,
		Status:            models.FeedbackNew,
		OpportunityID:     &oppID,
	}, feedback.SortDesc)

	for _, token := range []string{
		"f.product_id IN (",
		"f.product_id IS NULL",
		" OR ",
		"f.status = ",
		"EXISTS (SELECT 1 FROM feedback_opportunities fo WHERE fo.feedback_id = f.id AND fo.opportunity_id = $",
		"ORDER BY f.created_at DESC, f.id DESC",
	} {
		assert.Contains(t, query, token)
	}
	assert.NotContains(t, query, "NOT EXISTS")
	assert.Len(t, args, 4)
	assert.Equal(t, oppID.String(), args[3])
}

func TestFeedbackWhere_Empty(t *testing.T) {
	query, args := buildFeedbackSelect(feedback.Criteria{OpportunityUnassigned: true}, feedback.SortAsc)
	assert.Contains(t, query, "NOT EXISTS")
	assert.Contains(t, query, "ORDER BY f.created_at ASC, f.id ASC")
	assert.NotContains(t, query, "product_id")
	assert.Empty(t, args)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% \_done\\`, escapeLike(`100% _done\`))
	assert.False(t, strings.ContainsAny(escapeLike("plain"), `\`))
}

func TestDecodeMetadata(t *testing.T) {
	assert.Equal(t, map[string]string{"plan": "pro"}, decodeMetadata([]byte(`{"plan":"pro"}`)))
	assert.Nil(t, decodeMetadata([]byte(`[1,2]`)))
	assert.Nil(t, decodeMetadata(nil))
}

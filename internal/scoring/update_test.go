package scoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/feedback-triage/internal/models"
)

func ptr(f float64) *float64 { return &f }

func TestApply(t *testing.T) {
	scale := dim(models.DimensionScale, models.DirectionBenefit, 1)
	yesno := dim(models.DimensionYesNo, models.DirectionBenefit, 1)
	dims := []models.Dimension{scale, yesno}

	existing := models.ScoreMap{scale.ID.String(): 1, yesno.ID.String(): 1}
	expl := models.ExplanationMap{scale.ID.String(): "old"}

	scores, explanations, err := Apply(existing, expl, ScoreUpdate{
		Scores:       map[string]*float64{scale.ID.String(): ptr(3), yesno.ID.String(): nil},
		Explanations: map[string]string{scale.ID.String(): "  new  "},
	}, dims)
	require.NoError(t, err)

	assert.Equal(t, models.ScoreMap{scale.ID.String(): 3}, scores)
	assert.Equal(t, models.ExplanationMap{scale.ID.String(): "new"}, explanations)
	assert.Equal(t, 1.0, existing[scale.ID.String()], "input map must not change")
}

func TestApply_Rejects(t *testing.T) {
	scale := dim(models.DimensionScale, models.DirectionBenefit, 1)
	yesno := dim(models.DimensionYesNo, models.DirectionBenefit, 1)
	dims := []models.Dimension{scale, yesno}

	tests := []struct {
		name string
		u    ScoreUpdate
	}{
		{"unknown dimension", ScoreUpdate{Scores: map[string]*float64{uuid.NewString(): ptr(1)}}},
		{"scale out of range", ScoreUpdate{Scores: map[string]*float64{scale.ID.String(): ptr(0)}}},
		{"yesno out of range", ScoreUpdate{Scores: map[string]*float64{yesno.ID.String(): ptr(2)}}},
		{"fractional scale", ScoreUpdate{Scores: map[string]*float64{scale.ID.String(): ptr(2.5)}}},
		{"explanation for unknown dimension", ScoreUpdate{Explanations: map[string]string{"nope": "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Apply(nil, nil, tt.u, dims)
			assert.Error(t, err)
		})
	}
}

func TestSortAndGroupDimensions(t *testing.T) {
	dims := []models.Dimension{
		{Name: "Reach", Order: 2, Tag: "Impact"},
		{Name: "effort", Order: 1, Tag: "Cost"},
		{Name: "Confidence", Order: 2, Tag: ""},
		{Name: "Revenue", Order: 0, Tag: "Impact"},
	}
	SortDimensions(dims)

	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"Revenue", "effort", "Confidence", "Reach"}, names)

	groups := GroupByTag(dims)
	require.Len(t, groups, 3)
	assert.Equal(t, "Impact", groups[0].Tag)
	assert.Len(t, groups[0].Dimensions, 2)
	assert.Equal(t, "Cost", groups[1].Tag)
	assert.Equal(t, models.DefaultDimensionTag, groups[2].Tag)
}

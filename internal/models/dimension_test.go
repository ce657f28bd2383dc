package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDimension(t *testing.T) {
	d := NormalizeDimension(Dimension{Name: "  Reach ", Type: "bogus", Direction: "COST", Weight: -2})
	assert.Equal(t, "Reach", d.Name)
	assert.Equal(t, DimensionYesNo, d.Type)
	assert.Equal(t, DirectionBenefit, d.Direction)
	assert.Equal(t, 1.0, d.Weight)
	assert.Equal(t, DefaultDimensionTag, d.Tag)

	d = NormalizeDimension(Dimension{Name: "Effort", Type: DimensionScale, Direction: DirectionCost, Weight: 2.5, Tag: "Cost"})
	assert.Equal(t, DimensionScale, d.Type)
	assert.Equal(t, DirectionCost, d.Direction)
	assert.Equal(t, 2.5, d.Weight)
	assert.Equal(t, "Cost", d.Tag)
}

func TestStatusValidity(t *testing.T) {
	assert.True(t, FeedbackReviewed.Valid())
	assert.False(t, FeedbackStatus("archived").Valid())
	assert.True(t, OpportunityOnRoadmap.Valid())
	assert.False(t, Horizon("someday").Valid())
}

package main

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/models"
	"github.com/david/feedback-triage/internal/products"
)

func TestRenderRanking(t *testing.T) {
	var buf bytes.Buffer
	renderRanking(&buf, []rankRow{
		{Title: "Faster exports", Score: 7.5, Feedback: 12, Horizon: "now", Status: "approved"},
		{Title: "Dark mode", Score: 2},
	}, 9)

	out := buf.String()
	assert.Contains(t, out, "Faster exports")
	assert.Contains(t, out, "7.5")
	assert.Contains(t, out, "2.0")
	assert.Contains(t, out, "9.0")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Faster exports")), bytes.Index(buf.Bytes(), []byte("Dark mode")))
}

func TestRenderProductTree(t *testing.T) {
	root := models.Product{ID: uuid.New(), Name: "Platform"}
	child := models.Product{ID: uuid.New(), Name: "API", ParentID: &root.ID}
	flat := []models.Product{root, child}
	counts := products.Rollup(flat, map[uuid.UUID]products.Counts{child.ID: {Feedback: 3}})

	var buf bytes.Buffer
	renderProductTree(&buf, products.BuildTree(flat), counts)
	out := buf.String()
	assert.Contains(t, out, "Platform (3 feedback, 0 opportunities)")
	assert.Contains(t, out, "API (3 feedback, 0 opportunities)")

	buf.Reset()
	renderProductTree(&buf, nil, nil)
	assert.Equal(t, "no products\n", buf.String())
}

func TestRenderStats(t *testing.T) {
	var buf bytes.Buffer
	renderStats(&buf, &db.Stats{Feedback: 42, FeedbackUnassigned: 5})
	assert.Contains(t, buf.String(), "Feedback unassigned")
	assert.Contains(t, buf.String(), "42")
}

package products

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/feedback-triage/internal/models"
)

func product(name string, parent *models.Product) models.Product {
	p := models.Product{ID: uuid.New(), Name: name}
	if parent != nil {
		id := parent.ID
		p.ParentID = &id
	}
	return p
}

func TestBuildTree(t *testing.T) {
	web := product("Web", nil)
	api := product("api", nil)
	checkout := product("Checkout", &web)
	account := product("Account", &web)
	cart := product("Cart", &checkout)
	missing := uuid.New()
	orphan := models.Product{ID: uuid.New(), Name: "Orphan", ParentID: &missing}

	roots := BuildTree([]models.Product{cart, web, checkout, orphan, api, account})

	require.Len(t, roots, 3)
	assert.Equal(t, "api", roots[0].Name)
	assert.Equal(t, "Orphan", roots[1].Name)
	assert.Equal(t, "Web", roots[2].Name)

	require.Len(t, roots[2].Children, 2)
	assert.Equal(t, "Account", roots[2].Children[0].Name)
	assert.Equal(t, "Checkout", roots[2].Children[1].Name)
	require.Len(t, roots[2].Children[1].Children, 1)
	assert.Equal(t, "Cart", roots[2].Children[1].Children[0].Name)
}

func TestBuildTree_Empty(t *testing.T) {
	assert.Empty(t, BuildTree(nil))
	assert.NotNil(t, BuildTree(nil))
}

func TestDescendantIDs(t *testing.T) {
	p1 := product("P1", nil)
	p1a := product("P1a", &p1)
	p1ai := product("P1a-i", &p1a)
	p2 := product("P2", nil)
	flat := []models.Product{p1, p1a, p1ai, p2}

	assert.Equal(t, []uuid.UUID{p1a.ID, p1ai.ID}, DescendantIDs(flat, p1.ID))
	assert.Equal(t, []uuid.UUID{p1ai.ID}, DescendantIDs(flat, p1a.ID))
	assert.Empty(t, DescendantIDs(flat, p2.ID))
	assert.Empty(t, DescendantIDs(flat, uuid.New()))

	expanded := ExpandWithDescendants(flat, []uuid.UUID{p1a.ID, p1.ID, p2.ID})
	assert.ElementsMatch(t, []uuid.UUID{p1.ID, p1a.ID, p1ai.ID, p2.ID}, expanded)
	assert.Len(t, expanded, 4)
}

func TestDescendantIDs_ToleratesCorruptCycle(t *testing.T) {
	a := product("A", nil)
	b := product("B", &a)
	a.ParentID = &b.ID

	assert.Equal(t, []uuid.UUID{b.ID}, DescendantIDs([]models.Product{a, b}, a.ID))
	assert.Equal(t, []uuid.UUID{b.ID}, AncestorIDs([]models.Product{a, b}, a.ID))
}

func TestAncestorIDs(t *testing.T) {
	p1 := product("P1", nil)
	p1a := product("P1a", &p1)
	p1ai := product("P1a-i", &p1a)
	flat := []models.Product{p1, p1a, p1ai}

	assert.Equal(t, []uuid.UUID{p1a.ID, p1.ID}, AncestorIDs(flat, p1ai.ID))
	assert.Empty(t, AncestorIDs(flat, p1.ID))
}

func TestWouldCreateCycle(t *testing.T) {
	x := product("X", nil)
	child := product("child", &x)
	grandchild := product("grandchild", &child)
	other := product("other", nil)
	flat := []models.Product{x, child, grandchild, other}

	assert.True(t, WouldCreateCycle(flat, x.ID, x.ID), "self parenting")
	assert.True(t, WouldCreateCycle(flat, x.ID, child.ID), "direct child")
	assert.True(t, WouldCreateCycle(flat, x.ID, grandchild.ID), "deep descendant")
	assert.False(t, WouldCreateCycle(flat, x.ID, other.ID))
	assert.False(t, WouldCreateCycle(flat, grandchild.ID, other.ID))
	assert.False(t, WouldCreateCycle(flat, other.ID, grandchild.ID))
}

func TestWouldCreateCycle_PreexistingLoop(t *testing.T) {
	a := product("A", nil)
	b := product("B", &a)
	a.ParentID = &b.ID
	c := product("C", nil)

	assert.True(t, WouldCreateCycle([]models.Product{a, b, c}, c.ID, a.ID))
}

func TestRollup(t *testing.T) {
	p1 := product("P1", nil)
	p1a := product("P1a", &p1)
	p1ai := product("P1a-i", &p1a)
	flat := []models.Product{p1, p1a, p1ai}

	direct := map[uuid.UUID]Counts{
		p1.ID:   {Feedback: 1},
		p1a.ID:  {Feedback: 2, Opportunities: 1},
		p1ai.ID: {Feedback: 4, Imports: 1},
	}

	rolled := Rollup(flat, direct)
	assert.Equal(t, Counts{Feedback: 7, Opportunities: 1, Imports: 1}, rolled[p1.ID])
	assert.Equal(t, Counts{Feedback: 6, Opportunities: 1, Imports: 1}, rolled[p1a.ID])
	assert.Equal(t, Counts{Feedback: 4, Imports: 1}, rolled[p1ai.ID])

	summaries := Summarize(flat, direct)
	require.Len(t, summaries, 3)
	assert.Equal(t, Counts{Feedback: 1}, summaries[0].Counts)
	assert.Equal(t, []uuid.UUID{p1a.ID, p1.ID}, summaries[2].Ancestors)
}

func TestBuildTree_KeepsNodesOnCorruptCycle(t *testing.T) {
	a := product("A", nil)
	b := product("B", &a)
	a.ParentID = &b.ID
	c := product("C", &b)

	roots := BuildTree([]models.Product{a, b, c})
	require.Len(t, roots, 2)
	assert.Equal(t, "A", roots[0].Name)
	assert.Equal(t, "B", roots[1].Name)
	require.Len(t, roots[1].Children, 1)
	assert.Equal(t, "C", roots[1].Children[0].Name)
}

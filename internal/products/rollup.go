package products

import (
	"github.com/google/uuid"

	"github.com/david/feedback-triage/internal/models"
)

// Counts are the per-product aggregates shown in settings and navigation.
type Counts struct {
	Feedback      int `json:"feedback"`
	Opportunities int `json:"opportunities"`
	Imports       int `json:"imports"`
}

func (c Counts) add(o Counts) Counts {
	return Counts{
		Feedback:      c.Feedback + o.Feedback,
		Opportunities: c.Opportunities + o.Opportunities,
		Imports:       c.Imports + o.Imports,
	}
}

// Summary is a product with its direct and rolled-up counts.
type Summary struct {
	models.Product
	Counts       Counts      `json:"counts"`
	RollupCounts Counts      `json:"rollup_counts"`
	Ancestors    []uuid.UUID `json:"ancestor_ids"`
}

// Rollup sums direct counts over each product and all of its descendants.
func Rollup(flat []models.Product, direct map[uuid.UUID]Counts) map[uuid.UUID]Counts {
	out := make(map[uuid.UUID]Counts, len(flat))
	for _, p := range flat {
		total := direct[p.ID]
		for _, d := range DescendantIDs(flat, p.ID) {
			total = total.add(direct[d])
		}
		out[p.ID] = total
	}
	return out
}

// Summarize pairs each product with its direct and rollup counts, keeping input order.
func Summarize(flat []models.Product, direct map[uuid.UUID]Counts) []Summary {
	rolled := Rollup(flat, direct)
	out := make([]Summary, 0, len(flat))
	for _, p := range flat {
		out = append(out, Summary{
			Product:      p,
			Counts:       direct[p.ID],
			RollupCounts: rolled[p.ID],
			Ancestors:    AncestorIDs(flat, p.ID),
		})
	}
	return out
}

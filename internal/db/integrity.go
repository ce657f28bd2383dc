package db

import (
	"context"
	"fmt"

	"github.com/david/feedback-triage/internal/products"
)

// IntegrityReport lists states the API never produces but that direct SQL
// edits or partial restores can leave behind.
type IntegrityReport struct {
	ReviewedWithoutLinks int      `json:"reviewed_without_links"`
	StaleScoreEntities   int      `json:"stale_score_entities"`
	ProductsOnCycle      []string `json:"products_on_cycle"`
}

func (r IntegrityReport) Clean() bool {
	return r.ReviewedWithoutLinks == 0 && len(r.ProductsOnCycle) == 0
}

// CheckIntegrity inspects link status consistency, score keys of deleted
// dimensions and parent cycles.
func (s *Store) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	rep := &IntegrityReport{ProductsOnCycle: []string{}}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM feedback_items f
		WHERE f.status = 'reviewed'
		  AND NOT EXISTS (SELECT 1 FROM feedback_opportunities fo WHERE fo.feedback_id = f.id)
	`).Scan(&rep.ReviewedWithoutLinks)
	if err != nil {
		return nil, fmt.Errorf("count reviewed without links: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM opportunities o WHERE EXISTS (
				SELECT 1 FROM jsonb_object_keys(o.scores) k
				WHERE k NOT IN (SELECT id::text FROM dimensions)))
			+
			(SELECT COUNT(*) FROM features f WHERE EXISTS (
				SELECT 1 FROM jsonb_object_keys(f.scores) k
				WHERE k NOT IN (SELECT id::text FROM dimensions)))
	`).Scan(&rep.StaleScoreEntities)
	if err != nil {
		return nil, fmt.Errorf("count stale scores: %w", err)
	}

	flat, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range flat {
		if p.ParentID != nil && products.WouldCreateCycle(flat, p.ID, *p.ParentID) {
			rep.ProductsOnCycle = append(rep.ProductsOnCycle, p.Name)
		}
	}
	return rep, nil
}

// RevertUnlinkedReviewed sets reviewed feedback without links back to new.
func (s *Store) RevertUnlinkedReviewed(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE feedback_items f SET status = 'new'
		WHERE f.status = 'reviewed'
		  AND NOT EXISTS (SELECT 1 FROM feedback_opportunities fo WHERE fo.feedback_id = f.id)
	`)
	if err != nil {
		return 0, fmt.Errorf("revert unlinked reviewed feedback: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

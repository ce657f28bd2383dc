package db

import (
	"context"
	"fmt"
)

type Stats struct {
	Feedback           int `json:"feedback"`
	FeedbackNew        int `json:"feedback_new"`
	FeedbackReviewed   int `json:"feedback_reviewed"`
	FeedbackRejected   int `json:"feedback_rejected"`
	FeedbackUnassigned int `json:"feedback_unassigned"`
	Opportunities      int `json:"opportunities"`
	Features           int `json:"features"`
	Products           int `json:"products"`
	Imports            int `json:"imports"`
	Dimensions         int `json:"dimensions"`
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM feedback_items),
			(SELECT COUNT(*) FROM feedback_items WHERE status = 'new'),
			(SELECT COUNT(*) FROM feedback_items WHERE status = 'reviewed'),
			(SELECT COUNT(*) FROM feedback_items WHERE status = 'rejected'),
			(SELECT COUNT(*) FROM feedback_items f WHERE NOT EXISTS (SELECT 1 FROM feedback_opportunities fo WHERE fo.feedback_id = f.id)),
			(SELECT COUNT(*) FROM opportunities),
			(SELECT COUNT(*) FROM features),
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM imports),
			(SELECT COUNT(*) FROM dimensions)
	`).Scan(&st.Feedback, &st.FeedbackNew, &st.FeedbackReviewed, &st.FeedbackRejected, &st.FeedbackUnassigned,
		&st.Opportunities, &st.Features, &st.Products, &st.Imports, &st.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	return &st, nil
}

package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/models"
)

// FeedbackPatch carries the mutable fields of a feedback item. ProductID is
// applied only when SetProduct is true; a nil ProductID then clears it.
type FeedbackPatch struct {
	Status     *models.FeedbackStatus
	SetProduct bool
	ProductID  *uuid.UUID
}

func (s *Store) GetFeedback(ctx context.Context, id uuid.UUID) (*models.FeedbackItem, error) {
	return getFeedback(ctx, s, s.pool, id)
}

func getFeedback(ctx context.Context, s *Store, q querier, id uuid.UUID) (*models.FeedbackItem, error) {
	items, err := s.queryFeedback(ctx, q, `SELECT `+feedbackCols+` FROM feedback_items f WHERE f.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("feedback")
	}
	return &items[0], nil
}

func encodeMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func (s *Store) CreateFeedback(ctx context.Context, in models.FeedbackItem) (*models.FeedbackItem, error) {
	meta, err := encodeMetadata(in.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	var id uuid.UUID
	err = s.pool.QueryRow(ctx, `
		INSERT INTO feedback_items (title, description, metadata, status, product_id)
		VALUES ($1, $2, $3, 'new', $4)
		RETURNING id
	`, in.Title, nilIfEmpty(in.Description), meta, in.ProductID).Scan(&id)
	if isForeignKeyViolation(err) {
		return nil, apperr.Validation("unknown product")
	}
	if err != nil {
		return nil, fmt.Errorf("insert feedback: %w", err)
	}
	return s.GetFeedback(ctx, id)
}

func linkCount(ctx context.Context, q querier, feedbackID uuid.UUID) (int, error) {
	var n int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM feedback_opportunities WHERE feedback_id = $1`, feedbackID).Scan(&n)
	return n, err
}

func lockFeedback(ctx context.Context, tx pgx.Tx, id uuid.UUID) (models.FeedbackStatus, error) {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM feedback_items WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if isNoRows(err) {
		return "", apperr.NotFound("feedback")
	}
	return models.FeedbackStatus(status), err
}

func (s *Store) UpdateFeedback(ctx context.Context, id uuid.UUID, p FeedbackPatch) (*models.FeedbackItem, error) {
	var out *models.FeedbackItem
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockFeedback(ctx, tx, id); err != nil {
			return err
		}

		if p.Status != nil {
			if !p.Status.Valid() {
				return apperr.Validation("invalid status %q", *p.Status)
			}
			if *p.Status == models.FeedbackReviewed {
				n, err := linkCount(ctx, tx, id)
				if err != nil {
					return err
				}
				if n == 0 {
					return apperr.Validation("feedback must be linked to an opportunity before it is marked reviewed")
				}
			}
			if _, err := tx.Exec(ctx, `UPDATE feedback_items SET status = $2 WHERE id = $1`, id, string(*p.Status)); err != nil {
				return fmt.Errorf("update feedback status: %w", err)
			}
		}

		if p.SetProduct {
			_, err := tx.Exec(ctx, `UPDATE feedback_items SET product_id = $2 WHERE id = $1`, id, p.ProductID)
			if isForeignKeyViolation(err) {
				return apperr.Validation("unknown product")
			}
			if err != nil {
				return fmt.Errorf("update feedback product: %w", err)
			}
		}

		item, err := getFeedback(ctx, s, tx, id)
		out = item
		return err
	})
	return out, err
}

func opportunityExists(ctx context.Context, q querier, id uuid.UUID) error {
	var ok bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM opportunities WHERE id = $1)`, id).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("opportunity")
	}
	return nil
}

func linkAndReview(ctx context.Context, tx pgx.Tx, feedbackID, opportunityID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO feedback_opportunities (feedback_id, opportunity_id)
		VALUES ($1, $2)
		ON CONFLICT (feedback_id, opportunity_id) DO NOTHING
	`, feedbackID, opportunityID); err != nil {
		return fmt.Errorf("link feedback: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE feedback_items SET status = 'reviewed' WHERE id = $1`, feedbackID); err != nil {
		return fmt.Errorf("mark feedback reviewed: %w", err)
	}
	return nil
}

// LinkFeedback attaches feedback to an opportunity and marks it reviewed.
// Linking an existing pair is a no-op apart from the status.
func (s *Store) LinkFeedback(ctx context.Context, feedbackID, opportunityID uuid.UUID) (*models.FeedbackItem, error) {
	var out *models.FeedbackItem
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockFeedback(ctx, tx, feedbackID); err != nil {
			return err
		}
		if err := opportunityExists(ctx, tx, opportunityID); err != nil {
			return err
		}
		if err := linkAndReview(ctx, tx, feedbackID, opportunityID); err != nil {
			return err
		}
		item, err := getFeedback(ctx, s, tx, feedbackID)
		out = item
		return err
	})
	return out, err
}

// revertIfOrphaned sets feedback without any remaining link back to new,
// optionally only when it is currently reviewed.
func revertIfOrphaned(ctx context.Context, q querier, ids []uuid.UUID, onlyReviewed bool) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE feedback_items f SET status = 'new'
		WHERE f.id = ANY($1::uuid[])
		  AND NOT EXISTS (SELECT 1 FROM feedback_opportunities fo WHERE fo.feedback_id = f.id)`
	if onlyReviewed {
		query += ` AND f.status = 'reviewed'`
	}
	if _, err := q.Exec(ctx, query, uuidStrings(ids)); err != nil {
		return fmt.Errorf("revert orphaned feedback: %w", err)
	}
	return nil
}

func (s *Store) UnlinkFeedback(ctx context.Context, feedbackID, opportunityID uuid.UUID) (*models.FeedbackItem, error) {
	var out *models.FeedbackItem
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockFeedback(ctx, tx, feedbackID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM feedback_opportunities WHERE feedback_id = $1 AND opportunity_id = $2
		`, feedbackID, opportunityID); err != nil {
			return fmt.Errorf("unlink feedback: %w", err)
		}
		if err := revertIfOrphaned(ctx, tx, []uuid.UUID{feedbackID}, true); err != nil {
			return err
		}
		item, err := getFeedback(ctx, s, tx, feedbackID)
		out = item
		return err
	})
	return out, err
}

func (s *Store) BulkRejectFeedback(ctx context.Context, ids []uuid.UUID) (*BulkResult, error) {
	res := &BulkResult{Errors: []string{}}
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, id := range ids {
			tag, err := tx.Exec(ctx, `UPDATE feedback_items SET status = 'rejected' WHERE id = $1`, id)
			if err != nil {
				return fmt.Errorf("reject feedback %s: %w", id, err)
			}
			if tag.RowsAffected() == 0 {
				res.Errors = append(res.Errors, id.String()+": not found")
				continue
			}
			res.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) BulkAssignFeedback(ctx context.Context, ids []uuid.UUID, opportunityID uuid.UUID) (*BulkResult, error) {
	res := &BulkResult{Errors: []string{}}
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if err := opportunityExists(ctx, tx, opportunityID); err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := lockFeedback(ctx, tx, id); err != nil {
				if apperr.IsNotFound(err) {
					res.Errors = append(res.Errors, id.String()+": not found")
					continue
				}
				return err
			}
			if err := linkAndReview(ctx, tx, id, opportunityID); err != nil {
				return err
			}
			res.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// MarkFeedbackReviewed sets status reviewed on every id in one statement.
func (s *Store) MarkFeedbackReviewed(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `UPDATE feedback_items SET status = 'reviewed' WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		return 0, fmt.Errorf("mark feedback reviewed: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListClusterCandidates returns non-rejected feedback for clustering, newest
// first. productIDs must already include descendants.
func (s *Store) ListClusterCandidates(ctx context.Context, productIDs []uuid.UUID, onlyUnassigned bool, limit int) ([]models.FeedbackItem, error) {
	query := `SELECT ` + feedbackCols + ` FROM feedback_items f WHERE f.status <> 'rejected'`
	args := []any{}
	argIdx := 1
	if len(productIDs) > 0 {
		query += fmt.Sprintf(" AND f.product_id = ANY($%d::uuid[])", argIdx)
		args = append(args, uuidStrings(productIDs))
		argIdx++
	}
	if onlyUnassigned {
		query += " AND NOT EXISTS (SELECT 1 FROM feedback_opportunities fo WHERE fo.feedback_id = f.id)"
	}
	query += fmt.Sprintf(" ORDER BY f.created_at DESC, f.id DESC LIMIT $%d", argIdx)
	args = append(args, limit)

	return s.queryFeedback(ctx, s.pool, query, args...)
}

package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/models"
	"github.com/david/feedback-triage/internal/scoring"
)

// OpportunityFilter narrows ListOpportunities. ProductIDs must already include
// descendants. Horizon "none" selects opportunities without a horizon.
type OpportunityFilter struct {
	ProductIDs []uuid.UUID
	Status     string
	Horizon    string
}

type OpportunityPatch struct {
	Title       *string
	Description *string
	SetProduct  bool
	ProductID   *uuid.UUID
	SetHorizon  bool
	Horizon     *models.Horizon
	Quarter     *string
	Status      *models.OpportunityStatus
}

// OpportunityDraft is an opportunity to create together with its feedback links.
type OpportunityDraft struct {
	Title       string
	Description string
	ProductID   *uuid.UUID
	FeedbackIDs []uuid.UUID
}

const opportunityCols = `o.id, o.title, o.description, o.product_id, o.scores, o.explanations,
	o.report_summary, o.horizon, o.quarter, o.status, o.created_at, o.updated_at,
	(SELECT COUNT(*) FROM feedback_opportunities fo WHERE fo.opportunity_id = o.id) AS feedback_count`

func scanOpportunity(scan func(dest ...any) error) (models.Opportunity, error) {
	var o models.Opportunity
	var description, reportSummary, horizon, quarter *string
	var scoresRaw, explanationsRaw []byte
	var status string

	err := scan(
		&o.ID, &o.Title, &description, &o.ProductID, &scoresRaw, &explanationsRaw,
		&reportSummary, &horizon, &quarter, &status, &o.CreatedAt, &o.UpdatedAt,
		&o.FeedbackCount,
	)
	if err != nil {
		return o, err
	}

	o.Description = deref(description)
	o.ReportSummary = deref(reportSummary)
	o.Quarter = deref(quarter)
	o.Status = models.OpportunityStatus(status)
	if horizon != nil {
		h := models.Horizon(*horizon)
		o.Horizon = &h
	}
	o.Scores = scoring.ParseScores(scoresRaw)
	o.Explanations = scoring.ParseExplanations(explanationsRaw)
	return o, nil
}

func queryOpportunities(ctx context.Context, q querier, query string, args ...any) ([]models.Opportunity, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query opportunities: %w", err)
	}
	defer rows.Close()

	opps := []models.Opportunity{}
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, err
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

func (s *Store) ListOpportunities(ctx context.Context, f OpportunityFilter) ([]models.Opportunity, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(opportunityCols).From("opportunities o")

	var where []string
	if len(f.ProductIDs) > 0 {
		where = append(where, sb.In("o.product_id", uuidArgs(f.ProductIDs)...))
	}
	if f.Status != "" {
		where = append(where, sb.Equal("o.status", f.Status))
	}
	switch f.Horizon {
	case "":
	case "none":
		where = append(where, sb.IsNull("o.horizon"))
	default:
		where = append(where, sb.Equal("o.horizon", f.Horizon))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy("o.created_at DESC", "o.id DESC")

	query, args := sb.Build()
	return queryOpportunities(ctx, s.pool, query, args...)
}

func getOpportunity(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*models.Opportunity, error) {
	query := `SELECT ` + opportunityCols + ` FROM opportunities o WHERE o.id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	opps, err := queryOpportunities(ctx, q, query, id)
	if err != nil {
		return nil, err
	}
	if len(opps) == 0 {
		return nil, apperr.NotFound("opportunity")
	}
	return &opps[0], nil
}

func (s *Store) GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	return getOpportunity(ctx, s.pool, id, false)
}

// OpportunityFeedback returns the feedback linked to an opportunity, newest first.
func (s *Store) OpportunityFeedback(ctx context.Context, id uuid.UUID) ([]models.FeedbackItem, error) {
	items, err := s.queryFeedback(ctx, s.pool, `
		SELECT `+feedbackCols+`
		FROM feedback_items f
		JOIN feedback_opportunities fo ON fo.feedback_id = f.id
		WHERE fo.opportunity_id = $1
		ORDER BY f.created_at DESC, f.id DESC
	`, id)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.FeedbackItem{}
	}
	return items, nil
}

func insertOpportunity(ctx context.Context, q querier, title, description string, productID *uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.QueryRow(ctx, `
		INSERT INTO opportunities (title, description, product_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`, title, nilIfEmpty(description), productID).Scan(&id)
	if isForeignKeyViolation(err) {
		return uuid.Nil, apperr.Validation("unknown product")
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert opportunity: %w", err)
	}
	return id, nil
}

func (s *Store) CreateOpportunity(ctx context.Context, title, description string, productID *uuid.UUID) (*models.Opportunity, error) {
	id, err := insertOpportunity(ctx, s.pool, title, description, productID)
	if err != nil {
		return nil, err
	}
	return s.GetOpportunity(ctx, id)
}

func (s *Store) UpdateOpportunity(ctx context.Context, id uuid.UUID, p OpportunityPatch) (*models.Opportunity, error) {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("opportunities")
	assignments := []string{ub.Assign("updated_at", sqlbuilder.Raw("NOW()"))}
	if p.Title != nil {
		assignments = append(assignments, ub.Assign("title", *p.Title))
	}
	if p.Description != nil {
		assignments = append(assignments, ub.Assign("description", nilIfEmpty(*p.Description)))
	}
	if p.SetProduct {
		var product any
		if p.ProductID != nil {
			product = p.ProductID.String()
		}
		assignments = append(assignments, ub.Assign("product_id", product))
	}
	if p.SetHorizon {
		var horizon any
		if p.Horizon != nil {
			if !p.Horizon.Valid() {
				return nil, apperr.Validation("invalid horizon %q", *p.Horizon)
			}
			horizon = string(*p.Horizon)
		}
		assignments = append(assignments, ub.Assign("horizon", horizon))
	}
	if p.Quarter != nil {
		assignments = append(assignments, ub.Assign("quarter", nilIfEmpty(*p.Quarter)))
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, apperr.Validation("invalid status %q", *p.Status)
		}
		assignments = append(assignments, ub.Assign("status", string(*p.Status)))
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id.String()))

	query, args := ub.Build()
	tag, err := s.pool.Exec(ctx, query, args...)
	if isForeignKeyViolation(err) {
		return nil, apperr.Validation("unknown product")
	}
	if err != nil {
		return nil, fmt.Errorf("update opportunity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.NotFound("opportunity")
	}
	return s.GetOpportunity(ctx, id)
}

// ScoreMutator transforms the stored score and explanation maps.
type ScoreMutator func(models.ScoreMap, models.ExplanationMap) (models.ScoreMap, models.ExplanationMap, error)

func writeScores(ctx context.Context, tx pgx.Tx, table string, id uuid.UUID, scores models.ScoreMap, explanations models.ExplanationMap) error {
	scoresRaw, err := scoring.EncodeScores(scores)
	if err != nil {
		return err
	}
	explanationsRaw, err := scoring.EncodeExplanations(explanations)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE `+table+` SET scores = $2, explanations = $3, updated_at = NOW() WHERE id = $1`,
		id, scoresRaw, explanationsRaw)
	if err != nil {
		return fmt.Errorf("write %s scores: %w", table, err)
	}
	return nil
}

// UpdateOpportunityScores applies mutate to the stored maps under a row lock.
func (s *Store) UpdateOpportunityScores(ctx context.Context, id uuid.UUID, mutate ScoreMutator) (*models.Opportunity, error) {
	var out *models.Opportunity
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := getOpportunity(ctx, tx, id, true)
		if err != nil {
			return err
		}
		scores, explanations, err := mutate(current.Scores, current.Explanations)
		if err != nil {
			return err
		}
		if err := writeScores(ctx, tx, "opportunities", id, scores, explanations); err != nil {
			return err
		}
		out, err = getOpportunity(ctx, tx, id, false)
		return err
	})
	return out, err
}

// deleteOpportunity removes one opportunity and sets feedback left without
// any link back to new.
func deleteOpportunity(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	rows, err := tx.Query(ctx, `SELECT feedback_id FROM feedback_opportunities WHERE opportunity_id = $1`, id)
	if err != nil {
		return fmt.Errorf("load opportunity links: %w", err)
	}
	linked, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM opportunities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete opportunity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("opportunity")
	}
	return revertIfOrphaned(ctx, tx, linked, false)
}

func (s *Store) DeleteOpportunity(ctx context.Context, id uuid.UUID) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		return deleteOpportunity(ctx, tx, id)
	})
}

func (s *Store) BulkDeleteOpportunities(ctx context.Context, ids []uuid.UUID) (*BulkResult, error) {
	res := &BulkResult{Errors: []string{}}
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, id := range ids {
			err := deleteOpportunity(ctx, tx, id)
			if apperr.IsNotFound(err) {
				res.Errors = append(res.Errors, id.String()+": not found")
				continue
			}
			if err != nil {
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

// MergeOpportunities moves source's feedback links onto target and deletes
// source. Links target already has are kept once.
func (s *Store) MergeOpportunities(ctx context.Context, sourceID, targetID uuid.UUID) (*models.Opportunity, error) {
	if sourceID == targetID {
		return nil, apperr.Validation("cannot merge an opportunity into itself")
	}
	var out *models.Opportunity
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := getOpportunity(ctx, tx, sourceID, true); err != nil {
			return err
		}
		if _, err := getOpportunity(ctx, tx, targetID, true); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO feedback_opportunities (feedback_id, opportunity_id)
			SELECT feedback_id, $2 FROM feedback_opportunities WHERE opportunity_id = $1
			ON CONFLICT (feedback_id, opportunity_id) DO NOTHING
		`, sourceID, targetID); err != nil {
			return fmt.Errorf("move links: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM opportunities WHERE id = $1`, sourceID); err != nil {
			return fmt.Errorf("delete merged opportunity: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE opportunities SET updated_at = NOW() WHERE id = $1`, targetID); err != nil {
			return err
		}
		var err error
		out, err = getOpportunity(ctx, tx, targetID, false)
		return err
	})
	return out, err
}

func (s *Store) SetReportSummary(ctx context.Context, id uuid.UUID, summary string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE opportunities SET report_summary = $2, updated_at = NOW() WHERE id = $1`, id, summary)
	if err != nil {
		return fmt.Errorf("save report summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("opportunity")
	}
	return nil
}

// CreateOpportunitiesWithLinks creates every draft and its links in one
// transaction. It returns the created opportunities and the distinct linked
// feedback ids; statuses are left for the caller to update after commit.
func (s *Store) CreateOpportunitiesWithLinks(ctx context.Context, drafts []OpportunityDraft) ([]models.Opportunity, []uuid.UUID, error) {
	var ids []uuid.UUID
	seen := map[uuid.UUID]bool{}
	var linked []uuid.UUID

	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, d := range drafts {
			id, err := insertOpportunity(ctx, tx, d.Title, d.Description, d.ProductID)
			if err != nil {
				return err
			}
			ids = append(ids, id)
			for _, fid := range d.FeedbackIDs {
				_, err := tx.Exec(ctx, `
					INSERT INTO feedback_opportunities (feedback_id, opportunity_id)
					VALUES ($1, $2)
					ON CONFLICT (feedback_id, opportunity_id) DO NOTHING
				`, fid, id)
				if isForeignKeyViolation(err) {
					return apperr.Validation("unknown feedback %s", fid)
				}
				if err != nil {
					return fmt.Errorf("link cluster feedback: %w", err)
				}
				if !seen[fid] {
					seen[fid] = true
					linked = append(linked, fid)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	opps, err := queryOpportunities(ctx, s.pool,
		`SELECT `+opportunityCols+` FROM opportunities o WHERE o.id = ANY($1::uuid[]) ORDER BY array_position($1::uuid[], o.id)`,
		uuidStrings(ids))
	if err != nil {
		return nil, nil, err
	}
	return opps, linked, nil
}

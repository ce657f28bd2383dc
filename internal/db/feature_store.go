package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/models"
	"github.com/david/feedback-triage/internal/scoring"
)

const featureCols = `id, title, description, scores, explanations, created_at, updated_at`

func scanFeature(scan func(dest ...any) error) (models.Feature, error) {
	var f models.Feature
	var description *string
	var scoresRaw, explanationsRaw []byte
	if err := scan(&f.ID, &f.Title, &description, &scoresRaw, &explanationsRaw, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return f, err
	}
	f.Description = deref(description)
	f.Scores = scoring.ParseScores(scoresRaw)
	f.Explanations = scoring.ParseExplanations(explanationsRaw)
	return f, nil
}

func (s *Store) ListFeatures(ctx context.Context) ([]models.Feature, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+featureCols+` FROM features ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	defer rows.Close()

	features := []models.Feature{}
	for rows.Next() {
		f, err := scanFeature(rows.Scan)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

func getFeature(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*models.Feature, error) {
	query := `SELECT ` + featureCols + ` FROM features WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	f, err := scanFeature(q.QueryRow(ctx, query, id).Scan)
	if isNoRows(err) {
		return nil, apperr.NotFound("feature")
	}
	if err != nil {
		return nil, fmt.Errorf("get feature: %w", err)
	}
	return &f, nil
}

func (s *Store) GetFeature(ctx context.Context, id uuid.UUID) (*models.Feature, error) {
	return getFeature(ctx, s.pool, id, false)
}

func (s *Store) CreateFeature(ctx context.Context, title, description string) (*models.Feature, error) {
	f, err := scanFeature(s.pool.QueryRow(ctx, `
		INSERT INTO features (title, description)
		VALUES ($1, $2)
		RETURNING `+featureCols, title, nilIfEmpty(description)).Scan)
	if err != nil {
		return nil, fmt.Errorf("insert feature: %w", err)
	}
	return &f, nil
}

func (s *Store) UpdateFeature(ctx context.Context, id uuid.UUID, title, description *string) (*models.Feature, error) {
	var desc *string
	if description != nil {
		desc = nilIfEmpty(*description)
	}
	f, err := scanFeature(s.pool.QueryRow(ctx, `
		UPDATE features SET
			title = COALESCE($2, title),
			description = CASE WHEN $3::boolean THEN $4 ELSE description END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+featureCols, id, title, description != nil, desc).Scan)
	if isNoRows(err) {
		return nil, apperr.NotFound("feature")
	}
	if err != nil {
		return nil, fmt.Errorf("update feature: %w", err)
	}
	return &f, nil
}

func (s *Store) UpdateFeatureScores(ctx context.Context, id uuid.UUID, mutate ScoreMutator) (*models.Feature, error) {
	var out *models.Feature
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := getFeature(ctx, tx, id, true)
		if err != nil {
			return err
		}
		scores, explanations, err := mutate(current.Scores, current.Explanations)
		if err != nil {
			return err
		}
		if err := writeScores(ctx, tx, "features", id, scores, explanations); err != nil {
			return err
		}
		out, err = getFeature(ctx, tx, id, false)
		return err
	})
	return out, err
}

func (s *Store) DeleteFeature(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM features WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete feature: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("feature")
	}
	return nil
}

package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/models"
)

type DimensionPatch struct {
	Name      *string
	Type      *string
	Weight    *float64
	Order     *int
	Tag       *string
	Direction *string
}

const dimensionCols = `id, name, type, weight, sort_order, tag, direction, created_at`

func scanDimension(scan func(dest ...any) error) (models.Dimension, error) {
	var d models.Dimension
	var typ, direction string
	if err := scan(&d.ID, &d.Name, &typ, &d.Weight, &d.Order, &d.Tag, &direction, &d.CreatedAt); err != nil {
		return d, err
	}
	d.Type = models.ParseDimensionType(typ)
	d.Direction = models.ParseDirection(direction)
	return d, nil
}

func (s *Store) ListDimensions(ctx context.Context) ([]models.Dimension, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+dimensionCols+` FROM dimensions ORDER BY sort_order, lower(name), id`)
	if err != nil {
		return nil, fmt.Errorf("list dimensions: %w", err)
	}
	defer rows.Close()

	dims := []models.Dimension{}
	for rows.Next() {
		d, err := scanDimension(rows.Scan)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	return dims, rows.Err()
}

// CreateDimension stores d after normalising its type, direction, weight and tag.
func (s *Store) CreateDimension(ctx context.Context, d models.Dimension) (*models.Dimension, error) {
	d = models.NormalizeDimension(d)
	out, err := scanDimension(s.pool.QueryRow(ctx, `
		INSERT INTO dimensions (name, type, weight, sort_order, tag, direction)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+dimensionCols,
		d.Name, string(d.Type), d.Weight, d.Order, d.Tag, string(d.Direction)).Scan)
	if err != nil {
		return nil, fmt.Errorf("insert dimension: %w", err)
	}
	return &out, nil
}

func (s *Store) GetDimension(ctx context.Context, id uuid.UUID) (*models.Dimension, error) {
	d, err := scanDimension(s.pool.QueryRow(ctx, `SELECT `+dimensionCols+` FROM dimensions WHERE id = $1`, id).Scan)
	if isNoRows(err) {
		return nil, apperr.NotFound("dimension")
	}
	if err != nil {
		return nil, fmt.Errorf("get dimension: %w", err)
	}
	return &d, nil
}

func (s *Store) UpdateDimension(ctx context.Context, id uuid.UUID, p DimensionPatch) (*models.Dimension, error) {
	current, err := s.GetDimension(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *current
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Type != nil {
		next.Type = models.DimensionType(*p.Type)
	}
	if p.Weight != nil {
		next.Weight = *p.Weight
	}
	if p.Order != nil {
		next.Order = *p.Order
	}
	if p.Tag != nil {
		next.Tag = *p.Tag
	}
	if p.Direction != nil {
		next.Direction = models.Direction(*p.Direction)
	}
	next = models.NormalizeDimension(next)

	d, err := scanDimension(s.pool.QueryRow(ctx, `
		UPDATE dimensions
		SET name = $2, type = $3, weight = $4, sort_order = $5, tag = $6, direction = $7
		WHERE id = $1
		RETURNING `+dimensionCols,
		id, next.Name, string(next.Type), next.Weight, next.Order, next.Tag, string(next.Direction)).Scan)
	if isNoRows(err) {
		return nil, apperr.NotFound("dimension")
	}
	if err != nil {
		return nil, fmt.Errorf("update dimension: %w", err)
	}
	return &d, nil
}

// DeleteDimension leaves stored scores keyed by id in place.
func (s *Store) DeleteDimension(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dimensions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dimension: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("dimension")
	}
	return nil
}

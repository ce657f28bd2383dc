package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/models"
	"github.com/david/feedback-triage/internal/products"
)

type ProductPatch struct {
	Name        *string
	Description *string
	SetParent   bool
	ParentID    *uuid.UUID
}

const productCols = `id, name, description, parent_id, created_at`

func scanProduct(scan func(dest ...any) error) (models.Product, error) {
	var p models.Product
	var description *string
	if err := scan(&p.ID, &p.Name, &description, &p.ParentID, &p.CreatedAt); err != nil {
		return p, err
	}
	p.Description = deref(description)
	return p, nil
}

func listProducts(ctx context.Context, q querier) ([]models.Product, error) {
	rows, err := q.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY lower(name), id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	list := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	return listProducts(ctx, s.pool)
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1`, id).Scan)
	if isNoRows(err) {
		return nil, apperr.NotFound("product")
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, name, description string, parentID *uuid.UUID) (*models.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `
		INSERT INTO products (name, description, parent_id)
		VALUES ($1, $2, $3)
		RETURNING `+productCols, name, nilIfEmpty(description), parentID).Scan)
	if isForeignKeyViolation(err) {
		return nil, apperr.Validation("parent product not found")
	}
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return &p, nil
}

// UpdateProduct applies p. A parent change that would close a loop is
// rejected before anything is written.
func (s *Store) UpdateProduct(ctx context.Context, id uuid.UUID, p ProductPatch) (*models.Product, error) {
	var out models.Product
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		// concurrent re-parents must not interleave
		if _, err := tx.Exec(ctx, `LOCK TABLE products IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		flat, err := listProducts(ctx, tx)
		if err != nil {
			return err
		}
		var current *models.Product
		for i := range flat {
			if flat[i].ID == id {
				current = &flat[i]
			}
		}
		if current == nil {
			return apperr.NotFound("product")
		}

		next := *current
		if p.Name != nil {
			next.Name = *p.Name
		}
		if p.Description != nil {
			next.Description = *p.Description
		}
		if p.SetParent {
			if p.ParentID != nil {
				if products.WouldCreateCycle(flat, id, *p.ParentID) {
					return apperr.Validation("moving the product under %s would create a cycle", *p.ParentID)
				}
				found := false
				for _, fp := range flat {
					found = found || fp.ID == *p.ParentID
				}
				if !found {
					return apperr.Validation("parent product not found")
				}
			}
			next.ParentID = p.ParentID
		}

		out, err = scanProduct(tx.QueryRow(ctx, `
			UPDATE products SET name = $2, description = $3, parent_id = $4
			WHERE id = $1
			RETURNING `+productCols, id, next.Name, nilIfEmpty(next.Description), next.ParentID).Scan)
		if err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProduct removes a childless product and unassigns its feedback,
// opportunities and imports in the same transaction.
func (s *Store) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		var children int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE parent_id = $1`, id).Scan(&children); err != nil {
			return err
		}
		if children > 0 {
			return apperr.Conflict("product_has_children", "product has child products; move or delete them first")
		}
		for _, table := range []string{"feedback_items", "opportunities", "imports"} {
			if _, err := tx.Exec(ctx, `UPDATE `+table+` SET product_id = NULL WHERE product_id = $1`, id); err != nil {
				return fmt.Errorf("unassign %s: %w", table, err)
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("product")
		}
		return nil
	})
}

// ProductCounts returns the direct feedback, opportunity and import counts per product.
func (s *Store) ProductCounts(ctx context.Context) (map[uuid.UUID]products.Counts, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id,
			(SELECT COUNT(*) FROM feedback_items f WHERE f.product_id = p.id),
			(SELECT COUNT(*) FROM opportunities o WHERE o.product_id = p.id),
			(SELECT COUNT(*) FROM imports i WHERE i.product_id = p.id)
		FROM products p
	`)
	if err != nil {
		return nil, fmt.Errorf("count product usage: %w", err)
	}
	defer rows.Close()

	out := map[uuid.UUID]products.Counts{}
	for rows.Next() {
		var id uuid.UUID
		var c products.Counts
		if err := rows.Scan(&id, &c.Feedback, &c.Opportunities, &c.Imports); err != nil {
			return nil, err
		}
		out[id] = c
	}
	return out, rows.Err()
}

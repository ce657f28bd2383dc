package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/models"
)

const DefaultImportChunkSize = 500

// NewFeedbackRow is one feedback item produced by the CSV importer.
type NewFeedbackRow struct {
	Title       string
	Description string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// CreateImport records the batch and inserts its rows in chunks, all in one
// transaction. Every row inherits the batch product.
func (s *Store) CreateImport(ctx context.Context, rec models.ImportRecord, rows []NewFeedbackRow, chunkSize int) (*models.ImportRecord, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultImportChunkSize
	}

	out := rec
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO imports (filename, product_id, row_count, skipped_count)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, rec.Filename, rec.ProductID, rec.RowCount, rec.SkippedCount).Scan(&out.ID, &out.CreatedAt)
		if isForeignKeyViolation(err) {
			return apperr.Validation("unknown product")
		}
		if err != nil {
			return fmt.Errorf("insert import: %w", err)
		}

		var product any
		if rec.ProductID != nil {
			product = rec.ProductID.String()
		}
		for start := 0; start < len(rows); start += chunkSize {
			end := start + chunkSize
			if end > len(rows) {
				end = len(rows)
			}

			ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
			ib.InsertInto("feedback_items")
			ib.Cols("title", "description", "metadata", "status", "product_id", "import_id", "created_at")
			for _, r := range rows[start:end] {
				meta, err := encodeMetadata(r.Metadata)
				if err != nil {
					return fmt.Errorf("encode metadata: %w", err)
				}
				ib.Values(r.Title, nilIfEmpty(r.Description), meta, string(models.FeedbackNew), product, out.ID.String(), r.CreatedAt)
			}
			query, args := ib.Build()
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("insert feedback chunk %d-%d: %w", start, end, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.FeedbackCount = len(rows)
	return &out, nil
}

func (s *Store) ListImports(ctx context.Context) ([]models.ImportRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT i.id, i.filename, i.product_id, i.row_count, i.skipped_count, i.created_at,
			(SELECT COUNT(*) FROM feedback_items f WHERE f.import_id = i.id)
		FROM imports i
		ORDER BY i.created_at DESC, i.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	list := []models.ImportRecord{}
	for rows.Next() {
		var r models.ImportRecord
		if err := rows.Scan(&r.ID, &r.Filename, &r.ProductID, &r.RowCount, &r.SkippedCount, &r.CreatedAt, &r.FeedbackCount); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// DeleteImport removes the batch; its feedback goes with it through the
// foreign key cascade. Opportunities left without feedback are kept.
func (s *Store) DeleteImport(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM imports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete import: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("import")
	}
	return nil
}

package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/logger"
	"github.com/david/feedback-triage/internal/metrics"
	"github.com/david/feedback-triage/internal/models"
)

// ImportStore persists an import batch with its rows.
type ImportStore interface {
	CreateImport(ctx context.Context, rec models.ImportRecord, rows []db.NewFeedbackRow, chunkSize int) (*models.ImportRecord, error)
}

type Importer struct {
	store     ImportStore
	log       *logger.Logger
	chunkSize int
	now       func() time.Time
}

func NewImporter(store ImportStore, log *logger.Logger, chunkSize int) *Importer {
	return &Importer{store: store, log: log, chunkSize: chunkSize, now: time.Now}
}

// Import parses a CSV stream and stores it as one batch.
func (im *Importer) Import(ctx context.Context, filename string, r io.Reader, m Mapping) (*models.ImportRecord, error) {
	table, err := ParseCSV(r)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	importedAt := im.now().UTC()
	rows, skipped, err := BuildRows(table, m, importedAt)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if len(rows) == 0 {
		return nil, apperr.Validation("no rows with a title to import (%d skipped)", skipped)
	}

	rec, err := im.store.CreateImport(ctx, models.ImportRecord{
		Filename:     filename,
		ProductID:    m.ProductID,
		RowCount:     len(rows),
		SkippedCount: skipped,
	}, rows, im.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("store import: %w", err)
	}

	metrics.ImportedRows.WithLabelValues("imported").Add(float64(len(rows)))
	metrics.ImportedRows.WithLabelValues("skipped").Add(float64(skipped))
	im.log.Info("csv imported", "import_id", rec.ID, "file", filename, "rows", len(rows), "skipped", skipped)
	return rec, nil
}

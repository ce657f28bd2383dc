package ingest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/sanitize"
)

const maxTitleRunes = 500

// Mapping tells the importer which columns carry which fields. Every other
// column is kept as metadata.
type Mapping struct {
	TitleColumn       string     `json:"title_column" validate:"required"`
	DescriptionColumn string     `json:"description_column,omitempty"`
	DateColumn        string     `json:"date_column,omitempty"`
	ProductID         *uuid.UUID `json:"product_id,omitempty"`
}

var (
	titleCandidates       = []string{"title", "subject", "summary", "headline", "name"}
	descriptionCandidates = []string{"description", "body", "feedback", "comment", "comments", "details", "message", "text"}
	dateCandidates        = []string{"createdat", "created", "date", "timestamp", "submittedat", "submitted", "time"}
)

// SuggestMapping guesses the title, description and date columns from header names.
func SuggestMapping(headers []string) Mapping {
	m := Mapping{
		TitleColumn:       findHeader(headers, titleCandidates),
		DescriptionColumn: findHeader(headers, descriptionCandidates),
		DateColumn:        findHeader(headers, dateCandidates),
	}
	if m.TitleColumn == "" && len(headers) > 0 {
		m.TitleColumn = headers[0]
	}
	if m.DescriptionColumn == m.TitleColumn {
		m.DescriptionColumn = ""
	}
	return m
}

type columns struct {
	title, description, date int
}

func (m Mapping) resolve(headers []string) (columns, error) {
	c := columns{
		title:       columnIndex(headers, m.TitleColumn),
		description: columnIndex(headers, m.DescriptionColumn),
		date:        columnIndex(headers, m.DateColumn),
	}
	if c.title < 0 {
		return c, fmt.Errorf("title column %q not found", m.TitleColumn)
	}
	if m.DescriptionColumn != "" && c.description < 0 {
		return c, fmt.Errorf("description column %q not found", m.DescriptionColumn)
	}
	if m.DateColumn != "" && c.date < 0 {
		return c, fmt.Errorf("date column %q not found", m.DateColumn)
	}
	return c, nil
}

// BuildRows converts table rows into feedback rows. Rows whose title is blank
// after sanitising are skipped and counted. Unparsable or missing dates fall
// back to importedAt.
func BuildRows(t *Table, m Mapping, importedAt time.Time) ([]db.NewFeedbackRow, int, error) {
	cols, err := m.resolve(t.Headers)
	if err != nil {
		return nil, 0, err
	}

	rows := make([]db.NewFeedbackRow, 0, len(t.Rows))
	skipped := 0
	for _, rec := range t.Rows {
		title := truncateRunes(sanitize.Line(rec[cols.title]), maxTitleRunes)
		if title == "" {
			skipped++
			continue
		}

		row := db.NewFeedbackRow{Title: title, CreatedAt: importedAt}
		if cols.description >= 0 {
			row.Description = sanitize.Text(rec[cols.description])
		}
		if cols.date >= 0 {
			if ts, ok := ParseImportDate(rec[cols.date]); ok {
				row.CreatedAt = ts
			}
		}

		meta := map[string]string{}
		for i, h := range t.Headers {
			if i == cols.title || i == cols.description || i == cols.date {
				continue
			}
			if v := sanitize.Text(rec[i]); v != "" {
				meta[h] = v
			}
		}
		if len(meta) > 0 {
			row.Metadata = meta
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

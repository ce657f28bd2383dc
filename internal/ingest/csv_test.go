package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/logger"
	"github.com/david/feedback-triage/internal/models"
)

const sampleCSV = "\xEF\xBB\xBFSubject,Body,Created At,Plan,Email\n" +
	"Export is slow,\"Takes <b>minutes</b>\nevery time\",2024-03-05,pro,a@example.com\n" +
	"   ,ignored,2024-03-06,free,\n" +
	",,,,\n" +
	"Dark mode,,not a date,,b@example.com\n"

func TestParseCSV(t *testing.T) {
	table, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, []string{"Subject", "Body", "Created At", "Plan", "Email"}, table.Headers)
	assert.Len(t, table.Rows, 3, "blank record dropped")
}

func TestParseCSV_SniffsDelimiter(t *testing.T) {
	table, err := ParseCSV(strings.NewReader("title;detail\nA;one\nB;two, three\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "detail"}, table.Headers)
	assert.Equal(t, "two, three", table.Rows[1][1])
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("  \n"))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestSuggestMapping(t *testing.T) {
	m := SuggestMapping([]string{"ID", "Subject", "Body", "Created At"})
	assert.Equal(t, "Subject", m.TitleColumn)
	assert.Equal(t, "Body", m.DescriptionColumn)
	assert.Equal(t, "Created At", m.DateColumn)

	m = SuggestMapping([]string{"foo", "bar"})
	assert.Equal(t, "foo", m.TitleColumn)
	assert.Empty(t, m.DescriptionColumn)
}

func TestBuildPreview(t *testing.T) {
	var b strings.Builder
	b.WriteString("title\n")
	for i := 0; i < 8; i++ {
		b.WriteString("row\n")
	}
	table, err := ParseCSV(strings.NewReader(b.String()))
	require.NoError(t, err)
	p := BuildPreview(table)
	assert.Len(t, p.Rows, PreviewRows)
	assert.Equal(t, 8, p.TotalRows)
	assert.Equal(t, "title", p.Suggested.TitleColumn)
}

func TestBuildRows(t *testing.T) {
	table, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	importedAt := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	rows, skipped, err := BuildRows(table, Mapping{TitleColumn: "Subject", DescriptionColumn: "Body", DateColumn: "Created At"}, importedAt)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, rows, 2)

	assert.Equal(t, "Export is slow", rows[0].Title)
	assert.Equal(t, "Takes minutes\nevery time", rows[0].Description)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), rows[0].CreatedAt)
	assert.Equal(t, map[string]string{"Plan": "pro", "Email": "a@example.com"}, rows[0].Metadata)

	assert.Equal(t, importedAt, rows[1].CreatedAt, "unparsable date falls back to import time")
	assert.Equal(t, map[string]string{"Email": "b@example.com"}, rows[1].Metadata)
}

func TestBuildRows_UnknownColumn(t *testing.T) {
	table, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	_, _, err = BuildRows(table, Mapping{TitleColumn: "Nope"}, time.Now())
	assert.Error(t, err)
}

func TestParseImportDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-05T10:11:12Z", time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC)},
		{"2024-03-05T10:11:12+02:00", time.Date(2024, 3, 5, 8, 11, 12, 0, time.UTC)},
		{"2024-03-05 10:11:12", time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC)},
		{"03/05/2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"3/5/2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"05.03.2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"Mar 5, 2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"03/05/2024 4:30 pm", time.Date(2024, 3, 5, 16, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, ok := ParseImportDate(tc.in)
		require.True(t, ok, tc.in)
		assert.True(t, tc.want.Equal(got), "%s: got %s", tc.in, got)
	}

	for _, bad := range []string{"", "yesterday", "2024-13-45"} {
		_, ok := ParseImportDate(bad)
		assert.False(t, ok, bad)
	}
}

type fakeImportStore struct {
	rec   models.ImportRecord
	rows  []db.NewFeedbackRow
	chunk int
}

func (f *fakeImportStore) CreateImport(_ context.Context, rec models.ImportRecord, rows []db.NewFeedbackRow, chunkSize int) (*models.ImportRecord, error) {
	f.rec, f.rows, f.chunk = rec, rows, chunkSize
	rec.ID = uuid.New()
	rec.FeedbackCount = len(rows)
	return &rec, nil
}

func TestImporter_Import(t *testing.T) {
	store := &fakeImportStore{}
	product := uuid.New()
	im := NewImporter(store, logger.NewNop(), 500)

	rec, err := im.Import(context.Background(), "export.csv", strings.NewReader(sampleCSV), Mapping{TitleColumn: "Subject", ProductID: &product})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.RowCount)
	assert.Equal(t, 1, rec.SkippedCount)
	assert.Equal(t, &product, store.rec.ProductID)
	assert.Equal(t, 500, store.chunk)
	assert.Equal(t, "Takes minutes\nevery time", store.rows[0].Metadata["Body"])
}

func TestImporter_NothingToImport(t *testing.T) {
	im := NewImporter(&fakeImportStore{}, logger.NewNop(), 500)
	_, err := im.Import(context.Background(), "x.csv", strings.NewReader("title\n \n"), Mapping{TitleColumn: "title"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const PreviewRows = 5

var (
	ErrEmptyFile = errors.New("csv file is empty")
	ErrNoHeader  = errors.New("csv header row has no columns")
)

// Table is a parsed CSV file. Rows are padded or truncated to len(Headers).
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Preview is returned before an import so the caller can choose a mapping.
type Preview struct {
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
	Suggested Mapping    `json:"suggested_mapping"`
}

// ParseCSV reads a whole CSV document. The delimiter is sniffed from the
// header line (comma, semicolon or tab) and a UTF-8 BOM is ignored.
func ParseCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	data, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	headers := make([]string, len(records[0]))
	nonEmpty := false
	for i, h := range records[0] {
		headers[i] = normalizeSpace(h)
		if headers[i] == "" {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		} else {
			nonEmpty = true
		}
	}
	if !nonEmpty {
		return nil, ErrNoHeader
	}

	t := &Table{Headers: headers, Rows: make([][]string, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if isBlankRecord(rec) {
			continue
		}
		row := make([]string, len(headers))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// BuildPreview returns the headers, the first PreviewRows rows and a suggested mapping.
func BuildPreview(t *Table) Preview {
	n := len(t.Rows)
	if n > PreviewRows {
		n = PreviewRows
	}
	return Preview{
		Headers:   t.Headers,
		Rows:      t.Rows[:n],
		TotalRows: len(t.Rows),
		Suggested: SuggestMapping(t.Headers),
	}
}

package dataset

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4"
	"github.com/xuri/excelize/v2"

	"bikeshare-dashboard/internal/models"
)

const utf8BOM = "\ufeff"

// Source produces the raw dataset table for a dashboard session.
type Source interface {
	Load(ctx context.Context) (*Table, error)
	Describe() string
}

// FileSource loads one or two delimited files. With two files the second is
// inner-joined onto the first by date.
type FileSource struct {
	Paths  []string
	Schema Schema
}

// NewFileSource creates a file source for the given schema.
func NewFileSource(schema Schema, paths ...string) *FileSource {
	return &FileSource{Paths: paths, Schema: schema}
}

// Describe returns the file list.
func (s *FileSource) Describe() string {
	return "file:" + strings.Join(s.Paths, ",")
}

// Load reads the files and checks the columns every session needs.
func (s *FileSource) Load(ctx context.Context) (*Table, error) {
	if len(s.Paths) == 0 || len(s.Paths) > 2 {
		return nil, &models.ValidationError{
			Field:   "paths",
			Value:   strings.Join(s.Paths, ","),
			Message: fmt.Sprintf("expected one or two dataset files, got %d", len(s.Paths)),
		}
	}

	table, err := ReadFile(ctx, s.Paths[0], s.Schema.Date)
	if err != nil {
		return nil, err
	}

	if len(s.Paths) == 2 {
		second, err := ReadFile(ctx, s.Paths[1], s.Schema.Date)
		if err != nil {
			return nil, err
		}
		table, err = Merge(table, second, s.Schema.MergeSuffixes)
		if err != nil {
			return nil, err
		}
	}

	if err := RequireCore(table, s.Schema); err != nil {
		return nil, err
	}
	return table, nil
}

// RequireCore checks the date and count columns, without which no session
// can be served.
func RequireCore(t *Table, schema Schema) error {
	return t.Require("loader", schema.Date, schema.Count)
}

// ReadFile reads a .csv, .tsv or .xlsx file, optionally compressed as .gz or
// .lz4, into a Table. Open and read failures are reported as
// DataUnavailableError; a header without dateColumn as SchemaMismatchError.
func ReadFile(ctx context.Context, path, dateColumn string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.DataUnavailableError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &models.DataUnavailableError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &models.DataUnavailableError{Path: path, Err: errors.New("is a directory")}
	}

	name := strings.ToLower(filepath.Base(path))
	var r io.Reader = f
	switch {
	case strings.HasSuffix(name, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, &models.DataUnavailableError{Path: path, Err: err}
		}
		defer gz.Close()
		r = gz
		name = strings.TrimSuffix(name, ".gz")
	case strings.HasSuffix(name, ".lz4"):
		r = lz4.NewReader(f)
		name = strings.TrimSuffix(name, ".lz4")
	}

	var records [][]string
	switch filepath.Ext(name) {
	case ".xlsx":
		records, err = readSpreadsheet(r)
	case ".tsv":
		records, err = readDelimited(ctx, r, '\t')
	default:
		records, err = readDelimited(ctx, r, ',')
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &models.DataUnavailableError{Path: path, Err: err}
	}
	if len(records) == 0 {
		return nil, &models.DataUnavailableError{Path: path, Err: errors.New("file has no header row")}
	}

	header := make([]string, len(records[0]))
	for i, col := range records[0] {
		header[i] = strings.TrimSpace(col)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	table, err := NewTable(filepath.Base(path), header, records[1:], dateColumn)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			return nil, &models.DataUnavailableError{Path: path, Err: err}
		}
		return nil, err
	}
	return table, nil
}

func readDelimited(ctx context.Context, r io.Reader, comma rune) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse line: %w", err)
		}
		records = append(records, record)

		if len(records)%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	return records, nil
}

// readSpreadsheet returns the non-empty rows of the first sheet.
func readSpreadsheet(r io.Reader) ([][]string, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	records := rows[:0]
	for _, row := range rows {
		if len(row) > 0 {
			records = append(records, row)
		}
	}
	return records, nil
}

// Merge inner-joins secondary onto primary by date, keeping primary row order
// and, within a date, secondary row order. Non-date columns present in both
// tables receive suffixes[0] (primary) and suffixes[1] (secondary).
func Merge(primary, secondary *Table, suffixes [2]string) (*Table, error) {
	if suffixes[0] == suffixes[1] {
		return nil, &models.ValidationError{
			Field:   "suffixes",
			Value:   suffixes[0],
			Message: "merge suffixes must differ",
		}
	}

	dateCol := primary.DateColumn()
	header := make([]string, 0, len(primary.columns)+len(secondary.columns))
	for _, col := range primary.columns {
		if col != dateCol && secondary.HasColumn(col) && col != secondary.DateColumn() {
			col += suffixes[0]
		}
		header = append(header, col)
	}
	var secondaryCols []int
	for i, col := range secondary.columns {
		if col == secondary.DateColumn() {
			continue
		}
		if primary.HasColumn(col) && col != dateCol {
			col += suffixes[1]
		}
		header = append(header, col)
		secondaryCols = append(secondaryCols, i)
	}

	byDate := make(map[string][]int)
	for i, d := range secondary.dates {
		key := d.Format("2006-01-02")
		byDate[key] = append(byDate[key], i)
	}

	var rows [][]string
	for i, d := range primary.dates {
		for _, j := range byDate[d.Format("2006-01-02")] {
			row := make([]string, 0, len(header))
			row = append(row, primary.rows[i]...)
			for _, idx := range secondaryCols {
				row = append(row, secondary.rows[j][idx])
			}
			rows = append(rows, row)
		}
	}

	return NewTable(primary.name+"+"+secondary.name, header, rows, dateCol)
}

// MemorySource serves a fixed table. It is used by tests and by callers that
// already hold parsed data.
type MemorySource struct {
	Table *Table
}

// Load returns the wrapped table.
func (s *MemorySource) Load(ctx context.Context) (*Table, error) {
	if s.Table == nil {
		return nil, &models.DataUnavailableError{Path: "memory", Err: errors.New("no table")}
	}
	return s.Table, nil
}

// Describe returns the table name.
func (s *MemorySource) Describe() string {
	if s.Table == nil {
		return "memory"
	}
	return "memory:" + s.Table.Name()
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/models"
)

const defaultPageSize = 5000

// TableSource reads a dataset previously copied into PostgreSQL by the
// ingester. It only ever reads.
type TableSource struct {
	repo     DatasetRepository
	name     string
	pageSize int
}

// NewTableSource creates a source for the named dataset. pageSize <= 0 uses
// the default page size.
func NewTableSource(repo DatasetRepository, name string, pageSize int) *TableSource {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &TableSource{repo: repo, name: name, pageSize: pageSize}
}

// Describe returns the source name.
func (s *TableSource) Describe() string {
	return "postgres:" + s.name
}

// Load pages through the stored rows in row order. A missing source or an
// unreachable database is reported as DataUnavailableError.
func (s *TableSource) Load(ctx context.Context) (*dataset.Table, error) {
	source, err := s.repo.GetSource(ctx, s.name)
	if err != nil {
		return nil, &models.DataUnavailableError{Path: s.Describe(), Err: err}
	}

	rows := make([][]string, 0, source.RowCount)
	for offset := 0; ; offset += s.pageSize {
		page, total, err := s.repo.ListRows(ctx, RowFilter{
			Source: s.name,
			Limit:  s.pageSize,
			Offset: offset,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, &models.DataUnavailableError{Path: s.Describe(), Err: err}
		}

		for _, row := range page {
			rows = append(rows, []string(row.Cells))
		}

		if len(page) < s.pageSize || offset+len(page) >= total {
			break
		}
	}

	if len(rows) != source.RowCount {
		return nil, &models.DataUnavailableError{
			Path: s.Describe(),
			Err:  fmt.Errorf("expected %d rows, found %d", source.RowCount, len(rows)),
		}
	}

	table, err := dataset.NewTable(source.Name, source.Columns, rows, source.DateColumn)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			return nil, &models.DataUnavailableError{Path: s.Describe(), Err: err}
		}
		return nil, err
	}
	return table, nil
}

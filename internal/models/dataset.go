package models

import (
	"time"

	"github.com/lib/pq"
)

// DatasetSource describes a dataset copied into PostgreSQL by the ingester.
type DatasetSource struct {
	Name       string         `json:"name" db:"name"`
	Columns    pq.StringArray `json:"columns" db:"columns"`
	DateColumn string         `json:"date_column" db:"date_column"`
	RowCount   int            `json:"row_count" db:"row_count"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// DatasetRow is one stored input row. Cells keep the raw text of every
// column in DatasetSource.Columns order.
type DatasetRow struct {
	ID         int64          `json:"id" db:"id"`
	Source     string         `json:"source" db:"source"`
	RowNumber  int            `json:"row_number" db:"row_number"`
	ObservedOn time.Time      `json:"observed_on" db:"observed_on"`
	Cells      pq.StringArray `json:"cells" db:"cells"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

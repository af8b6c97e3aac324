package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/pkg/database"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

// DatasetRepository provides access to datasets copied into PostgreSQL
type DatasetRepository interface {
	// Source operations
	UpsertSource(ctx context.Context, source *models.DatasetSource) error
	GetSource(ctx context.Context, name string) (*models.DatasetSource, error)
	ListSources(ctx context.Context, limit, offset int) ([]*models.DatasetSource, error)

	// Row operations
	DeleteRows(ctx context.Context, source string) (int64, error)
	CreateRowsBatch(ctx context.Context, rows []*models.DatasetRow) error
	ListRows(ctx context.Context, filter RowFilter) ([]*models.DatasetRow, int, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// RowFilter selects stored rows of one source, ordered by row number
type RowFilter struct {
	Source string
	Limit  int
	Offset int
}

// datasetRepository implements DatasetRepository
type datasetRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewDatasetRepository creates a new dataset repository
func NewDatasetRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) DatasetRepository {
	return &datasetRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// UpsertSource creates or replaces the metadata of a source
func (r *datasetRepository) UpsertSource(ctx context.Context, source *models.DatasetSource) error {
	query := `
		INSERT INTO dataset_sources (name, columns, date_column, row_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			columns = EXCLUDED.columns,
			date_column = EXCLUDED.date_column,
			row_count = EXCLUDED.row_count,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, "upsert_source", query,
		source.Name,
		source.Columns,
		source.DateColumn,
		source.RowCount,
		source.CreatedAt,
		source.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_UPSERT_SOURCE] Source saved", logging.Fields{
		"source":    source.Name,
		"columns":   len(source.Columns),
		"row_count": source.RowCount,
	})

	return nil
}

// GetSource retrieves a source by name
func (r *datasetRepository) GetSource(ctx context.Context, name string) (*models.DatasetSource, error) {
	query := `
		SELECT name, columns, date_column, row_count, created_at, updated_at
		FROM dataset_sources
		WHERE name = $1
	`

	var source models.DatasetSource
	err := r.db.GetContext(ctx, "get_source", &source, query, name)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{
			Resource: "dataset_source",
			ID:       name,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return &source, nil
}

// ListSources retrieves all sources with pagination
func (r *datasetRepository) ListSources(ctx context.Context, limit, offset int) ([]*models.DatasetSource, error) {
	query := `
		SELECT name, columns, date_column, row_count, created_at, updated_at
		FROM dataset_sources
		ORDER BY name
		LIMIT $1 OFFSET $2
	`

	var sources []*models.DatasetSource
	if err := r.db.SelectContext(ctx, "list_sources", &sources, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	return sources, nil
}

// DeleteRows removes every stored row of a source
func (r *datasetRepository) DeleteRows(ctx context.Context, source string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "delete_rows", `DELETE FROM dataset_rows WHERE source = $1`, source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rows: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return deleted, nil
}

// CreateRowsBatch inserts rows in a single transaction
func (r *datasetRepository) CreateRowsBatch(ctx context.Context, rows []*models.DatasetRow) error {
	if len(rows) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.IngestionBatchSize.Observe(float64(len(rows)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(rows),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dataset_rows (source, row_number, observed_on, cells, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source, row_number) DO UPDATE SET
			observed_on = EXCLUDED.observed_on,
			cells = EXCLUDED.cells
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.Source,
			row.RowNumber,
			row.ObservedOn,
			row.Cells,
			row.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert row %d: %w", row.RowNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.Add(float64(len(rows)))

	return nil
}

// ListRows retrieves one page of a source's stored rows
func (r *datasetRepository) ListRows(ctx context.Context, filter RowFilter) ([]*models.DatasetRow, int, error) {
	query := `
		SELECT id, source, row_number, observed_on, cells, created_at
		FROM dataset_rows
		WHERE source = $1
	`
	args := []interface{}{filter.Source}

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	if err := r.db.GetContext(ctx, "count_rows", &totalCount, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count rows: %w", err)
	}

	query += " ORDER BY row_number"
	query += " LIMIT $2 OFFSET $3"
	args = append(args, filter.Limit, filter.Offset)

	var rows []*models.DatasetRow
	if err := r.db.SelectContext(ctx, "list_rows", &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list rows: %w", err)
	}

	return rows, totalCount, nil
}

// HealthCheck performs a repository health check
func (r *datasetRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}

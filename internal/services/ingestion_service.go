package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/internal/repository"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

// ingestPatterns are the file kinds picked up from an ingest directory.
var ingestPatterns = []string{"*.csv", "*.tsv", "*.xlsx", "*.csv.gz", "*.csv.lz4"}

// IngestionService copies dataset files into PostgreSQL so the dashboard can
// later be started against the database instead of the files.
type IngestionService struct {
	repo    repository.DatasetRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalFiles     int
	TotalRecords   int
	StoredRecords  int
	ReplacedRows   int64
	SourcesWritten []string
	Duration       time.Duration
	Errors         []string
}

// TableIngestionResult contains per-source ingestion statistics
type TableIngestionResult struct {
	Source       string
	TotalRecords int
	Stored       int
	Replaced     int64
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.DatasetRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestSource loads src and stores it under name, replacing any rows
// previously stored for that name. Two-file sources are joined before they
// are stored.
func (s *IngestionService) IngestSource(ctx context.Context, name string, src dataset.Source, batchSize int) (*IngestionResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"source":     src.Describe(),
		"name":       name,
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	table, err := src.Load(ctx)
	if err != nil {
		s.metrics.RecordIngestionError("load_error")
		return nil, fmt.Errorf("failed to load %s: %w", src.Describe(), err)
	}

	tableResult, err := s.IngestTable(ctx, name, table, batchSize)
	if err != nil {
		return nil, err
	}

	result := &IngestionResult{
		TotalFiles:     1,
		TotalRecords:   tableResult.TotalRecords,
		StoredRecords:  tableResult.Stored,
		ReplacedRows:   tableResult.Replaced,
		SourcesWritten: []string{name},
		Errors:         make([]string, 0),
	}
	s.complete(ctx, result, startTime)
	return result, nil
}

// IngestDirectory stores every dataset file of dataDir as its own source,
// named after the file without extensions. A file that fails is reported in
// the result and does not stop the others.
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string, schema dataset.Schema, batchSize int) (*IngestionResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"data_dir":   dataDir,
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	result := &IngestionResult{
		Errors: make([]string, 0),
	}

	var files []string
	for _, pattern := range ingestPatterns {
		matches, err := filepath.Glob(filepath.Join(dataDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to read directory: %w", err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no data files found in %s", dataDir)
	}

	result.TotalFiles = len(files)

	s.logger.Info(ctx, "[INGEST_FILES] Found data files", logging.Fields{
		"file_count": len(files),
		"stage":      "FILE_DISCOVERY",
	})

	for _, filePath := range files {
		name := SourceName(filePath)

		table, err := dataset.ReadFile(ctx, filePath, schema.Date)
		if err == nil {
			err = dataset.RequireCore(table, schema)
		}
		var tableResult *TableIngestionResult
		if err == nil {
			tableResult, err = s.IngestTable(ctx, name, table, batchSize)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errMsg := fmt.Sprintf("failed to ingest %s: %v", filePath, err)
			result.Errors = append(result.Errors, errMsg)
			s.logger.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
				"file_path": filePath,
				"stage":     "FILE_PROCESSING",
			}, err)
			s.metrics.RecordIngestionError("file_error")
			continue
		}

		result.TotalRecords += tableResult.TotalRecords
		result.StoredRecords += tableResult.Stored
		result.ReplacedRows += tableResult.Replaced
		result.SourcesWritten = append(result.SourcesWritten, name)

		s.logger.Info(ctx, "[INGEST_FILE_SUCCESS] File ingested successfully", logging.Fields{
			"file_path":      filePath,
			"source":         name,
			"total_records":  tableResult.TotalRecords,
			"stored_records": tableResult.Stored,
			"stage":          "FILE_COMPLETE",
		})
	}

	s.complete(ctx, result, startTime)
	return result, nil
}

// IngestTable replaces the stored rows of name with the rows of table.
func (s *IngestionService) IngestTable(ctx context.Context, name string, table *dataset.Table, batchSize int) (*TableIngestionResult, error) {
	if batchSize <= 0 {
		return nil, &models.ValidationError{
			Field:   "batch_size",
			Value:   fmt.Sprint(batchSize),
			Message: "must be positive",
		}
	}

	replaced, err := s.repo.DeleteRows(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to clear source %s: %w", name, err)
	}

	now := time.Now().UTC()
	source := &models.DatasetSource{
		Name:       name,
		Columns:    table.Columns(),
		DateColumn: table.DateColumn(),
		RowCount:   table.Len(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.UpsertSource(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to save source %s: %w", name, err)
	}

	result := &TableIngestionResult{
		Source:       name,
		TotalRecords: table.Len(),
		Replaced:     replaced,
	}
	batch := make([]*models.DatasetRow, 0, batchSize)

	for i := 0; i < table.Len(); i++ {
		batch = append(batch, &models.DatasetRow{
			Source:     name,
			RowNumber:  i + 1,
			ObservedOn: table.Date(i),
			Cells:      table.Row(i),
			CreatedAt:  now,
		})

		if len(batch) >= batchSize {
			if err := s.repo.CreateRowsBatch(ctx, batch); err != nil {
				s.metrics.RecordIngestionError("batch_error")
				return nil, fmt.Errorf("failed to insert batch: %w", err)
			}
			result.Stored += len(batch)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.repo.CreateRowsBatch(ctx, batch); err != nil {
			s.metrics.RecordIngestionError("batch_error")
			return nil, fmt.Errorf("failed to insert final batch: %w", err)
		}
		result.Stored += len(batch)
	}

	return result, nil
}

func (s *IngestionService) complete(ctx context.Context, result *IngestionResult, startTime time.Time) {
	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"total_files":        result.TotalFiles,
		"total_records":      result.TotalRecords,
		"stored_records":     result.StoredRecords,
		"replaced_rows":      result.ReplacedRows,
		"sources":            result.SourcesWritten,
		"duration_seconds":   result.Duration.Seconds(),
		"records_per_second": float64(result.StoredRecords) / result.Duration.Seconds(),
		"error_count":        len(result.Errors),
		"stage":              "COMPLETE",
	})
}

// SourceName derives a stored source name from a file path:
// "data/day.csv.gz" becomes "day".
func SourceName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".gz", ".lz4", ".csv", ".tsv", ".xlsx"} {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			name = name[:len(name)-len(ext)]
		}
	}
	return name
}

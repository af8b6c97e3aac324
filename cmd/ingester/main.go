package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"

	"bikeshare-dashboard/internal/config"
	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/repository"
	"bikeshare-dashboard/internal/services"
	"bikeshare-dashboard/pkg/database"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

const version = "1.0.0"

func main() {
	dataDir := flag.String("data-dir", "", "Ingest every dataset file of this directory, one source per file")
	name := flag.String("name", "", "Source name to store the configured dataset under (default: dataset.source_name)")
	batchSize := flag.Int("batch-size", 0, "Number of rows to insert in each batch (default: dataset.ingest_batch_size)")
	list := flag.Bool("list", false, "List stored sources and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if *name == "" {
		*name = cfg.Dataset.SourceName
	}
	if *batchSize <= 0 {
		*batchSize = cfg.Dataset.IngestBatchSize
	}
	paths := flag.Args()
	if len(paths) == 0 {
		paths = cfg.Dataset.Paths
	}

	logger := logging.NewStructuredLogger("bikeshare-ingester", version, logging.ParseLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[INGESTER_START] Starting dataset ingestion", logging.Fields{
		"version":    version,
		"data_dir":   *dataDir,
		"paths":      paths,
		"name":       *name,
		"batch_size": *batchSize,
	})

	metricsCollector := metrics.NewCollector("bikeshare_ingester", prometheus.NewRegistry())

	db, err := database.NewPostgresDB(cfg.Database.Postgres(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	datasetRepo := repository.NewDatasetRepository(db, logger, metricsCollector)

	if *list {
		if err := printSources(ctx, datasetRepo); err != nil {
			logger.Fatal(ctx, "[INGESTER_ERROR] Failed to list sources", logging.Fields{}, err)
		}
		return
	}

	schema, err := dataset.SchemaByName(cfg.Dataset.Schema)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Invalid dataset schema", logging.Fields{}, err)
	}

	ingestionService := services.NewIngestionService(datasetRepo, logger, metricsCollector)

	var result *services.IngestionResult
	if *dataDir != "" {
		result, err = ingestionService.IngestDirectory(ctx, *dataDir, schema, *batchSize)
	} else {
		result, err = ingestionService.IngestSource(ctx, *name, dataset.NewFileSource(schema, paths...), *batchSize)
	}
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"error": err.Error(),
		}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Sources Written:  %s\n", strings.Join(result.SourcesWritten, ", "))
	fmt.Printf("Total Files:      %d\n", result.TotalFiles)
	fmt.Printf("Total Records:    %d\n", result.TotalRecords)
	fmt.Printf("Stored Records:   %d\n", result.StoredRecords)
	fmt.Printf("Replaced Rows:    %d\n", result.ReplacedRows)
	fmt.Printf("Duration:         %v\n", result.Duration)
	fmt.Printf("Records/Second:   %.2f\n", float64(result.StoredRecords)/result.Duration.Seconds())

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{
		"total_records":    result.TotalRecords,
		"stored_records":   result.StoredRecords,
		"duration_seconds": result.Duration.Seconds(),
	})
}

func printSources(ctx context.Context, repo repository.DatasetRepository) error {
	sources, err := repo.ListSources(ctx, 1000, 0)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Rows", "Date Column", "Columns", "Updated"})
	for _, s := range sources {
		t.AppendRow(table.Row{s.Name, s.RowCount, s.DateColumn, len(s.Columns), s.UpdatedAt.Format("2006-01-02 15:04")})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(sources)})
	t.Render()
	return nil
}

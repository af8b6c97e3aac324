package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"bikeshare-dashboard/internal/charts"
	"bikeshare-dashboard/internal/config"
	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/internal/services"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

const version = "1.0.0"

func main() {
	schemaName := flag.String("schema", "", "Dataset schema: daily, hourly or merged (default: dataset.schema)")
	start := flag.String("start", "", "First day to include (YYYY-MM-DD)")
	end := flag.String("end", "", "Last day to include (YYYY-MM-DD)")
	season := flag.String("season", models.AllOption, "Season label")
	weather := flag.String("weather", models.AllOption, "Weather code or label")
	workingDay := flag.String("working-day", models.AllOption, "Working day: All, Yes or No")
	holiday := flag.String("holiday", models.AllOption, "Holiday: All, Yes or No")
	rows := flag.Int("rows", 0, "Print the first N filtered rows")
	htmlOut := flag.String("html", "", "Also write the HTML dashboard to this file")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *schemaName == "" {
		*schemaName = cfg.Dataset.Schema
	}
	paths := flag.Args()
	if len(paths) == 0 {
		paths = cfg.Dataset.Paths
	}

	schema, err := dataset.SchemaByName(*schemaName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	criteria, err := parseCriteria(*start, *end, *season, *weather, *workingDay, *holiday)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid filter: %v\n", err)
		os.Exit(2)
	}

	// stdout carries only the report.
	logger := logging.NewStructuredLogger("bikeshare-report", version, logging.ParseLevel(cfg.Logging.Level))
	logger.SetOutput(os.Stderr)
	metricsCollector := metrics.NewCollector("bikeshare_report", prometheus.NewRegistry())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := services.NewDashboardService(ctx, dataset.NewFileSource(schema, paths...), schema, logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load dataset: %v\n", err)
		os.Exit(1)
	}

	report, err := svc.Report(ctx, criteria)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build report: %v\n", err)
		os.Exit(1)
	}

	if err := charts.WriteText(os.Stdout, report, *rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
		os.Exit(1)
	}

	if *htmlOut != "" {
		if err := writeHTML(*htmlOut, report, cfg.Dataset.TableRows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write HTML dashboard: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nHTML dashboard written to %s\n", *htmlOut)
	}
}

func parseCriteria(start, end, season, weather, workingDay, holiday string) (models.FilterCriteria, error) {
	c := models.FilterCriteria{Season: season, Weather: weather}

	var err error
	if start != "" {
		if c.StartDate, err = time.Parse("2006-01-02", start); err != nil {
			return c, fmt.Errorf("start: %w", err)
		}
	}
	if end != "" {
		if c.EndDate, err = time.Parse("2006-01-02", end); err != nil {
			return c, fmt.Errorf("end: %w", err)
		}
	}
	if c.WorkingDay, err = models.ParseChoice(workingDay); err != nil {
		return c, fmt.Errorf("working-day: %w", err)
	}
	if c.Holiday, err = models.ParseChoice(holiday); err != nil {
		return c, fmt.Errorf("holiday: %w", err)
	}
	return c, nil
}

func writeHTML(path string, report *services.Report, maxRows int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := charts.RenderPage(f, report, charts.PageOptions{
		Title:   "Bike Sharing Dashboard",
		MaxRows: maxRows,
	}); err != nil {
		return err
	}
	return f.Close()
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bikeshare-dashboard/internal/analytics"
	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

// EmptyResultNotice is shown instead of charts when no row matches.
const EmptyResultNotice = "No rows match the selected filters."

// DashboardService owns one loaded and normalized dataset and answers filter
// and summary requests against it. The table is never modified after
// construction, so the service is safe for concurrent use.
type DashboardService struct {
	source   dataset.Source
	schema   dataset.Schema
	table    *dataset.Table
	warnings []string
	logger   *logging.ContextLogger
	metrics  *metrics.Collector
}

// Options are the selector values offered to the user.
type Options struct {
	MinDate       time.Time         `json:"min_date"`
	MaxDate       time.Time         `json:"max_date"`
	Seasons       []string          `json:"seasons"`
	Weather       []string          `json:"weather"`
	WeatherLabels map[string]string `json:"weather_labels"`
	WorkingDay    []string          `json:"working_day"`
	Holiday       []string          `json:"holiday"`
}

// Selection is a filter result together with the warnings raised while
// producing it.
type Selection struct {
	dataset.Result
	Requested models.FilterCriteria
	Warnings  []string
}

// Summary is the data contract of the reporting layer.
type Summary struct {
	Requested    models.FilterCriteria          `json:"requested"`
	Criteria     models.FilterCriteria          `json:"criteria"`
	Outcome      dataset.Outcome                `json:"outcome"`
	RowCount     int                            `json:"row_count"`
	Notice       string                         `json:"notice,omitempty"`
	TotalRentals *float64                       `json:"total_rentals,omitempty"`
	WeatherMeans []analytics.GroupMean          `json:"weather_means,omitempty"`
	HourlyMeans  []analytics.GroupMean          `json:"hourly_means,omitempty"`
	DailyTotals  []analytics.DailyTotal         `json:"daily_totals,omitempty"`
	Correlations []analytics.FeatureCorrelation `json:"correlations,omitempty"`
	Warnings     []string                       `json:"warnings,omitempty"`
}

// ScatterSeries holds the points of one feature-vs-count plot.
type ScatterSeries struct {
	Feature string            `json:"feature"`
	Points  []analytics.Point `json:"points"`
}

// Report is everything the HTML dashboard renders for one selection.
type Report struct {
	Summary *Summary
	View    *dataset.View
	Scatter []ScatterSeries
	Schema  dataset.Schema
}

// RowsPage is one page of the filtered table.
type RowsPage struct {
	Columns  []string        `json:"columns"`
	Rows     [][]string      `json:"rows"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	Limit    int             `json:"limit"`
	Outcome  dataset.Outcome `json:"outcome"`
	Notice   string          `json:"notice,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// NewDashboardService loads and normalizes the dataset. A missing or
// unreadable source, or one without date and count columns, is fatal. A
// missing season column only disables season filtering.
func NewDashboardService(ctx context.Context, source dataset.Source, schema dataset.Schema, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*DashboardService, error) {
	s := &DashboardService{
		source: source,
		schema: schema,
		logger: logger.WithFields(logging.Fields{
			"source": source.Describe(),
			"schema": schema.Name,
		}),
		metrics: metricsCollector,
	}

	s.logger.Info(ctx, "[DATASET_LOAD_START] Loading dataset", logging.Fields{
		"stage": "LOAD",
	})

	timer := metricsCollector.NewTimer(metricsCollector.DatasetLoadDuration)

	raw, err := source.Load(ctx)
	if err != nil {
		s.logger.Error(ctx, "[DATASET_LOAD_ERROR] Dataset could not be loaded", logging.Fields{
			"stage": "LOAD",
		}, err)
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	if err := dataset.RequireCore(raw, schema); err != nil {
		s.metrics.RecordSchemaMismatch("loader")
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	table, stats, err := dataset.Normalize(raw, schema)
	if err != nil {
		mismatch, ok := models.AsSchemaMismatch(err)
		if !ok {
			return nil, fmt.Errorf("failed to normalize dataset: %w", err)
		}
		s.degrade(ctx, mismatch, "season filtering disabled")
	}
	s.table = table

	duration := timer.ObserveDuration()
	s.metrics.RecordDatasetLoad(table.Len(), stats.Defaulted)

	s.logger.Info(ctx, "[DATASET_LOAD_COMPLETE] Dataset loaded", logging.Fields{
		"rows":             table.Len(),
		"columns":          len(table.Columns()),
		"season_defaulted": stats.Defaulted,
		"duration_ms":      duration.Milliseconds(),
		"stage":            "COMPLETE",
	})

	return s, nil
}

// Schema returns the schema the dataset is read with.
func (s *DashboardService) Schema() dataset.Schema {
	return s.schema
}

// Table returns the normalized dataset.
func (s *DashboardService) Table() *dataset.Table {
	return s.table
}

// LoadWarnings returns the degradations recorded while loading.
func (s *DashboardService) LoadWarnings() []string {
	return append([]string(nil), s.warnings...)
}

// Options returns the selector values. Seasons and weather codes are listed
// in first-seen order after "All".
func (s *DashboardService) Options() Options {
	opts := Options{
		Seasons:       []string{models.AllOption},
		Weather:       []string{models.AllOption},
		WeatherLabels: make(map[string]string),
		WorkingDay:    models.ChoiceOptions(),
		Holiday:       models.ChoiceOptions(),
	}
	opts.MinDate, opts.MaxDate, _ = s.table.DateRange()

	seen := make(map[string]bool)
	if s.table.HasColumn(dataset.SeasonLabelColumn) {
		for i := 0; i < s.table.Len(); i++ {
			label := s.table.Cell(i, dataset.SeasonLabelColumn)
			if !seen["s:"+label] {
				seen["s:"+label] = true
				opts.Seasons = append(opts.Seasons, label)
			}
		}
	}
	if s.table.HasColumn(s.schema.Weather) {
		for i := 0; i < s.table.Len(); i++ {
			code := models.CanonicalWeather(s.table.Cell(i, s.schema.Weather))
			if code == "" || seen["w:"+code] {
				continue
			}
			seen["w:"+code] = true
			opts.Weather = append(opts.Weather, code)
			opts.WeatherLabels[code] = s.weatherLabel(code)
		}
	}
	return opts
}

// Filter applies c to the dataset. Constrained dimensions without a backing
// column are dropped with a warning; the rest of the criteria still apply.
func (s *DashboardService) Filter(ctx context.Context, c models.FilterCriteria) (*Selection, error) {
	timer := s.metrics.NewTimer(s.metrics.FilterDuration)
	defer timer.ObserveDuration()

	sel := &Selection{Requested: c}
	result, err := dataset.Apply(s.table, s.schema, c)
	if err != nil {
		mismatch, ok := models.AsSchemaMismatch(err)
		if !ok || len(mismatch.Dimensions) == 0 {
			return nil, fmt.Errorf("failed to apply filter: %w", err)
		}
		sel.Warnings = append(sel.Warnings, s.degrade(ctx, mismatch, "filter ignored"))

		result, err = dataset.Apply(s.table, s.schema, c.Without(mismatch.Dimensions...))
		if err != nil {
			return nil, fmt.Errorf("failed to apply reduced filter: %w", err)
		}
	}
	sel.Result = result

	s.metrics.RecordFilterOutcome(string(result.Outcome))
	s.logger.Debug(ctx, "[FILTER_APPLIED] Filter evaluated", logging.Fields{
		"outcome":      result.Outcome,
		"matched_rows": result.View.Len(),
		"dimensions":   result.Criteria.ActiveDimensions(),
	})

	return sel, nil
}

// Summary filters the dataset and computes the reporting aggregates. When
// nothing matches, only the notice is set and no aggregate is computed.
func (s *DashboardService) Summary(ctx context.Context, c models.FilterCriteria) (*Summary, error) {
	sel, err := s.Filter(ctx, c)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, sel)
}

// Report is Summary plus the filtered rows and scatter series for the HTML
// dashboard.
func (s *DashboardService) Report(ctx context.Context, c models.FilterCriteria) (*Report, error) {
	sel, err := s.Filter(ctx, c)
	if err != nil {
		return nil, err
	}
	summary, err := s.summarize(ctx, sel)
	if err != nil {
		return nil, err
	}

	report := &Report{Summary: summary, View: sel.View, Schema: s.schema}
	if sel.Empty() {
		return report, nil
	}

	for _, feature := range s.schema.Features {
		if !s.table.HasColumn(feature) {
			continue
		}
		points, err := analytics.Scatter(sel.View, feature, s.schema.Count)
		if err != nil {
			return nil, fmt.Errorf("failed to build scatter for %s: %w", feature, err)
		}
		report.Scatter = append(report.Scatter, ScatterSeries{Feature: feature, Points: points})
	}
	if len(report.Scatter) == 0 {
		summary.Warnings = append(summary.Warnings, s.degrade(ctx, &models.SchemaMismatchError{
			Source:  s.table.Name(),
			Feature: "scatter plots",
			Columns: s.schema.Features,
		}, "chart skipped"))
	}

	return report, nil
}

// Rows returns one page of the filtered rows. page starts at 1.
func (s *DashboardService) Rows(ctx context.Context, c models.FilterCriteria, page, limit int) (*RowsPage, error) {
	sel, err := s.Filter(ctx, c)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return nil, &models.ValidationError{Field: "limit", Value: fmt.Sprint(limit), Message: "must be positive"}
	}

	// Pages past the end are empty; the bound is checked before (page-1)*limit can overflow.
	slice := sel.View.Slice(0, 0)
	if page-1 <= sel.View.Len()/limit {
		offset := (page - 1) * limit
		slice = sel.View.Slice(offset, offset+limit)
	}

	out := &RowsPage{
		Columns:  s.table.Columns(),
		Rows:     make([][]string, slice.Len()),
		Total:    sel.View.Len(),
		Page:     page,
		Limit:    limit,
		Outcome:  sel.Outcome,
		Warnings: sel.Warnings,
	}
	for i := 0; i < slice.Len(); i++ {
		out.Rows[i] = slice.Row(i)
	}
	if sel.Empty() {
		out.Notice = EmptyResultNotice
	}
	return out, nil
}

func (s *DashboardService) summarize(ctx context.Context, sel *Selection) (*Summary, error) {
	summary := &Summary{
		Requested: sel.Requested,
		Criteria:  sel.Criteria,
		Outcome:   sel.Outcome,
		RowCount:  sel.View.Len(),
		Warnings:  append(s.LoadWarnings(), sel.Warnings...),
	}
	if sel.Empty() {
		summary.Notice = EmptyResultNotice
		return summary, nil
	}

	view := sel.View
	count := s.schema.Count

	if err := s.aggregate(ctx, summary, "total", func() error {
		t, err := analytics.Total(view, count)
		if err == nil {
			summary.TotalRentals = &t
		}
		return err
	}); err != nil {
		return nil, err
	}

	if s.schema.Weather != "" {
		if err := s.aggregate(ctx, summary, "weather means", func() (err error) {
			summary.WeatherMeans, err = analytics.MeanBy(view, s.schema.Weather, count, s.weatherLabel)
			return err
		}); err != nil {
			return nil, err
		}
	}

	if s.schema.Hour != "" {
		if err := s.aggregate(ctx, summary, "hourly means", func() (err error) {
			summary.HourlyMeans, err = analytics.MeanBy(view, s.schema.Hour, count, nil)
			return err
		}); err != nil {
			return nil, err
		}
	}

	if err := s.aggregate(ctx, summary, "daily totals", func() (err error) {
		summary.DailyTotals, err = analytics.SumByDate(view, count)
		return err
	}); err != nil {
		return nil, err
	}

	if err := s.aggregate(ctx, summary, "correlation", func() (err error) {
		summary.Correlations, err = analytics.Correlations(view, count, s.schema.Features)
		return err
	}); err != nil {
		return nil, err
	}

	return summary, nil
}

// aggregate runs one aggregate. A schema mismatch becomes a warning on the
// summary instead of an error.
func (s *DashboardService) aggregate(ctx context.Context, summary *Summary, name string, run func() error) error {
	timer := s.metrics.NewTimer(s.metrics.AggregationDuration.WithLabelValues(name))
	err := run()
	timer.ObserveDuration()

	if err == nil || errors.Is(err, models.ErrEmptyResult) {
		return nil
	}
	if mismatch, ok := models.AsSchemaMismatch(err); ok {
		degraded := *mismatch
		degraded.Feature = name
		summary.Warnings = append(summary.Warnings, s.degrade(ctx, &degraded, "aggregate skipped"))
		return nil
	}
	return fmt.Errorf("failed to compute %s: %w", name, err)
}

// degrade records a skipped feature and returns the user-facing warning.
func (s *DashboardService) degrade(ctx context.Context, mismatch *models.SchemaMismatchError, action string) string {
	s.metrics.RecordSchemaMismatch(mismatch.Feature)
	s.logger.Warn(ctx, "[SCHEMA_MISMATCH] Feature degraded", logging.Fields{
		"feature":    mismatch.Feature,
		"columns":    mismatch.Columns,
		"dimensions": mismatch.Dimensions,
		"action":     action,
	})

	warning := fmt.Sprintf("%s: %s", action, mismatch.Error())
	if s.table == nil {
		s.warnings = append(s.warnings, warning)
	}
	return warning
}

func (s *DashboardService) weatherLabel(key string) string {
	code, ok := models.ParseWeatherCode(key)
	if !ok {
		return "Unknown"
	}
	return s.schema.WeatherLabel(code)
}

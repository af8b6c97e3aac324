package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

func testLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("bikeshare-test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger
}

func testMetrics() *metrics.Collector {
	return metrics.NewCollector("bikeshare_test", prometheus.NewRegistry())
}

var dailyColumns = []string{"dteday", "season", "weathersit", "workingday", "holiday", "temp", "hum", "cnt"}

func dailyRows() [][]string {
	return [][]string{
		{"2011-01-01", "1", "2", "0", "0", "0.34", "0.80", "985"},
		{"2011-01-02", "1", "2", "0", "0", "0.36", "0.69", "801"},
		{"2011-01-03", "1", "1", "1", "0", "0.19", "0.44", "1349"},
		{"2011-04-01", "2", "3", "1", "0", "0.30", "0.70", "1360"},
		{"2011-07-04", "3", "1", "0", "1", "0.80", "0.60", "6043"},
		{"2011-12-01", "Winter", "1", "1", "0", "0.28", "0.55", "4500"},
	}
}

func newService(t *testing.T, schema dataset.Schema, columns []string, rows [][]string) (*DashboardService, *metrics.Collector) {
	t.Helper()
	table, err := dataset.NewTable("day", columns, rows, "dteday")
	require.NoError(t, err)

	m := testMetrics()
	svc, err := NewDashboardService(context.Background(), &dataset.MemorySource{Table: table}, schema, testLogger(), m)
	require.NoError(t, err)
	return svc, m
}

func TestNewDashboardServiceNormalizes(t *testing.T) {
	svc, m := newService(t, dataset.Daily(), dailyColumns, dailyRows())

	table := svc.Table()
	assert.True(t, table.HasColumn(dataset.SeasonLabelColumn))
	assert.Equal(t, "4", table.Cell(5, "season"))
	assert.Equal(t, "Winter", table.Cell(5, dataset.SeasonLabelColumn))
	assert.Empty(t, svc.LoadWarnings())
	assert.Equal(t, 6.0, testutil.ToFloat64(m.DatasetRowsLoaded))
}

func TestNewDashboardServiceUnavailable(t *testing.T) {
	_, err := NewDashboardService(context.Background(), &dataset.MemorySource{}, dataset.Daily(), testLogger(), testMetrics())
	require.Error(t, err)
	assert.True(t, models.IsDataUnavailable(err))
}

func TestNewDashboardServiceMissingCount(t *testing.T) {
	table, err := dataset.NewTable("day", []string{"dteday", "season"}, [][]string{{"2011-01-01", "1"}}, "dteday")
	require.NoError(t, err)

	_, err = NewDashboardService(context.Background(), &dataset.MemorySource{Table: table}, dataset.Daily(), testLogger(), testMetrics())
	mismatch, ok := models.AsSchemaMismatch(err)
	require.True(t, ok)
	assert.Contains(t, mismatch.Columns, "cnt")
}

func TestSummarySeason(t *testing.T) {
	svc, _ := newService(t, dataset.Daily(), dailyColumns, dailyRows())

	summary, err := svc.Summary(context.Background(), models.FilterCriteria{Season: "Spring"})
	require.NoError(t, err)

	assert.Equal(t, dataset.OutcomeMatched, summary.Outcome)
	assert.Equal(t, 3, summary.RowCount)
	require.NotNil(t, summary.TotalRentals)
	assert.Equal(t, 3135.0, *summary.TotalRentals)
	assert.Empty(t, summary.Notice)

	require.Len(t, summary.WeatherMeans, 2)
	assert.Equal(t, "1", summary.WeatherMeans[0].Key)
	assert.Equal(t, "Clear", summary.WeatherMeans[0].Label)
	assert.Equal(t, 1349.0, summary.WeatherMeans[0].Mean)
	assert.Equal(t, "Mist", summary.WeatherMeans[1].Label)
	assert.Equal(t, 893.0, summary.WeatherMeans[1].Mean)

	assert.Empty(t, summary.HourlyMeans)
	assert.Len(t, summary.DailyTotals, 3)

	features := make([]string, 0, len(summary.Correlations))
	for _, c := range summary.Correlations {
		features = append(features, c.Feature)
	}
	assert.ElementsMatch(t, []string{"temp", "hum"}, features)
}

func TestSummaryEmptyShowsNotice(t *testing.T) {
	svc, m := newService(t, dataset.Daily(), dailyColumns, dailyRows())

	summary, err := svc.Summary(context.Background(), models.FilterCriteria{
		StartDate: time.Date(2011, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, dataset.OutcomeEmpty, summary.Outcome)
	assert.Equal(t, EmptyResultNotice, summary.Notice)
	assert.Nil(t, summary.TotalRentals)
	assert.Empty(t, summary.WeatherMeans)
	assert.Empty(t, summary.Correlations)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilterOutcomesTotal.WithLabelValues("empty")))
}

func TestFilterWithoutSeasonColumnDegrades(t *testing.T) {
	columns := []string{"dteday", "weathersit", "workingday", "holiday", "temp", "cnt"}
	rows := [][]string{
		{"2011-01-01", "1", "0", "0", "0.2", "10"},
		{"2011-01-02", "2", "1", "0", "0.3", "20"},
	}
	svc, m := newService(t, dataset.Daily(), columns, rows)
	require.Len(t, svc.LoadWarnings(), 1)
	assert.Contains(t, svc.LoadWarnings()[0], "season")

	sel, err := svc.Filter(context.Background(), models.FilterCriteria{Season: "Spring", WorkingDay: models.ChoiceYes})
	require.NoError(t, err)

	assert.Equal(t, dataset.OutcomeMatched, sel.Outcome)
	assert.Equal(t, 1, sel.View.Len())
	assert.Empty(t, sel.Criteria.Season)
	assert.Equal(t, "Spring", sel.Requested.Season)
	require.Len(t, sel.Warnings, 1)
	assert.Contains(t, sel.Warnings[0], "filter ignored")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SchemaMismatchTotal.WithLabelValues("filter")))

	summary, err := svc.Summary(context.Background(), models.FilterCriteria{Season: "Spring"})
	require.NoError(t, err)
	assert.Equal(t, dataset.OutcomeUnfiltered, summary.Outcome)
	assert.Len(t, summary.Warnings, 2)
}

func TestOptions(t *testing.T) {
	svc, _ := newService(t, dataset.Daily(), dailyColumns, dailyRows())

	opts := svc.Options()
	assert.Equal(t, []string{"All", "Spring", "Summer", "Fall", "Winter"}, opts.Seasons)
	assert.Equal(t, []string{"All", "2", "1", "3"}, opts.Weather)
	assert.Equal(t, "Light Rain", opts.WeatherLabels["3"])
	assert.Equal(t, models.ChoiceOptions(), opts.WorkingDay)
	assert.Equal(t, time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC), opts.MinDate)
	assert.Equal(t, time.Date(2011, 12, 1, 0, 0, 0, 0, time.UTC), opts.MaxDate)
}

func TestRowsPaging(t *testing.T) {
	svc, _ := newService(t, dataset.Daily(), dailyColumns, dailyRows())

	page, err := svc.Rows(context.Background(), models.FilterCriteria{}, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	assert.Len(t, page.Rows, 2)
	assert.Equal(t, "2011-07-04", page.Rows[0][0])
	assert.Equal(t, dataset.OutcomeUnfiltered, page.Outcome)

	page, err = svc.Rows(context.Background(), models.FilterCriteria{}, 3, 4)
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
}

func TestRowsPageBeyondEnd(t *testing.T) {
	svc, _ := newService(t, dataset.Daily(), dailyColumns, dailyRows())

	page, err := svc.Rows(context.Background(), models.FilterCriteria{}, 9300000000000000, 1000)
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, 6, page.Total)
	assert.Equal(t, 9300000000000000, page.Page)

	_, err = svc.Rows(context.Background(), models.FilterCriteria{}, 1, 0)
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "limit", vErr.Field)
}

func TestReportHourly(t *testing.T) {
	columns := []string{"dteday", "hr", "season", "weathersit", "workingday", "holiday", "temp", "cnt"}
	rows := [][]string{
		{"2011-01-01", "0", "1", "1", "0", "0", "0.24", "16"},
		{"2011-01-01", "1", "1", "1", "0", "0", "0.22", "40"},
		{"2011-01-02", "0", "1", "2", "0", "0", "0.46", "17"},
		{"2011-01-02", "1", "1", "2", "0", "0", "0.44", "17"},
	}
	svc, _ := newService(t, dataset.Hourly(), columns, rows)

	report, err := svc.Report(context.Background(), models.FilterCriteria{})
	require.NoError(t, err)

	require.Len(t, report.Summary.HourlyMeans, 2)
	assert.Equal(t, 16.5, report.Summary.HourlyMeans[0].Mean)
	assert.Equal(t, 28.5, report.Summary.HourlyMeans[1].Mean)

	require.Len(t, report.Summary.DailyTotals, 2)
	assert.Equal(t, 56.0, report.Summary.DailyTotals[0].Total)

	require.Len(t, report.Scatter, 2)
	assert.Equal(t, "temp", report.Scatter[0].Feature)
	assert.Equal(t, "hr", report.Scatter[1].Feature)
	assert.Len(t, report.Scatter[0].Points, 4)
	assert.Equal(t, 4, report.View.Len())
}

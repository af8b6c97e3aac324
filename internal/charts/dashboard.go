// Package charts renders a dashboard report as an HTML page of interactive
// charts or as plain-text tables.
package charts

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"

	"bikeshare-dashboard/internal/analytics"
	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/internal/services"
)

const (
	chartWidth  = "1100px"
	chartHeight = "420px"
)

// PageOptions controls the HTML dashboard.
type PageOptions struct {
	Title string
	// MaxRows caps the rows of the data table. 0 hides the table.
	MaxRows int
	// Selectors are rendered as the filter form when set.
	Selectors *services.Options
	// Action is the form target, usually the dashboard path.
	Action string
}

// RenderPage writes the dashboard for report. An empty result renders the
// notice and the filter form without any chart.
func RenderPage(w io.Writer, report *services.Report, o PageOptions) error {
	header, err := renderHeader(report, o)
	if err != nil {
		return err
	}

	if report.Summary.Outcome == dataset.OutcomeEmpty {
		_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>\n%s</body></html>\n",
			template.HTMLEscapeString(o.Title), header)
		return err
	}

	page := BuildPage(report, o.Title)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("failed to render charts: %w", err)
	}

	_, err = io.WriteString(w, injectAfterBody(buf.String(), header))
	return err
}

// BuildPage assembles one chart per available aggregate.
func BuildPage(report *services.Report, title string) *components.Page {
	page := components.NewPage()
	page.PageTitle = title
	page.SetLayout(components.PageFlexLayout)

	for _, series := range report.Scatter {
		page.AddCharts(scatterChart(series, report.Schema.Count))
	}
	if len(report.Summary.WeatherMeans) > 0 {
		page.AddCharts(weatherPie(report.Summary.WeatherMeans))
	}
	if len(report.Summary.HourlyMeans) > 0 {
		page.AddCharts(hourlyBar(report.Summary.HourlyMeans))
	}
	if len(report.Summary.DailyTotals) > 0 {
		page.AddCharts(dailyLine(report.Summary.DailyTotals))
	}
	if len(report.Summary.Correlations) > 0 {
		page.AddCharts(correlationBar(report.Summary.Correlations))
	}
	return page
}

func scatterChart(series services.ScatterSeries, count string) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s vs %s", series.Feature, count)}),
		charts.WithXAxisOpts(opts.XAxis{Name: series.Feature, Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: count, Type: "value"}),
	)

	items := make([]opts.ScatterData, 0, len(series.Points))
	for _, p := range series.Points {
		items = append(items, opts.ScatterData{Value: []interface{}{p.X, p.Y}, SymbolSize: 5})
	}
	scatter.AddSeries(series.Feature, items)
	return scatter
}

func weatherPie(means []analytics.GroupMean) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Average rentals by weather"}),
	)

	items := make([]opts.PieData, 0, len(means))
	for _, g := range means {
		items = append(items, opts.PieData{Name: g.Label, Value: round2(g.Mean)})
	}
	pie.AddSeries("weather", items).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Formatter: "{b}: {d}%"}))
	return pie
}

func hourlyBar(means []analytics.GroupMean) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Average rentals by hour"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "hour"}),
	)

	hours := make([]string, 0, len(means))
	items := make([]opts.BarData, 0, len(means))
	for _, g := range means {
		hours = append(hours, g.Key)
		items = append(items, opts.BarData{Value: round2(g.Mean)})
	}
	bar.SetXAxis(hours).AddSeries("mean", items)
	return bar
}

func dailyLine(totals []analytics.DailyTotal) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Total rentals per day"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)

	days := make([]string, 0, len(totals))
	items := make([]opts.LineData, 0, len(totals))
	for _, d := range totals {
		days = append(days, d.Date.Format("2006-01-02"))
		items = append(items, opts.LineData{Value: d.Total})
	}
	line.SetXAxis(days).AddSeries("total", items)
	return line
}

func correlationBar(corr []analytics.FeatureCorrelation) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Correlation with rentals"}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: 1}),
	)

	features := make([]string, 0, len(corr))
	items := make([]opts.BarData, 0, len(corr))
	for _, c := range corr {
		features = append(features, c.Feature)
		items = append(items, opts.BarData{Value: round2(c.Correlation)})
	}
	bar.SetXAxis(features).AddSeries("pearson r", items)
	return bar
}

var headerTemplate = template.Must(template.New("header").Parse(`<section class="bikeshare-summary" style="font-family:sans-serif;margin:16px">
<h1>{{.Title}}</h1>
{{with .Selectors}}<form method="get" action="{{$.Action}}">
<label>From <input type="date" name="start_date" value="{{$.Start}}" min="{{.MinDate.Format "2006-01-02"}}" max="{{.MaxDate.Format "2006-01-02"}}"></label>
<label>To <input type="date" name="end_date" value="{{$.End}}" min="{{.MinDate.Format "2006-01-02"}}" max="{{.MaxDate.Format "2006-01-02"}}"></label>
<label>Season <select name="season">{{range .Seasons}}<option {{if eq . $.Season}}selected{{end}}>{{.}}</option>{{end}}</select></label>
<label>Weather <select name="weather">{{range .Weather}}<option value="{{.}}" {{if eq . $.Weather}}selected{{end}}>{{index $.WeatherLabels .}}</option>{{end}}</select></label>
<label>Working day <select name="working_day">{{range .WorkingDay}}<option {{if eq . $.WorkingDay}}selected{{end}}>{{.}}</option>{{end}}</select></label>
<label>Holiday <select name="holiday">{{range .Holiday}}<option {{if eq . $.Holiday}}selected{{end}}>{{.}}</option>{{end}}</select></label>
<button type="submit">Apply</button>
</form>{{end}}
{{range .Warnings}}<p class="warning" style="color:#a15c00">{{.}}</p>
{{end}}{{if .Notice}}<p class="notice"><strong>{{.Notice}}</strong></p>
{{else}}<p class="metric">Total rentals: <strong>{{.Total}}</strong> across {{.Rows}} rows</p>
{{.Table}}{{end}}</section>
`))

type headerData struct {
	Title         string
	Action        string
	Selectors     *services.Options
	WeatherLabels map[string]string
	Start, End    string
	Season        string
	Weather       string
	WorkingDay    string
	Holiday       string
	Warnings      []string
	Notice        string
	Total         string
	Rows          int
	Table         template.HTML
}

func renderHeader(report *services.Report, o PageOptions) (string, error) {
	s := report.Summary
	data := headerData{
		Title:      o.Title,
		Action:     o.Action,
		Selectors:  o.Selectors,
		Season:     models.AllOption,
		Weather:    models.AllOption,
		WorkingDay: s.Requested.WorkingDay.String(),
		Holiday:    s.Requested.Holiday.String(),
		Warnings:   s.Warnings,
		Notice:     s.Notice,
		Rows:       s.RowCount,
		Total:      "n/a",
	}
	if o.Selectors != nil {
		data.WeatherLabels = map[string]string{models.AllOption: models.AllOption}
		for code, label := range o.Selectors.WeatherLabels {
			data.WeatherLabels[code] = code + " - " + label
		}
	}
	if s.Requested.HasStart() {
		data.Start = s.Requested.StartDate.Format("2006-01-02")
	}
	if s.Requested.HasEnd() {
		data.End = s.Requested.EndDate.Format("2006-01-02")
	}
	if s.Requested.SeasonSet() {
		data.Season = s.Requested.Season
	}
	if s.Requested.WeatherSet() {
		data.Weather = models.CanonicalWeather(s.Requested.Weather)
	}
	if s.TotalRentals != nil {
		data.Total = fmt.Sprintf("%.0f", *s.TotalRentals)
	}
	if o.MaxRows > 0 && report.View != nil && !report.View.Empty() {
		data.Table = template.HTML(DataTable(report.View, o.MaxRows).RenderHTML())
	}

	var buf bytes.Buffer
	if err := headerTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render dashboard header: %w", err)
	}
	return buf.String(), nil
}

// DataTable returns a table writer over the first maxRows rows of v.
func DataTable(v *dataset.View, maxRows int) table.Writer {
	t := table.NewWriter()
	t.Style().HTML = table.HTMLOptions{
		CSSClass:    "bikeshare-rows",
		EmptyColumn: "&nbsp;",
		EscapeText:  true,
		Newline:     "<br/>",
	}

	header := table.Row{}
	for _, col := range v.Table().Columns() {
		header = append(header, col)
	}
	t.AppendHeader(header)

	shown := v.Slice(0, maxRows)
	for i := 0; i < shown.Len(); i++ {
		row := table.Row{}
		for _, cell := range shown.Row(i) {
			row = append(row, cell)
		}
		t.AppendRow(row)
	}
	if v.Len() > shown.Len() {
		t.SetCaption("showing %d of %d rows", shown.Len(), v.Len())
	}
	return t
}

// injectAfterBody inserts fragment right after the opening body tag, or at
// the start of the document when there is none.
func injectAfterBody(doc, fragment string) string {
	start := strings.Index(doc, "<body")
	if start < 0 {
		return fragment + doc
	}
	end := strings.Index(doc[start:], ">")
	if end < 0 {
		return fragment + doc
	}
	cut := start + end + 1
	return doc[:cut] + "\n" + fragment + doc[cut:]
}

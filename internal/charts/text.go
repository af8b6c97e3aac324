package charts

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"bikeshare-dashboard/internal/services"
)

// WriteText prints the summary of report as text tables. maxRows > 0 also
// prints the first rows of the filtered data.
func WriteText(w io.Writer, report *services.Report, maxRows int) error {
	s := report.Summary
	var b strings.Builder

	fmt.Fprintf(&b, "Outcome: %s (%d rows)\n", s.Outcome, s.RowCount)
	if dims := s.Criteria.ActiveDimensions(); len(dims) > 0 {
		parts := make([]string, len(dims))
		for i, d := range dims {
			parts[i] = string(d)
		}
		fmt.Fprintf(&b, "Filtered by: %s\n", strings.Join(parts, ", "))
	}
	for _, warning := range s.Warnings {
		fmt.Fprintf(&b, "WARNING: %s\n", warning)
	}
	if s.Notice != "" {
		fmt.Fprintf(&b, "\n%s\n", s.Notice)
		_, err := io.WriteString(w, b.String())
		return err
	}
	if s.TotalRentals != nil {
		fmt.Fprintf(&b, "Total rentals: %.0f\n", *s.TotalRentals)
	}

	if len(s.WeatherMeans) > 0 {
		t := newTextTable("Average rentals by weather")
		t.AppendHeader(table.Row{"Code", "Weather", "Mean", "Rows"})
		for _, g := range s.WeatherMeans {
			t.AppendRow(table.Row{g.Key, g.Label, round2(g.Mean), g.Count})
		}
		b.WriteString("\n" + t.Render() + "\n")
	}

	if len(s.HourlyMeans) > 0 {
		t := newTextTable("Average rentals by hour")
		t.AppendHeader(table.Row{"Hour", "Mean", "Rows"})
		for _, g := range s.HourlyMeans {
			t.AppendRow(table.Row{g.Key, round2(g.Mean), g.Count})
		}
		b.WriteString("\n" + t.Render() + "\n")
	}

	if len(s.Correlations) > 0 {
		t := newTextTable("Correlation with rentals")
		t.AppendHeader(table.Row{"Feature", "Pearson r", "Samples"})
		for _, c := range s.Correlations {
			t.AppendRow(table.Row{c.Feature, fmt.Sprintf("%+.3f", c.Correlation), c.Samples})
		}
		b.WriteString("\n" + t.Render() + "\n")
	}

	if maxRows > 0 && report.View != nil && !report.View.Empty() {
		t := DataTable(report.View, maxRows)
		t.SetStyle(table.StyleLight)
		b.WriteString("\n" + t.Render() + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func newTextTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetTitle(title)
	t.SetStyle(table.StyleLight)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return t
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

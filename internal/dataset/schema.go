package dataset

import (
	"fmt"
	"sort"
	"strings"

	"bikeshare-dashboard/internal/models"
)

// SeasonLabelColumn is the derived column added by Normalize.
const SeasonLabelColumn = "season_label"

// Schema maps the logical fields of a rental dataset onto the column names of
// one dataset variant. An empty column name means the variant does not carry
// that field.
type Schema struct {
	Name       string
	Date       string
	Season     string
	Weather    string
	WorkingDay string
	Holiday    string
	Hour       string
	Count      string

	// Features are correlated against Count and plotted, in this order.
	Features []string

	WeatherLabels map[models.WeatherCode]string

	// MergeSuffixes are appended to overlapping columns when two files are
	// joined on the date column: [0] for the first file, [1] for the second.
	MergeSuffixes [2]string
}

// Daily is the schema of the day.csv export.
func Daily() Schema {
	return Schema{
		Name:          "daily",
		Date:          "dteday",
		Season:        "season",
		Weather:       "weathersit",
		WorkingDay:    "workingday",
		Holiday:       "holiday",
		Count:         "cnt",
		Features:      []string{"temp", "atemp", "hum", "windspeed"},
		WeatherLabels: models.DefaultWeatherLabels(),
		MergeSuffixes: [2]string{"_day", "_hour"},
	}
}

// Hourly is the schema of the hour.csv export.
func Hourly() Schema {
	s := Daily()
	s.Name = "hourly"
	s.Hour = "hr"
	s.Features = []string{"temp", "atemp", "hum", "windspeed", "hr"}
	return s
}

// Merged is the schema of all_data.csv, the day and hour exports joined on
// dteday. Daily flags and counts carry the _day suffix, hourly measurements
// the _hour suffix.
func Merged() Schema {
	labels := models.DefaultWeatherLabels()
	labels[2] = "Cloudy"

	return Schema{
		Name:          "merged",
		Date:          "dteday",
		Season:        "season_hour",
		Weather:       "weathersit_day",
		WorkingDay:    "workingday_day",
		Holiday:       "holiday_day",
		Hour:          "hr",
		Count:         "cnt_day",
		Features:      []string{"temp_hour", "hum_hour", "windspeed_hour", "hr", "season_hour"},
		WeatherLabels: labels,
		MergeSuffixes: [2]string{"_day", "_hour"},
	}
}

var schemas = map[string]func() Schema{
	"daily":  Daily,
	"hourly": Hourly,
	"merged": Merged,
}

// SchemaByName returns a predefined schema by name.
func SchemaByName(name string) (Schema, error) {
	build, ok := schemas[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Schema{}, &models.ValidationError{
			Field:   "schema",
			Value:   name,
			Message: fmt.Sprintf("unknown dataset schema %q, expected one of %s", name, strings.Join(SchemaNames(), ", ")),
		}
	}
	return build(), nil
}

// SchemaNames lists the predefined schema names.
func SchemaNames() []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Column returns the column backing a filter dimension. The season dimension
// is matched against the derived label column.
func (s Schema) Column(dim models.Dimension) string {
	switch dim {
	case models.DimensionDate:
		return s.Date
	case models.DimensionSeason:
		if s.Season == "" {
			return ""
		}
		return SeasonLabelColumn
	case models.DimensionWeather:
		return s.Weather
	case models.DimensionWorkingDay:
		return s.WorkingDay
	case models.DimensionHoliday:
		return s.Holiday
	}
	return ""
}

// WeatherLabel returns the display label of a weather code.
func (s Schema) WeatherLabel(code models.WeatherCode) string {
	if label, ok := s.WeatherLabels[code]; ok {
		return label
	}
	return "Unknown"
}

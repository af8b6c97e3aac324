package models

import (
	"strings"
	"time"
)

// Dimension names one filterable axis of the dataset.
type Dimension string

const (
	DimensionDate       Dimension = "date"
	DimensionSeason     Dimension = "season"
	DimensionWeather    Dimension = "weather"
	DimensionWorkingDay Dimension = "working_day"
	DimensionHoliday    Dimension = "holiday"
)

// FilterCriteria is the set of user-selected constraints applied to the
// dataset. The zero value constrains nothing. It is passed by value; the
// helper methods return modified copies.
type FilterCriteria struct {
	StartDate  time.Time `json:"start_date,omitempty"`
	EndDate    time.Time `json:"end_date,omitempty"`
	Season     string    `json:"season,omitempty"`
	Weather    string    `json:"weather,omitempty"`
	WorkingDay Choice    `json:"working_day"`
	Holiday    Choice    `json:"holiday"`
}

// HasStart reports whether the lower date bound is set.
func (c FilterCriteria) HasStart() bool {
	return !c.StartDate.IsZero()
}

// HasEnd reports whether the upper date bound is set.
func (c FilterCriteria) HasEnd() bool {
	return !c.EndDate.IsZero()
}

// SeasonSet reports whether a season label other than "All" is selected.
func (c FilterCriteria) SeasonSet() bool {
	return isSelected(c.Season)
}

// WeatherSet reports whether a weather code other than "All" is selected.
func (c FilterCriteria) WeatherSet() bool {
	return isSelected(c.Weather)
}

// ActiveDimensions lists the constrained dimensions in a fixed order.
func (c FilterCriteria) ActiveDimensions() []Dimension {
	var dims []Dimension
	if c.HasStart() || c.HasEnd() {
		dims = append(dims, DimensionDate)
	}
	if c.SeasonSet() {
		dims = append(dims, DimensionSeason)
	}
	if c.WeatherSet() {
		dims = append(dims, DimensionWeather)
	}
	if c.WorkingDay.IsSet() {
		dims = append(dims, DimensionWorkingDay)
	}
	if c.Holiday.IsSet() {
		dims = append(dims, DimensionHoliday)
	}
	return dims
}

// IsUnconstrained reports whether no dimension is constrained.
func (c FilterCriteria) IsUnconstrained() bool {
	return len(c.ActiveDimensions()) == 0
}

// Without returns a copy of c with the given dimensions reset to "no
// constraint".
func (c FilterCriteria) Without(dims ...Dimension) FilterCriteria {
	out := c
	for _, d := range dims {
		switch d {
		case DimensionDate:
			out.StartDate = time.Time{}
			out.EndDate = time.Time{}
		case DimensionSeason:
			out.Season = ""
		case DimensionWeather:
			out.Weather = ""
		case DimensionWorkingDay:
			out.WorkingDay = ChoiceAll
		case DimensionHoliday:
			out.Holiday = ChoiceAll
		}
	}
	return out
}

func isSelected(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && !strings.EqualFold(value, AllOption)
}

package dataset

import (
	"strings"
	"time"

	"bikeshare-dashboard/internal/models"
)

// Outcome tells callers how a filter result should be presented.
type Outcome string

const (
	// OutcomeUnfiltered means no dimension was constrained and the view is
	// the whole table.
	OutcomeUnfiltered Outcome = "unfiltered"
	// OutcomeMatched means at least one dimension was constrained and some
	// rows matched.
	OutcomeMatched Outcome = "matched"
	// OutcomeEmpty means no row matched. Aggregates must not be computed.
	OutcomeEmpty Outcome = "empty"
)

// Result is the output of the filter engine.
type Result struct {
	View     *View
	Outcome  Outcome
	Criteria models.FilterCriteria
}

// Empty reports whether no row matched.
func (r Result) Empty() bool {
	return r.Outcome == OutcomeEmpty
}

// Predicate keeps a table row when Match returns true.
type Predicate struct {
	Dimension models.Dimension
	Match     func(t *Table, row int) bool
}

// Where returns the rows of v accepted by every predicate, in view order.
// The predicates are evaluated in a single pass; their order does not
// affect the result.
func (v *View) Where(preds ...Predicate) *View {
	if len(preds) == 0 {
		return &View{table: v.table, indices: v.Indices()}
	}

	kept := make([]int, 0, len(v.indices))
	for _, idx := range v.indices {
		ok := true
		for _, p := range preds {
			if !p.Match(v.table, idx) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, idx)
		}
	}
	return &View{table: v.table, indices: kept}
}

// Predicates builds one predicate per constrained dimension of c. If any
// constrained dimension has no backing column in t, no predicates are
// returned and the SchemaMismatchError lists every such dimension.
func Predicates(t *Table, s Schema, c models.FilterCriteria) ([]Predicate, error) {
	var (
		preds   []Predicate
		missing []string
		dims    []models.Dimension
	)

	for _, dim := range c.ActiveDimensions() {
		col := s.Column(dim)
		if dim == models.DimensionDate {
			col = t.DateColumn()
		}
		if !t.HasColumn(col) {
			if col == "" {
				col = string(dim)
			}
			missing = append(missing, col)
			dims = append(dims, dim)
			continue
		}

		switch dim {
		case models.DimensionDate:
			preds = append(preds, datePredicate(c))
		case models.DimensionSeason:
			want := strings.TrimSpace(c.Season)
			preds = append(preds, Predicate{Dimension: dim, Match: func(t *Table, row int) bool {
				return strings.EqualFold(strings.TrimSpace(t.Cell(row, col)), want)
			}})
		case models.DimensionWeather:
			want := weatherSelection(s, c.Weather)
			preds = append(preds, Predicate{Dimension: dim, Match: func(t *Table, row int) bool {
				return models.CanonicalWeather(t.Cell(row, col)) == want
			}})
		case models.DimensionWorkingDay:
			preds = append(preds, flagPredicate(dim, col, c.WorkingDay))
		case models.DimensionHoliday:
			preds = append(preds, flagPredicate(dim, col, c.Holiday))
		}
	}

	if len(missing) > 0 {
		return nil, &models.SchemaMismatchError{
			Source:     t.Name(),
			Feature:    "filter",
			Columns:    missing,
			Dimensions: dims,
		}
	}
	return preds, nil
}

// Apply filters t by c. An empty match is reported through the result's
// Outcome, never as an error; the only error is a SchemaMismatchError for a
// constrained dimension without a backing column.
func Apply(t *Table, s Schema, c models.FilterCriteria) (Result, error) {
	preds, err := Predicates(t, s, c)
	if err != nil {
		return Result{Criteria: c}, err
	}

	view := t.All().Where(preds...)
	result := Result{View: view, Criteria: c}
	switch {
	case view.Empty():
		result.Outcome = OutcomeEmpty
	case len(preds) == 0:
		result.Outcome = OutcomeUnfiltered
	default:
		result.Outcome = OutcomeMatched
	}
	return result, nil
}

// datePredicate compares calendar days, inclusive at both ends.
func datePredicate(c models.FilterCriteria) Predicate {
	start, end := day(c.StartDate), day(c.EndDate)
	hasStart, hasEnd := c.HasStart(), c.HasEnd()

	return Predicate{Dimension: models.DimensionDate, Match: func(t *Table, row int) bool {
		d := day(t.Date(row))
		if hasStart && d.Before(start) {
			return false
		}
		if hasEnd && d.After(end) {
			return false
		}
		return true
	}}
}

func flagPredicate(dim models.Dimension, col string, choice models.Choice) Predicate {
	return Predicate{Dimension: dim, Match: func(t *Table, row int) bool {
		return choice.Matches(models.ParseFlag(t.Cell(row, col)))
	}}
}

// weatherSelection resolves a selector value to the code text it matches.
// Codes are taken as is; a label known to the schema is mapped to its code.
func weatherSelection(s Schema, raw string) string {
	want := models.CanonicalWeather(raw)
	if _, ok := models.ParseWeatherCode(want); ok {
		return want
	}
	for code, label := range s.WeatherLabels {
		if strings.EqualFold(label, want) {
			return code.Text()
		}
	}
	return want
}

func day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-dashboard/internal/models"
)

func normalizedDaily(t *testing.T) *Table {
	t.Helper()
	raw := mustTable(t, []string{"dteday", "season", "weathersit", "workingday", "holiday", "temp", "cnt"},
		[]string{"2011-01-01", "1", "2", "0", "0", "0.34", "985"},
		[]string{"2011-01-02", "1", "2", "0", "0", "0.36", "801"},
		[]string{"2011-01-03", "1", "1", "1", "0", "0.19", "1349"},
		[]string{"2011-01-17", "1", "2", "0", "1", "0.17", "1000"},
		[]string{"2011-04-01", "2", "3.0", "1", "0", "0.30", "1360"},
		[]string{"2011-07-04", "3", "1", "0", "1", "0.80", "6043"},
		[]string{"2011-12-01", "4", "1", "1", "0", "0.28", "4500"},
		[]string{"2011-12-31", "1", "1", "0", "0", "0.37", "2729"},
	)
	table, _, err := Normalize(raw, Daily())
	require.NoError(t, err)
	return table
}

func TestApplySeasonScenario(t *testing.T) {
	raw := mustTable(t, []string{"dteday", "season", "cnt"},
		[]string{"2011-01-01", "1", "10"},
		[]string{"2011-01-02", "1", "20"},
		[]string{"2011-01-03", "2", "30"},
	)
	table, _, err := Normalize(raw, Daily())
	require.NoError(t, err)

	result, err := Apply(table, Daily(), models.FilterCriteria{Season: "Spring"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeMatched, result.Outcome)
	assert.Equal(t, []int{0, 1}, result.View.Indices())
	counts, err := result.View.Floats("cnt")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, counts)
}

func TestApplyUnconstrained(t *testing.T) {
	table := normalizedDaily(t)

	for _, c := range []models.FilterCriteria{
		{},
		{Season: "All", Weather: "All", WorkingDay: models.ChoiceAll, Holiday: models.ChoiceAll},
	} {
		result, err := Apply(table, Daily(), c)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnfiltered, result.Outcome)
		assert.Equal(t, table.All().Indices(), result.View.Indices())
	}
}

func TestApplyDateRange(t *testing.T) {
	table := normalizedDaily(t)

	tests := []struct {
		name  string
		start string
		end   string
		want  []int
	}{
		{name: "inclusive both ends", start: "2011-01-02", end: "2011-04-01", want: []int{1, 2, 3, 4}},
		{name: "single day", start: "2011-07-04", end: "2011-07-04", want: []int{5}},
		{name: "open end", start: "2011-12-01", want: []int{6, 7}},
		{name: "open start", end: "2011-01-01", want: []int{0}},
		{name: "outside all rows", start: "2012-01-01", end: "2012-12-31", want: []int{}},
		{name: "reversed range", start: "2011-12-31", end: "2011-01-01", want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c models.FilterCriteria
			if tt.start != "" {
				c.StartDate, _ = ParseDate(tt.start)
			}
			if tt.end != "" {
				c.EndDate, _ = ParseDate(tt.end)
			}

			result, err := Apply(table, Daily(), c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.View.Indices())

			// every row inside the range is kept, every row outside dropped
			kept := make(map[int]bool)
			for _, idx := range result.View.Indices() {
				kept[idx] = true
			}
			for i := 0; i < table.Len(); i++ {
				d := table.Date(i)
				inRange := (!c.HasStart() || !d.Before(c.StartDate)) && (!c.HasEnd() || !d.After(c.EndDate))
				assert.Equal(t, inRange, kept[i], "row %d", i)
			}

			if len(tt.want) == 0 {
				assert.Equal(t, OutcomeEmpty, result.Outcome)
				assert.True(t, result.Empty())
			}
		})
	}
}

func TestApplyEndDateIncludesWholeDay(t *testing.T) {
	raw, err := NewTable("hour.csv", []string{"dteday", "season", "cnt"}, [][]string{
		{"2011-01-01 00:00:00", "1", "16"},
		{"2011-01-01 23:00:00", "1", "40"},
		{"2011-01-02 00:00:00", "1", "17"},
	}, "dteday")
	require.NoError(t, err)

	end, _ := ParseDate("2011-01-01")
	result, err := Apply(raw, Daily(), models.FilterCriteria{EndDate: end})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, result.View.Indices())
}

func TestApplyDimensions(t *testing.T) {
	table := normalizedDaily(t)

	tests := []struct {
		name     string
		criteria models.FilterCriteria
		want     []int
	}{
		{name: "season label case-insensitive", criteria: models.FilterCriteria{Season: "winter"}, want: []int{6}},
		{name: "weather code text", criteria: models.FilterCriteria{Weather: "3"}, want: []int{4}},
		{name: "weather float code", criteria: models.FilterCriteria{Weather: "1.0"}, want: []int{2, 5, 6, 7}},
		{name: "weather label", criteria: models.FilterCriteria{Weather: "Mist"}, want: []int{0, 1, 3}},
		{name: "working day yes", criteria: models.FilterCriteria{WorkingDay: models.ChoiceYes}, want: []int{2, 4, 6}},
		{name: "holiday yes", criteria: models.FilterCriteria{Holiday: models.ChoiceYes}, want: []int{3, 5}},
		{
			name: "conjunction",
			criteria: models.FilterCriteria{
				Season:     "Spring",
				WorkingDay: models.ChoiceNo,
				Holiday:    models.ChoiceNo,
			},
			want: []int{0, 1, 7},
		},
		{name: "no match", criteria: models.FilterCriteria{Season: "Summer", Holiday: models.ChoiceYes}, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Apply(table, Daily(), tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.View.Indices())
			if len(tt.want) == 0 {
				assert.Equal(t, OutcomeEmpty, result.Outcome)
			} else {
				assert.Equal(t, OutcomeMatched, result.Outcome)
			}
		})
	}
}

func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for pos := 0; pos <= len(p); pos++ {
			perm := make([]int, 0, n)
			perm = append(perm, p[:pos]...)
			perm = append(perm, n-1)
			perm = append(perm, p[pos:]...)
			out = append(out, perm)
		}
	}
	return out
}

func TestPredicateOrderIndependence(t *testing.T) {
	table := normalizedDaily(t)
	start, _ := ParseDate("2011-01-01")
	end, _ := ParseDate("2011-12-31")
	c := models.FilterCriteria{
		StartDate:  start,
		EndDate:    end,
		Season:     "Spring",
		Weather:    "2",
		WorkingDay: models.ChoiceNo,
		Holiday:    models.ChoiceNo,
	}

	preds, err := Predicates(table, Daily(), c)
	require.NoError(t, err)
	require.Len(t, preds, 5)

	want := table.All().Where(preds...).Indices()
	assert.Equal(t, []int{0, 1}, want)

	perms := permutations(len(preds))
	require.Len(t, perms, 120)
	for _, perm := range perms {
		ordered := make([]Predicate, len(perm))
		view := table.All()
		for i, p := range perm {
			ordered[i] = preds[p]
			view = view.Where(preds[p])
		}
		assert.Equal(t, want, table.All().Where(ordered...).Indices())
		assert.Equal(t, want, view.Indices())
	}
}

func TestApplySchemaMismatch(t *testing.T) {
	table := normalizedDaily(t)

	c := models.FilterCriteria{
		Season:     "Spring",
		WorkingDay: models.ChoiceYes,
		Holiday:    models.ChoiceNo,
		Weather:    "1",
	}
	result, err := Apply(table, Merged(), c)
	mismatch, ok := models.AsSchemaMismatch(err)
	require.True(t, ok)
	assert.Nil(t, result.View)
	assert.Equal(t, "filter", mismatch.Feature)
	assert.Equal(t, []string{"weathersit_day", "workingday_day", "holiday_day"}, mismatch.Columns)
	assert.Equal(t, []models.Dimension{
		models.DimensionWeather, models.DimensionWorkingDay, models.DimensionHoliday,
	}, mismatch.Dimensions)

	// dropping the reported dimensions makes the criteria applicable
	result, err = Apply(table, Merged(), c.Without(mismatch.Dimensions...))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 7}, result.View.Indices())

	// season filtering needs the normalized label column
	raw := mustTable(t, []string{"dteday", "season", "cnt"}, []string{"2011-01-01", "1", "10"})
	_, err = Apply(raw, Daily(), models.FilterCriteria{Season: "Spring"})
	mismatch, ok = models.AsSchemaMismatch(err)
	require.True(t, ok)
	assert.Equal(t, []string{SeasonLabelColumn}, mismatch.Columns)
}

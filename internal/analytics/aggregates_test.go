package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/models"
)

func view(t *testing.T, columns []string, rows ...[]string) *dataset.View {
	t.Helper()
	table, err := dataset.NewTable("test.csv", columns, rows, "dteday")
	require.NoError(t, err)
	return table.All()
}

func TestTotal(t *testing.T) {
	v := view(t, []string{"dteday", "cnt"},
		[]string{"2011-01-01", "10"},
		[]string{"2011-01-02", "20"},
		[]string{"2011-01-03", "bad"},
	)

	total, err := Total(v, "cnt")
	require.NoError(t, err)
	assert.Equal(t, 30.0, total)

	_, err = Total(v, "cnt_day")
	_, ok := models.AsSchemaMismatch(err)
	assert.True(t, ok)

	_, err = Total(v.Slice(0, 0), "cnt")
	assert.True(t, errors.Is(err, models.ErrEmptyResult))
}

func TestMeanBy(t *testing.T) {
	v := view(t, []string{"dteday", "weathersit", "cnt"},
		[]string{"2011-01-01", "2", "985"},
		[]string{"2011-01-02", "2.0", "801"},
		[]string{"2011-01-03", "1", "1349"},
		[]string{"2011-01-04", "10", "100"},
		[]string{"2011-01-05", "1", ""},
		[]string{"2011-01-06", "1", "1551"},
	)

	groups, err := MeanBy(v, "weathersit", "cnt", func(key string) string { return "w" + key })
	require.NoError(t, err)

	assert.Equal(t, []GroupMean{
		{Key: "1", Label: "w1", Mean: 1450, Count: 2},
		{Key: "2", Label: "w2", Mean: 893, Count: 2},
		{Key: "10", Label: "w10", Mean: 100, Count: 1},
	}, groups)
	assert.Equal(t, map[string]float64{"1": 1450, "2": 893, "10": 100}, MeansAsMap(groups))

	_, err = MeanBy(v.Slice(0, 0), "weathersit", "cnt", nil)
	assert.ErrorIs(t, err, models.ErrEmptyResult)
}

func TestSumByDate(t *testing.T) {
	v := view(t, []string{"dteday", "hr", "cnt"},
		[]string{"2011-01-02", "0", "17"},
		[]string{"2011-01-01", "0", "16"},
		[]string{"2011-01-01", "1", "40"},
	)

	totals, err := SumByDate(v, "cnt")
	require.NoError(t, err)
	assert.Equal(t, []DailyTotal{
		{Date: time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC), Total: 56},
		{Date: time.Date(2011, 1, 2, 0, 0, 0, 0, time.UTC), Total: 17},
	}, totals)
}

func TestCorrelations(t *testing.T) {
	v := view(t, []string{"dteday", "x", "const", "w", "z", "y"},
		[]string{"2011-01-01", "1", "5", "1", "3", "2"},
		[]string{"2011-01-02", "2", "5", "3", "2", "4"},
		[]string{"2011-01-03", "3", "5", "2", "1", "6"},
	)

	got, err := Correlations(v, "y", []string{"w", "x", "missing", "const", "z"})
	require.NoError(t, err)
	require.Len(t, got, 3)

	// x and z tie on |r| = 1 and keep their input order
	assert.Equal(t, "x", got[0].Feature)
	assert.InDelta(t, 1.0, got[0].Correlation, 1e-12)
	assert.Equal(t, "z", got[1].Feature)
	assert.InDelta(t, -1.0, got[1].Correlation, 1e-12)
	assert.Equal(t, "w", got[2].Feature)
	assert.InDelta(t, 0.5, got[2].Correlation, 1e-12)
	assert.Equal(t, 3, got[2].Samples)

	again, err := Correlations(v, "y", []string{"w", "x", "missing", "const", "z"})
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestCorrelationsPairwiseAndErrors(t *testing.T) {
	v := view(t, []string{"dteday", "temp", "hum", "cnt"},
		[]string{"2011-01-01", "0.2", "0.8", "100"},
		[]string{"2011-01-02", "", "0.7", "200"},
		[]string{"2011-01-03", "0.4", "0.6", "300"},
		[]string{"2011-01-04", "0.6", "x", "500"},
	)

	got, err := Correlations(v, "cnt", []string{"temp", "hum"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, c := range got {
		assert.Equal(t, 3, c.Samples)
		assert.LessOrEqual(t, c.Correlation, 1.0+1e-12)
		assert.GreaterOrEqual(t, c.Correlation, -1.0-1e-12)
	}

	_, err = Correlations(v, "cnt", []string{"atemp", "windspeed"})
	mismatch, ok := models.AsSchemaMismatch(err)
	require.True(t, ok)
	assert.Equal(t, "correlation", mismatch.Feature)

	_, err = Correlations(v, "cnt_day", []string{"temp"})
	_, ok = models.AsSchemaMismatch(err)
	assert.True(t, ok)

	_, err = Correlations(v.Slice(0, 0), "cnt", []string{"temp"})
	assert.ErrorIs(t, err, models.ErrEmptyResult)
}

func TestScatter(t *testing.T) {
	v := view(t, []string{"dteday", "temp", "cnt"},
		[]string{"2011-01-01", "0.2", "100"},
		[]string{"2011-01-02", "?", "200"},
		[]string{"2011-01-03", "0.4", "300"},
	)

	points, err := Scatter(v, "temp", "cnt")
	require.NoError(t, err)
	assert.Equal(t, []Point{{X: 0.2, Y: 100}, {X: 0.4, Y: 300}}, points)
}

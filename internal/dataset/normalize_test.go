package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-dashboard/internal/models"
)

func tableRows(table *Table) [][]string {
	rows := make([][]string, table.Len())
	for i := range rows {
		rows[i] = table.Row(i)
	}
	return rows
}

func TestNormalizeLabels(t *testing.T) {
	raw := mustTable(t, []string{"dteday", "season", "cnt"},
		[]string{"2011-01-01", "Winter", "10"},
		[]string{"2011-01-02", "Summer", "20"},
	)

	normalized, stats, err := Normalize(raw, Daily())
	require.NoError(t, err)
	assert.Equal(t, NormalizeStats{Rows: 2}, stats)

	codes, err := normalized.All().Strings("season")
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "2"}, codes)

	labels, err := normalized.All().Strings(SeasonLabelColumn)
	require.NoError(t, err)
	assert.Equal(t, []string{"Winter", "Summer"}, labels)

	// the raw table is not modified
	assert.Equal(t, "Winter", raw.Cell(0, "season"))
	assert.False(t, raw.HasColumn(SeasonLabelColumn))
}

func TestNormalizeCoercesToUnknown(t *testing.T) {
	raw := mustTable(t, []string{"dteday", "season", "cnt"},
		[]string{"2011-01-01", "1", "10"},
		[]string{"2011-01-02", "monsoon", "20"},
		[]string{"2011-01-03", "", "30"},
		[]string{"2011-01-04", "9", "40"},
		[]string{"2011-01-05", "3.0", "50"},
	)

	normalized, stats, err := Normalize(raw, Daily())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Defaulted)

	codes, _ := normalized.All().Strings("season")
	labels, _ := normalized.All().Strings(SeasonLabelColumn)
	assert.Equal(t, []string{"1", "0", "0", "0", "3"}, codes)
	assert.Equal(t, []string{"Spring", "Unknown", "Unknown", "Unknown", "Fall"}, labels)

	for i := 0; i < normalized.Len(); i++ {
		season, ok := models.ParseSeason(normalized.Cell(i, "season"))
		require.True(t, ok)
		assert.Equal(t, season.Label(), normalized.Cell(i, SeasonLabelColumn))
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := mustTable(t, []string{"dteday", "season_hour", "cnt_day", SeasonLabelColumn},
		[]string{"2011-01-01", "Spring", "10", "stale"},
		[]string{"2011-01-02", "2", "20", ""},
		[]string{"2011-01-03", "x", "30", ""},
	)
	schema := Merged()

	once, _, err := Normalize(raw, schema)
	require.NoError(t, err)
	twice, stats, err := Normalize(once, schema)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Defaulted)
	assert.Equal(t, once.Columns(), twice.Columns())
	assert.Equal(t, tableRows(once), tableRows(twice))
	assert.Equal(t, []string{"dteday", "season_hour", "cnt_day", SeasonLabelColumn}, once.Columns())
	assert.Equal(t, "Spring", once.Cell(0, SeasonLabelColumn))
}

func TestNormalizeMissingSeason(t *testing.T) {
	raw := mustTable(t, []string{"dteday", "cnt"}, []string{"2011-01-01", "10"})

	out, stats, err := Normalize(raw, Daily())
	mismatch, ok := models.AsSchemaMismatch(err)
	require.True(t, ok)
	assert.Equal(t, []string{"season"}, mismatch.Columns)
	assert.Same(t, raw, out)
	assert.Equal(t, 1, stats.Rows)
}

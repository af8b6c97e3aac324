package dataset

import (
	"bikeshare-dashboard/internal/models"
)

// NormalizeStats reports what Normalize did to a table.
type NormalizeStats struct {
	Rows int
	// Defaulted counts season cells that could not be mapped and were
	// coerced to Unknown (0).
	Defaulted int
}

// Normalize rewrites the schema's season column to integer codes in 0..4 and
// adds (or replaces) the season_label column derived from them. Labels such
// as "Winter" map to their code, anything unparseable becomes 0. Applying
// Normalize to its own output returns an equal table.
//
// When the season column is absent the input table is returned unchanged
// together with a SchemaMismatchError, so callers can continue without
// season filtering.
func Normalize(t *Table, s Schema) (*Table, NormalizeStats, error) {
	stats := NormalizeStats{Rows: t.Len()}
	if err := t.Require("season normalization", s.Season); err != nil {
		return t, stats, err
	}

	codes := make([]string, t.Len())
	labels := make([]string, t.Len())
	for i := 0; i < t.Len(); i++ {
		season, ok := models.ParseSeason(t.Cell(i, s.Season))
		if !ok {
			stats.Defaulted++
		}
		codes[i] = season.Code()
		labels[i] = season.Label()
	}

	out := t.withColumns(
		[]string{s.Season, SeasonLabelColumn},
		[][]string{codes, labels},
	)
	return out, stats, nil
}

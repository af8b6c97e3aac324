// Package analytics computes the descriptive statistics shown on the
// dashboard from a filtered dataset view.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/models"
)

// GroupMean is the mean of a value column within one group.
type GroupMean struct {
	Key   string  `json:"key"`
	Label string  `json:"label,omitempty"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// DailyTotal is the sum of a value column on one date.
type DailyTotal struct {
	Date  time.Time `json:"date"`
	Total float64   `json:"total"`
}

// FeatureCorrelation is the Pearson correlation of a feature column against
// the target column.
type FeatureCorrelation struct {
	Feature     string  `json:"feature"`
	Correlation float64 `json:"correlation"`
	Samples     int     `json:"samples"`
}

// Point is one (x, y) pair of a scatter plot.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Total sums col over the view. Unparseable cells are skipped.
func Total(v *dataset.View, col string) (float64, error) {
	if v.Empty() {
		return 0, models.ErrEmptyResult
	}
	values, err := v.Floats(col)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, x := range values {
		if !math.IsNaN(x) {
			total += x
		}
	}
	return total, nil
}

// MeanBy groups the view by groupCol and averages valueCol within each group.
// Integral numeric keys are canonicalised ("1.0" groups with "1") and sorted
// numerically; other keys follow in lexical order. label, when non-nil,
// supplies the Label of each group.
func MeanBy(v *dataset.View, groupCol, valueCol string, label func(key string) string) ([]GroupMean, error) {
	if v.Empty() {
		return nil, models.ErrEmptyResult
	}
	keys, err := v.Strings(groupCol)
	if err != nil {
		return nil, err
	}
	values, err := v.Floats(valueCol)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string][]float64)
	for i, raw := range keys {
		if math.IsNaN(values[i]) {
			continue
		}
		key := canonicalKey(raw)
		buckets[key] = append(buckets[key], values[i])
	}

	groups := make([]GroupMean, 0, len(buckets))
	for key, xs := range buckets {
		g := GroupMean{Key: key, Mean: stat.Mean(xs, nil), Count: len(xs)}
		if label != nil {
			g.Label = label(key)
		}
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return keyLess(groups[i].Key, groups[j].Key)
	})
	return groups, nil
}

// MeansAsMap flattens grouped means into key -> mean.
func MeansAsMap(groups []GroupMean) map[string]float64 {
	out := make(map[string]float64, len(groups))
	for _, g := range groups {
		out[g.Key] = g.Mean
	}
	return out
}

// SumByDate totals col per calendar day in ascending date order.
func SumByDate(v *dataset.View, col string) ([]DailyTotal, error) {
	if v.Empty() {
		return nil, models.ErrEmptyResult
	}
	values, err := v.Floats(col)
	if err != nil {
		return nil, err
	}

	totals := make(map[time.Time]float64)
	for i, x := range values {
		y, m, d := v.Date(i).Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		if _, ok := totals[day]; !ok {
			totals[day] = 0
		}
		if !math.IsNaN(x) {
			totals[day] += x
		}
	}

	out := make([]DailyTotal, 0, len(totals))
	for day, total := range totals {
		out = append(out, DailyTotal{Date: day, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Correlations computes the Pearson correlation of every feature present in
// the view against target, using the rows where both cells are numeric.
// Features absent from the view are skipped, as are features whose
// correlation is undefined (fewer than two rows or zero variance). The result
// is ordered by descending absolute correlation; ties keep feature order.
func Correlations(v *dataset.View, target string, features []string) ([]FeatureCorrelation, error) {
	if v.Empty() {
		return nil, models.ErrEmptyResult
	}
	ys, err := v.Floats(target)
	if err != nil {
		return nil, err
	}

	var present []string
	for _, f := range features {
		if f != target && v.Table().HasColumn(f) {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil, &models.SchemaMismatchError{
			Source:  v.Table().Name(),
			Feature: "correlation",
			Columns: features,
		}
	}

	out := make([]FeatureCorrelation, 0, len(present))
	for _, f := range present {
		xs, err := v.Floats(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read feature %s: %w", f, err)
		}
		px, py := pairwise(xs, ys)
		if len(px) < 2 {
			continue
		}
		r := stat.Correlation(px, py, nil)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		out = append(out, FeatureCorrelation{Feature: f, Correlation: r, Samples: len(px)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Correlation) > math.Abs(out[j].Correlation)
	})
	return out, nil
}

// Scatter returns the (x, y) pairs of the rows where both cells are numeric.
func Scatter(v *dataset.View, xCol, yCol string) ([]Point, error) {
	if v.Empty() {
		return nil, models.ErrEmptyResult
	}
	xs, err := v.Floats(xCol)
	if err != nil {
		return nil, err
	}
	ys, err := v.Floats(yCol)
	if err != nil {
		return nil, err
	}

	px, py := pairwise(xs, ys)
	points := make([]Point, len(px))
	for i := range px {
		points[i] = Point{X: px[i], Y: py[i]}
	}
	return points, nil
}

func pairwise(xs, ys []float64) ([]float64, []float64) {
	px := make([]float64, 0, len(xs))
	py := make([]float64, 0, len(ys))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		px = append(px, xs[i])
		py = append(py, ys[i])
	}
	return px, py
}

func canonicalKey(raw string) string {
	value := strings.TrimSpace(raw)
	f, err := strconv.ParseFloat(value, 64)
	if err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}
	return value
}

func keyLess(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		return fa < fb
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

package dataset

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pierrec/lz4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bikeshare-dashboard/internal/models"
)

const dayCSV = `instant,dteday,season,yr,mnth,holiday,weekday,workingday,weathersit,temp,atemp,hum,windspeed,casual,registered,cnt
1,2011-01-01,1,0,1,0,6,0,2,0.344167,0.363625,0.805833,0.160446,331,654,985
2,2011-01-02,1,0,1,0,0,0,2,0.363478,0.353739,0.696087,0.248539,131,670,801
3,2011-01-03,1,0,1,0,1,1,1,0.196364,0.189405,0.437273,0.248309,120,1229,1349
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFileCSV(t *testing.T) {
	path := writeFile(t, "day.csv", "\ufeff"+dayCSV)

	table, err := ReadFile(context.Background(), path, "dteday")
	require.NoError(t, err)

	assert.Equal(t, "day.csv", table.Name())
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, "instant", table.Columns()[0])
	assert.Equal(t, "1349", table.Cell(2, "cnt"))
	assert.Equal(t, date(2011, 1, 3), table.Date(2))
}

func TestReadFileFormats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tsvPath := filepath.Join(dir, "day.tsv")
	require.NoError(t, os.WriteFile(tsvPath, []byte(strings.ReplaceAll(dayCSV, ",", "\t")), 0o644))

	gzPath := filepath.Join(dir, "day.csv.gz")
	gzFile, err := os.Create(gzPath)
	require.NoError(t, err)
	gz := gzip.NewWriter(gzFile)
	_, err = gz.Write([]byte(dayCSV))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, gzFile.Close())

	lz4Path := filepath.Join(dir, "day.csv.lz4")
	lz4File, err := os.Create(lz4Path)
	require.NoError(t, err)
	lw := lz4.NewWriter(lz4File)
	_, err = lw.Write([]byte(dayCSV))
	require.NoError(t, err)
	require.NoError(t, lw.Close())
	require.NoError(t, lz4File.Close())

	xlsxPath := filepath.Join(dir, "day.xlsx")
	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	for i, line := range strings.Split(strings.TrimSpace(dayCSV), "\n") {
		cells := strings.Split(line, ",")
		row := make([]interface{}, len(cells))
		for j, c := range cells {
			row[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, book.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, book.SaveAs(xlsxPath))
	require.NoError(t, book.Close())

	for _, path := range []string{tsvPath, gzPath, lz4Path, xlsxPath} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			table, err := ReadFile(ctx, path, "dteday")
			require.NoError(t, err)
			assert.Equal(t, 3, table.Len())
			assert.Equal(t, "985", table.Cell(0, "cnt"))
			assert.Equal(t, "2", table.Cell(1, "weathersit"))
		})
	}
}

func TestReadFileUnavailable(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "nope.csv")},
		{name: "directory", path: t.TempDir()},
		{name: "empty file", path: writeFile(t, "empty.csv", "")},
		{name: "bad date", path: writeFile(t, "bad.csv", "dteday,cnt\nsoon,1\n")},
		{name: "broken gzip", path: writeFile(t, "day.csv.gz", "not gzip")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFile(ctx, tt.path, "dteday")
			require.Error(t, err)
			assert.True(t, models.IsDataUnavailable(err), err.Error())
		})
	}
}

func TestFileSourceLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("single file", func(t *testing.T) {
		src := NewFileSource(Daily(), writeFile(t, "day.csv", dayCSV))
		table, err := src.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, table.Len())
		assert.Contains(t, src.Describe(), "day.csv")
	})

	t.Run("missing count column", func(t *testing.T) {
		src := NewFileSource(Daily(), writeFile(t, "day.csv", "dteday,season\n2011-01-01,1\n"))
		_, err := src.Load(ctx)
		mismatch, ok := models.AsSchemaMismatch(err)
		require.True(t, ok)
		assert.Equal(t, []string{"cnt"}, mismatch.Columns)
	})

	t.Run("too many files", func(t *testing.T) {
		_, err := NewFileSource(Daily(), "a", "b", "c").Load(ctx)
		var vErr *models.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("two files are joined on date", func(t *testing.T) {
		day := writeFile(t, "day.csv", "dteday,season,weathersit,workingday,holiday,cnt\n"+
			"2011-01-01,1,2,0,0,985\n"+
			"2011-01-02,1,2,0,0,801\n"+
			"2011-01-04,1,1,1,0,1562\n")
		hour := writeFile(t, "hour.csv", "dteday,hr,season,temp,hum,windspeed,cnt\n"+
			"2011-01-01,0,1,0.24,0.81,0,16\n"+
			"2011-01-01,1,1,0.22,0.80,0,40\n"+
			"2011-01-02,0,1,0.46,0.88,0,17\n"+
			"2011-01-03,0,1,0.22,0.44,0.4,5\n")

		table, err := NewFileSource(Merged(), day, hour).Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"dteday", "season_day", "weathersit", "workingday", "holiday", "cnt_day",
			"hr", "season_hour", "temp", "hum", "windspeed", "cnt_hour",
		}, table.Columns())
		require.Equal(t, 3, table.Len())
		assert.Equal(t, "985", table.Cell(0, "cnt_day"))
		assert.Equal(t, "40", table.Cell(1, "cnt_hour"))
		assert.Equal(t, date(2011, 1, 2), table.Date(2))
	})
}

func TestMergeSuffixesMustDiffer(t *testing.T) {
	a := mustTable(t, []string{"dteday", "cnt"})
	_, err := Merge(a, a, [2]string{"_x", "_x"})
	var vErr *models.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestMemorySource(t *testing.T) {
	table := mustTable(t, []string{"dteday", "cnt"}, []string{"2011-01-01", "1"})
	src := &MemorySource{Table: table}

	got, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, table, got)
	assert.Equal(t, "memory:test.csv", src.Describe())

	_, err = (&MemorySource{}).Load(context.Background())
	assert.True(t, models.IsDataUnavailable(err))
}

package split

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/sharing-ingest/internal/common"
	"github.com/Veraticus/sharing-ingest/internal/config"
	"github.com/Veraticus/sharing-ingest/internal/dataset"
	"github.com/Veraticus/sharing-ingest/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSharingCSV writes n rows shaped like the bike sharing dataset.
func writeSharingCSV(t *testing.T, path string, values []float64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("instant,season,temp,count\n")
	for i, v := range values {
		fmt.Fprintf(&b, "%d,%d,0.%03d,%s\n", i+1, i%4+1, i%1000, formatCount(v))
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0600))
}

func formatCount(v float64) string {
	return fmt.Sprintf("%g", v)
}

func newTestSplitter(t *testing.T) *Splitter {
	t.Helper()
	s, err := New(config.SplitConfig{
		Column:   "count",
		Bins:     config.DefaultBins,
		TestSize: 0.2,
		Seed:     42,
	})
	require.NoError(t, err)
	return s
}

type dirs struct {
	raw, train, test string
}

func newDirs(t *testing.T) dirs {
	t.Helper()
	root := t.TempDir()
	return dirs{
		raw:   filepath.Join(root, "raw"),
		train: filepath.Join(root, "ingested", "train"),
		test:  filepath.Join(root, "ingested", "test"),
	}
}

func TestSplitter_Split(t *testing.T) {
	d := newDirs(t)
	values := uniformCounts(1000, 11)
	writeSharingCSV(t, filepath.Join(d.raw, "day.csv"), values)

	artifact, err := newTestSplitter(t).Split(context.Background(), d.raw, d.train, d.test)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(d.train, "day.csv"), artifact.TrainFilePath)
	assert.Equal(t, filepath.Join(d.test, "day.csv"), artifact.TestFilePath)
	assert.True(t, artifact.IsIngested)
	assert.Equal(t, model.SuccessMessage, artifact.Message)
	assert.Equal(t, 800, artifact.TrainRows)
	assert.Equal(t, 200, artifact.TestRows)

	source, err := dataset.ReadFile(filepath.Join(d.raw, "day.csv"))
	require.NoError(t, err)
	train, err := dataset.ReadFile(artifact.TrainFilePath)
	require.NoError(t, err)
	test, err := dataset.ReadFile(artifact.TestFilePath)
	require.NoError(t, err)

	assert.Equal(t, source.Header, train.Header, "train keeps every column and adds none")
	assert.Equal(t, source.Header, test.Header, "test keeps every column and adds none")

	seen := make(map[string]int)
	for _, row := range append(append([][]string(nil), train.Rows...), test.Rows...) {
		seen[strings.Join(row, ",")]++
	}
	require.Len(t, seen, source.Len())
	for _, row := range source.Rows {
		assert.Equal(t, 1, seen[strings.Join(row, ",")])
	}
}

func TestSplitter_SplitRejectsSharedOutputDir(t *testing.T) {
	d := newDirs(t)
	writeSharingCSV(t, filepath.Join(d.raw, "day.csv"), uniformCounts(100, 3))

	artifact, err := newTestSplitter(t).Split(context.Background(), d.raw, d.train, d.train+string(filepath.Separator))
	require.ErrorIs(t, err, ErrSameOutputDir)
	require.ErrorIs(t, err, common.ErrFilesystem)
	assert.Nil(t, artifact)
	assert.NoDirExists(t, d.train)
}

func TestSplitter_SplitKeepsSourceRowOrder(t *testing.T) {
	d := newDirs(t)
	writeSharingCSV(t, filepath.Join(d.raw, "day.csv"), uniformCounts(120, 5))

	artifact, err := newTestSplitter(t).Split(context.Background(), d.raw, d.train, d.test)
	require.NoError(t, err)

	for _, path := range []string{artifact.TrainFilePath, artifact.TestFilePath} {
		table, err := dataset.ReadFile(path)
		require.NoError(t, err)
		prev := 0
		for _, row := range table.Rows {
			var instant int
			_, err := fmt.Sscanf(row[0], "%d", &instant)
			require.NoError(t, err)
			assert.Greater(t, instant, prev)
			prev = instant
		}
	}
}

func TestSplitter_SplitIsReproducible(t *testing.T) {
	values := uniformCounts(250, 9)
	read := func() (string, string) {
		d := newDirs(t)
		writeSharingCSV(t, filepath.Join(d.raw, "day.csv"), values)
		artifact, err := newTestSplitter(t).Split(context.Background(), d.raw, d.train, d.test)
		require.NoError(t, err)
		train, err := os.ReadFile(artifact.TrainFilePath)
		require.NoError(t, err)
		test, err := os.ReadFile(artifact.TestFilePath)
		require.NoError(t, err)
		return string(train), string(test)
	}

	train1, test1 := read()
	train2, test2 := read()
	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)
}

func TestSplitter_EmptyRawDir(t *testing.T) {
	d := newDirs(t)
	require.NoError(t, os.MkdirAll(d.raw, 0750))

	_, err := newTestSplitter(t).Split(context.Background(), d.raw, d.train, d.test)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDataFormat)
	assert.ErrorIs(t, err, ErrNoSourceFile)

	assert.NoDirExists(t, d.train)
	assert.NoDirExists(t, d.test)
}

func TestSplitter_MissingRawDir(t *testing.T) {
	d := newDirs(t)

	_, err := newTestSplitter(t).Split(context.Background(), d.raw, d.train, d.test)
	assert.ErrorIs(t, err, common.ErrFilesystem)
	assert.Equal(t, Stage, common.StageOf(err))
}

func TestSplitter_MultipleFiles(t *testing.T) {
	d := newDirs(t)
	writeSharingCSV(t, filepath.Join(d.raw, "day.csv"), uniformCounts(50, 1))
	writeSharingCSV(t, filepath.Join(d.raw, "hour.csv"), uniformCounts(50, 2))

	_, err := newTestSplitter(t).Split(context.Background(), d.raw, d.train, d.test)
	assert.ErrorIs(t, err, common.ErrDataFormat)
	assert.ErrorIs(t, err, ErrMultipleSourceFiles)
	assert.Contains(t, err.Error(), "day.csv")
	assert.Contains(t, err.Error(), "hour.csv")
	assert.NoDirExists(t, d.train)
}

func TestSourceFile_NestedAndHidden(t *testing.T) {
	d := newDirs(t)
	writeSharingCSV(t, filepath.Join(d.raw, "bike_sharing", "day.csv"), uniformCounts(30, 1))
	require.NoError(t, os.WriteFile(filepath.Join(d.raw, ".DS_Store"), []byte("x"), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(d.raw, "__MACOSX", ".hidden"), 0750))

	path, err := SourceFile(d.raw)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(d.raw, "bike_sharing", "day.csv"), path)
}

func TestSplitter_DataFormatErrors(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		content string
	}{
		{
			name:    "missing column",
			content: "instant,cnt\n1,2\n2,3\n",
			wantErr: dataset.ErrColumnMissing,
		},
		{
			name:    "header only",
			content: "instant,count\n",
			wantErr: dataset.ErrNoRows,
		},
		{
			name:    "negative count",
			content: "instant,count\n1,-1\n2,3\n",
			wantErr: ErrOutOfRange,
		},
		{
			name:    "text in count",
			content: "instant,count\n1,many\n",
			wantErr: dataset.ErrNotNumeric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDirs(t)
			require.NoError(t, os.MkdirAll(d.raw, 0750))
			require.NoError(t, os.WriteFile(filepath.Join(d.raw, "day.csv"), []byte(tt.content), 0600))

			_, err := newTestSplitter(t).Split(context.Background(), d.raw, d.train, d.test)
			assert.ErrorIs(t, err, common.ErrDataFormat)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoFileExists(t, filepath.Join(d.train, "day.csv"))
		})
	}
}

func TestSplitter_CustomColumnAndBins(t *testing.T) {
	d := newDirs(t)
	var b strings.Builder
	b.WriteString("id,cnt\n")
	for i := range 40 {
		fmt.Fprintf(&b, "%d,%d\n", i, i*25)
	}
	require.NoError(t, os.MkdirAll(d.raw, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(d.raw, "hour.csv"), []byte(b.String()), 0600))

	s, err := New(config.SplitConfig{
		Column:   "cnt",
		Bins:     []float64{0, 500, math.Inf(1)},
		TestSize: 0.25,
		Seed:     1,
	})
	require.NoError(t, err)

	artifact, err := s.Split(context.Background(), d.raw, d.train, d.test)
	require.NoError(t, err)
	assert.Equal(t, 10, artifact.TestRows)
	assert.Equal(t, 30, artifact.TrainRows)
}

func TestNew_InvalidBins(t *testing.T) {
	_, err := New(config.SplitConfig{Bins: []float64{1}, TestSize: 0.2})
	assert.ErrorIs(t, err, ErrInvalidBins)
}

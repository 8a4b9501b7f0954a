package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/sharing-ingest/internal/common"
	"github.com/Veraticus/sharing-ingest/internal/config"
	"github.com/Veraticus/sharing-ingest/internal/dataset"
	"github.com/Veraticus/sharing-ingest/internal/metrics"
	"github.com/Veraticus/sharing-ingest/internal/model"
	"github.com/Veraticus/sharing-ingest/internal/testutil"
)

func sharingArchive(t *testing.T, rows int) []byte {
	t.Helper()
	data, err := os.ReadFile(testutil.WriteSharingArchive(t, t.TempDir(), rows))
	require.NoError(t, err)
	return data
}

func testConfig(t *testing.T, sourceURL string) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Ingestion: config.IngestionConfig{
			SourceURL:   sourceURL,
			DownloadDir: filepath.Join(root, "download"),
			RawDataDir:  filepath.Join(root, "raw"),
			TrainDir:    filepath.Join(root, "train"),
			TestDir:     filepath.Join(root, "test"),
		},
		Split: config.SplitConfig{
			Column:   config.DefaultColumn,
			Bins:     config.DefaultBins,
			TestSize: config.DefaultTestSize,
			Seed:     config.DefaultSeed,
		},
		Fetch: config.FetchConfig{Timeout: 10 * time.Second},
	}
}

func serveArchive(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/datasets/bike_sharing.tgz" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPipeline_EndToEnd(t *testing.T) {
	srv := serveArchive(t, sharingArchive(t, 100))
	cfg := testConfig(t, srv.URL+"/datasets/bike_sharing.tgz")

	db := testutil.SetupTestDB(t)
	store := db.Storage
	ctx := context.Background()

	m := metrics.New()
	p, err := NewFromConfig(cfg, nil)
	require.NoError(t, err)
	p.WithRecorder(store).WithMetrics(m)
	p.newID = func() string { return "run-e2e" }

	artifact, err := p.Run(ctx)
	require.NoError(t, err)

	assert.True(t, artifact.IsIngested)
	assert.Equal(t, model.SuccessMessage, artifact.Message)
	assert.Equal(t, filepath.Join(cfg.Ingestion.TrainDir, "day.csv"), artifact.TrainFilePath)
	assert.Equal(t, filepath.Join(cfg.Ingestion.TestDir, "day.csv"), artifact.TestFilePath)
	assert.Equal(t, 80, artifact.TrainRows)
	assert.Equal(t, 20, artifact.TestRows)

	assert.FileExists(t, filepath.Join(cfg.Ingestion.DownloadDir, "bike_sharing.tgz"))
	assert.FileExists(t, filepath.Join(cfg.Ingestion.RawDataDir, "day.csv"))

	train, err := dataset.ReadFile(artifact.TrainFilePath)
	require.NoError(t, err)
	test, err := dataset.ReadFile(artifact.TestFilePath)
	require.NoError(t, err)
	assert.Equal(t, testutil.SharingHeader, train.Header)
	assert.Equal(t, train.Header, test.Header)

	seen := make(map[string]bool)
	for _, row := range append(train.Rows, test.Rows...) {
		assert.False(t, seen[row[0]], "row %s written twice", row[0])
		seen[row[0]] = true
	}
	assert.Len(t, seen, 100)

	run, err := store.GetRun(ctx, "run-e2e")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
	require.NotNil(t, run.Artifact)
	assert.Equal(t, *artifact, *run.Artifact)

	expected := `
# HELP sharing_ingest_runs_total Ingestion runs by outcome.
# TYPE sharing_ingest_runs_total counter
sharing_ingest_runs_total{status="succeeded"} 1
# HELP sharing_ingest_rows Rows written by the last successful split.
# TYPE sharing_ingest_rows gauge
sharing_ingest_rows{subset="test"} 20
sharing_ingest_rows{subset="train"} 80
`
	require.NoError(t, promtestutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"sharing_ingest_runs_total", "sharing_ingest_rows"))

	stages, err := promtestutil.GatherAndCount(m.Registry(), "sharing_ingest_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, stages)
}

type fakeFetcher struct {
	err   error
	path  string
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.path, f.err
}

type fakeExtractor struct {
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _, _ string) error {
	f.calls++
	return f.err
}

type fakeSplitter struct {
	artifact *model.Artifact
	err      error
	calls    int
}

func (f *fakeSplitter) Split(_ context.Context, _, _, _ string) (*model.Artifact, error) {
	f.calls++
	return f.artifact, f.err
}

type fakeRecorder struct {
	startErr  error
	finishErr error
	started   []model.Run
	finished  []model.Run
}

func (f *fakeRecorder) StartRun(_ context.Context, run *model.Run) error {
	f.started = append(f.started, *run)
	return f.startErr
}

func (f *fakeRecorder) FinishRun(_ context.Context, run *model.Run) error {
	f.finished = append(f.finished, *run)
	return f.finishErr
}

func okArtifact() *model.Artifact {
	return &model.Artifact{
		TrainFilePath: "/train/day.csv",
		TestFilePath:  "/test/day.csv",
		IsIngested:    true,
		Message:       model.SuccessMessage,
		TrainRows:     8,
		TestRows:      2,
	}
}

func TestPipeline_PropagatesFirstError(t *testing.T) {
	fetchErr := common.NetworkError("fetch", "https://example.com/a.tgz", errors.New("connection refused"))
	extractErr := common.DataFormatError("extract", "/download/a.tgz", errors.New("not a gzip stream"))
	splitErr := common.DataFormatError("split", "/raw", errors.New("no source file"))

	tests := []struct {
		fetcher      *fakeFetcher
		extractor    *fakeExtractor
		splitter     *fakeSplitter
		wantErr      error
		name         string
		wantStage    string
		wantExtracts int
		wantSplits   int
	}{
		{
			name:      "fetch fails",
			fetcher:   &fakeFetcher{err: fetchErr},
			extractor: &fakeExtractor{},
			splitter:  &fakeSplitter{artifact: okArtifact()},
			wantErr:   fetchErr,
			wantStage: "fetch",
		},
		{
			name:         "extract fails",
			fetcher:      &fakeFetcher{path: "/download/a.tgz"},
			extractor:    &fakeExtractor{err: extractErr},
			splitter:     &fakeSplitter{artifact: okArtifact()},
			wantErr:      extractErr,
			wantStage:    "extract",
			wantExtracts: 1,
		},
		{
			name:         "split fails",
			fetcher:      &fakeFetcher{path: "/download/a.tgz"},
			extractor:    &fakeExtractor{},
			splitter:     &fakeSplitter{err: splitErr},
			wantErr:      splitErr,
			wantStage:    "split",
			wantExtracts: 1,
			wantSplits:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			p := New(config.IngestionConfig{SourceURL: "https://example.com/a.tgz"}, tt.fetcher, tt.extractor, tt.splitter).
				WithRecorder(rec)

			artifact, err := p.Run(context.Background())
			assert.Nil(t, artifact)
			assert.Same(t, tt.wantErr, err)
			assert.Equal(t, 1, tt.fetcher.calls)
			assert.Equal(t, tt.wantExtracts, tt.extractor.calls)
			assert.Equal(t, tt.wantSplits, tt.splitter.calls)

			require.Len(t, rec.started, 1)
			require.Len(t, rec.finished, 1)
			assert.Equal(t, model.RunStatusRunning, rec.started[0].Status)
			finished := rec.finished[0]
			assert.Equal(t, model.RunStatusFailed, finished.Status)
			assert.Equal(t, tt.wantStage, finished.Stage)
			assert.Equal(t, err.Error(), finished.Error)
			assert.Nil(t, finished.Artifact)
			assert.NotNil(t, finished.FinishedAt)
		})
	}
}

func TestPipeline_RecorderFailureDoesNotFailRun(t *testing.T) {
	rec := &fakeRecorder{
		startErr:  errors.New("database is locked"),
		finishErr: errors.New("database is locked"),
	}
	p := New(config.IngestionConfig{SourceURL: "https://example.com/a.tgz"},
		&fakeFetcher{path: "/download/a.tgz"}, &fakeExtractor{}, &fakeSplitter{artifact: okArtifact()}).
		WithRecorder(rec)

	artifact, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, okArtifact(), artifact)
	require.Len(t, rec.finished, 1)
	assert.Equal(t, model.RunStatusSucceeded, rec.finished[0].Status)
}

func TestPipeline_CanceledContextStopsBeforeFirstStage(t *testing.T) {
	fetcher := &fakeFetcher{path: "/download/a.tgz"}
	p := New(config.IngestionConfig{SourceURL: "https://example.com/a.tgz"},
		fetcher, &fakeExtractor{}, &fakeSplitter{artifact: okArtifact()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	artifact, err := p.Run(ctx)
	assert.Nil(t, artifact)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "fetch", common.StageOf(err))
	assert.Zero(t, fetcher.calls)
}

func TestPipeline_RunScopedLogger(t *testing.T) {
	var buf strings.Builder
	logger, err := common.NewLogger(&buf, slog.LevelInfo, "json")
	require.NoError(t, err)

	p := New(config.IngestionConfig{SourceURL: "https://example.com/a.tgz"},
		&fakeFetcher{path: "/download/a.tgz"}, &fakeExtractor{}, &fakeSplitter{artifact: okArtifact()})
	p.newID = func() string { return "run-log" }

	_, err = p.Run(common.WithLogger(context.Background(), logger))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"Data ingestion log started"`)
	assert.Contains(t, out, `"msg":"Data ingestion log completed"`)
	assert.Equal(t, 2, strings.Count(out, `"run_id":"run-log"`))
}

func TestPipeline_NewFromConfigRejectsBadBins(t *testing.T) {
	cfg := testConfig(t, "https://example.com/a.tgz")
	cfg.Split.Bins = []float64{1}

	_, err := NewFromConfig(cfg, nil)
	require.Error(t, err)
}

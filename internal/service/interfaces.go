// Package service defines the interfaces between the ingestion stages and
// their supporting infrastructure.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/sharing-ingest/internal/model"
)

// Fetcher downloads a remote dataset into a directory and returns the local path.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, destDir string) (string, error)
}

// Extractor unpacks a downloaded file into the raw data directory.
type Extractor interface {
	Extract(ctx context.Context, archivePath, rawDir string) error
}

// Splitter turns the raw data directory into train and test files.
type Splitter interface {
	Split(ctx context.Context, rawDir, trainDir, testDir string) (*model.Artifact, error)
}

// RunRecorder persists the lifecycle of ingestion runs.
type RunRecorder interface {
	StartRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
}

// RunHistory defines the contract for reading past runs.
type RunHistory interface {
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	RunRecorder
	RunHistory

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Metrics receives measurements from a pipeline run.
type Metrics interface {
	ObserveStage(stage string, d time.Duration)
	SetDownloadBytes(n int64)
	RunSucceeded(trainRows, testRows int, at time.Time)
	RunFailed()
}

// Package ingest chains the fetch, extract, and split stages into one run.
package ingest

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/sharing-ingest/internal/common"
	"github.com/Veraticus/sharing-ingest/internal/config"
	"github.com/Veraticus/sharing-ingest/internal/extract"
	"github.com/Veraticus/sharing-ingest/internal/fetch"
	"github.com/Veraticus/sharing-ingest/internal/model"
	"github.com/Veraticus/sharing-ingest/internal/service"
	"github.com/Veraticus/sharing-ingest/internal/split"
)

// Pipeline orchestrates a single ingestion run.
type Pipeline struct {
	fetcher   service.Fetcher
	extractor service.Extractor
	splitter  service.Splitter
	recorder  service.RunRecorder
	metrics   service.Metrics
	now       func() time.Time
	newID     func() string
	cfg       config.IngestionConfig
}

// New creates a pipeline from explicit stage implementations.
func New(cfg config.IngestionConfig, fetcher service.Fetcher, extractor service.Extractor, splitter service.Splitter) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		splitter:  splitter,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// NewFromConfig wires the default stages from cfg. A nil progress writer
// disables the download progress bar.
func NewFromConfig(cfg *config.Config, progress io.Writer) (*Pipeline, error) {
	splitter, err := split.New(cfg.Split)
	if err != nil {
		return nil, err
	}
	if !cfg.Fetch.Progress {
		progress = nil
	}
	return New(cfg.Ingestion, fetch.New(cfg.Fetch.Timeout, progress), extract.New(), splitter), nil
}

// WithRecorder records every run in r.
func (p *Pipeline) WithRecorder(r service.RunRecorder) *Pipeline {
	p.recorder = r
	return p
}

// WithMetrics reports stage timings and outcomes to m.
func (p *Pipeline) WithMetrics(m service.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// Run fetches, extracts, and splits the configured source. The first stage
// error is returned unchanged and no artifact is produced.
func (p *Pipeline) Run(ctx context.Context) (*model.Artifact, error) {
	run := &model.Run{
		ID:        p.newID(),
		SourceURL: p.cfg.SourceURL,
		Status:    model.RunStatusRunning,
		StartedAt: p.now(),
	}

	logger := common.LoggerFrom(ctx).With("run_id", run.ID, "source_url", run.SourceURL)
	ctx = common.WithLogger(ctx, logger)

	logger.Info("Data ingestion log started")
	p.recordStart(ctx, run)

	artifact, err := p.execute(ctx)

	finished := p.now()
	run.FinishedAt = &finished
	if err != nil {
		run.Status = model.RunStatusFailed
		run.Stage = common.StageOf(err)
		run.Error = err.Error()
		p.recordFinish(ctx, run)
		if p.metrics != nil {
			p.metrics.RunFailed()
		}
		logger.Error("Data ingestion failed", "stage", run.Stage, "error", err)
		return nil, err
	}

	run.Status = model.RunStatusSucceeded
	run.Artifact = artifact
	p.recordFinish(ctx, run)
	if p.metrics != nil {
		p.metrics.RunSucceeded(artifact.TrainRows, artifact.TestRows, finished)
	}

	logger.Info("Data ingestion log completed",
		"train_file_path", artifact.TrainFilePath,
		"test_file_path", artifact.TestFilePath,
		"duration", run.Duration())
	return artifact, nil
}

func (p *Pipeline) execute(ctx context.Context) (*model.Artifact, error) {
	var archivePath string
	err := p.stage(ctx, fetch.Stage, func() error {
		var err error
		archivePath, err = p.fetcher.Fetch(ctx, p.cfg.SourceURL, p.cfg.DownloadDir)
		return err
	})
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		if info, statErr := os.Stat(archivePath); statErr == nil {
			p.metrics.SetDownloadBytes(info.Size())
		}
	}

	err = p.stage(ctx, extract.Stage, func() error {
		return p.extractor.Extract(ctx, archivePath, p.cfg.RawDataDir)
	})
	if err != nil {
		return nil, err
	}

	var artifact *model.Artifact
	err = p.stage(ctx, split.Stage, func() error {
		var err error
		artifact, err = p.splitter.Split(ctx, p.cfg.RawDataDir, p.cfg.TrainDir, p.cfg.TestDir)
		return err
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// stage runs fn unless ctx is already done and times it.
func (p *Pipeline) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return common.NewIngestionError(common.KindCanceled, name, "", err)
	}

	start := p.now()
	err := fn()
	if p.metrics != nil {
		p.metrics.ObserveStage(name, p.now().Sub(start))
	}
	return err
}

func (p *Pipeline) recordStart(ctx context.Context, run *model.Run) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.StartRun(ctx, run); err != nil {
		common.LogError(ctx, err, "Failed to record run start", common.Fields{"run_id": run.ID})
	}
}

func (p *Pipeline) recordFinish(ctx context.Context, run *model.Run) {
	if p.recorder == nil {
		return
	}
	// The run is finished even if the caller's context is not.
	if err := p.recorder.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		common.LogError(ctx, err, "Failed to record run result", common.Fields{"run_id": run.ID})
	}
}

// Package split derives the stratification key from a numeric column and
// writes a reproducible stratified train/test split of the raw table.
package split

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/sharing-ingest/internal/common"
	"github.com/Veraticus/sharing-ingest/internal/config"
	"github.com/Veraticus/sharing-ingest/internal/dataset"
	"github.com/Veraticus/sharing-ingest/internal/model"
)

// Stage is the name recorded on errors raised by the splitter.
const Stage = "split"

// Source file errors.
var (
	ErrNoSourceFile        = errors.New("raw data directory contains no files")
	ErrMultipleSourceFiles = errors.New("raw data directory contains more than one file")
	ErrSameOutputDir       = errors.New("train and test directories are the same")
)

// Result is an in-memory split of a table.
type Result struct {
	Train      *dataset.Table
	Test       *dataset.Table
	Values     []float64
	Labels     []int
	TrainIndex []int
	TestIndex  []int
}

// Splitter loads the raw table and writes the stratified split.
type Splitter struct {
	Column   string
	Bins     Bins
	Strategy StratifiedShuffleSplit
}

// New builds a Splitter from split settings.
func New(cfg config.SplitConfig) (*Splitter, error) {
	bins, err := NewBins(cfg.Bins)
	if err != nil {
		return nil, err
	}
	column := cfg.Column
	if column == "" {
		column = config.DefaultColumn
	}
	return &Splitter{
		Column:   column,
		Bins:     bins,
		Strategy: StratifiedShuffleSplit{TestSize: cfg.TestSize, Seed: cfg.Seed},
	}, nil
}

// SourceFile returns the single regular file under rawDir. Hidden files are
// ignored; zero or several candidates are an error.
func SourceFile(rawDir string) (string, error) {
	if _, err := os.Stat(rawDir); err != nil {
		return "", common.FilesystemError(Stage, rawDir, err)
	}

	var files []string
	err := filepath.WalkDir(rawDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != rawDir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return "", common.FilesystemError(Stage, rawDir, err)
	}

	switch len(files) {
	case 0:
		return "", common.DataFormatError(Stage, rawDir, ErrNoSourceFile)
	case 1:
		return files[0], nil
	default:
		return "", common.DataFormatError(Stage, rawDir,
			fmt.Errorf("%w: %s", ErrMultipleSourceFiles, strings.Join(relative(rawDir, files), ", ")))
	}
}

func relative(base string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if rel, err := filepath.Rel(base, p); err == nil {
			out[i] = rel
		} else {
			out[i] = p
		}
	}
	return out
}

// SplitTable bins the stratification column and partitions the rows. The
// key is never added to the table, so neither subset carries it.
func (s *Splitter) SplitTable(table *dataset.Table) (*Result, error) {
	values, err := table.Float64Column(s.Column)
	if err != nil {
		return nil, err
	}

	labels, err := s.Bins.Assign(values)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", s.Column, err)
	}

	train, test, err := s.Strategy.Split(labels)
	if err != nil {
		return nil, err
	}

	return &Result{
		Train:      table.Select(train),
		Test:       table.Select(test),
		Values:     values,
		Labels:     labels,
		TrainIndex: train,
		TestIndex:  test,
	}, nil
}

// Split reads the raw table, splits it, and writes trainDir/<name> and
// testDir/<name>. A failed test write leaves the train file in place.
func (s *Splitter) Split(ctx context.Context, rawDir, trainDir, testDir string) (*model.Artifact, error) {
	artifact, _, err := s.split(ctx, rawDir, trainDir, testDir)
	return artifact, err
}

// SplitWithReport behaves like Split and also returns the bucket report.
func (s *Splitter) SplitWithReport(ctx context.Context, rawDir, trainDir, testDir string) (*model.Artifact, *Report, error) {
	artifact, result, err := s.split(ctx, rawDir, trainDir, testDir)
	if err != nil {
		return nil, nil, err
	}
	report, err := NewReport(s.Column, s.Bins, result)
	if err != nil {
		return nil, nil, common.DataFormatError(Stage, rawDir, err)
	}
	return artifact, report, nil
}

func (s *Splitter) split(ctx context.Context, rawDir, trainDir, testDir string) (*model.Artifact, *Result, error) {
	logger := common.LoggerFrom(ctx)

	if filepath.Clean(trainDir) == filepath.Clean(testDir) {
		return nil, nil, common.FilesystemError(Stage, trainDir, ErrSameOutputDir)
	}

	sourcePath, err := SourceFile(rawDir)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Reading csv file", "path", sourcePath)
	table, err := dataset.ReadFile(sourcePath)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, nil, common.FilesystemError(Stage, sourcePath, err)
		}
		return nil, nil, common.DataFormatError(Stage, sourcePath, err)
	}

	logger.Info("Splitting data into train and test",
		"rows", table.Len(),
		"column", s.Column,
		"test_size", s.Strategy.TestSize,
		"seed", s.Strategy.Seed)
	result, err := s.SplitTable(table)
	if err != nil {
		return nil, nil, common.DataFormatError(Stage, sourcePath, err)
	}

	name := filepath.Base(sourcePath)
	trainPath := filepath.Join(trainDir, name)
	testPath := filepath.Join(testDir, name)

	logger.Info("Exporting training dataset", "path", trainPath, "rows", result.Train.Len())
	if err := result.Train.WriteFile(trainPath); err != nil {
		return nil, nil, common.FilesystemError(Stage, trainPath, err)
	}

	logger.Info("Exporting test dataset", "path", testPath, "rows", result.Test.Len())
	if err := result.Test.WriteFile(testPath); err != nil {
		return nil, nil, common.FilesystemError(Stage, testPath, err)
	}

	artifact := &model.Artifact{
		TrainFilePath: trainPath,
		TestFilePath:  testPath,
		IsIngested:    true,
		Message:       model.SuccessMessage,
		SourceFile:    name,
		TrainRows:     result.Train.Len(),
		TestRows:      result.Test.Len(),
	}
	logger.Info("Data ingestion artifact",
		"train_file_path", artifact.TrainFilePath,
		"test_file_path", artifact.TestFilePath,
		"is_ingested", artifact.IsIngested)

	return artifact, result, nil
}

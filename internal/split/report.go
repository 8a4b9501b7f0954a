package split

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/Veraticus/sharing-ingest/internal/common"
	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"
)

// BucketRow is one line of the stratification report.
type BucketRow struct {
	Bucket      int     `csv:"bucket"`
	Lower       string  `csv:"lower"`
	Upper       string  `csv:"upper"`
	SourceRows  int     `csv:"source_rows"`
	TrainRows   int     `csv:"train_rows"`
	TestRows    int     `csv:"test_rows"`
	SourceShare float64 `csv:"source_share"`
	TrainShare  float64 `csv:"train_share"`
	TestShare   float64 `csv:"test_share"`
}

// ColumnSummary describes the distribution of the stratification column.
type ColumnSummary struct {
	Mean   float64
	Median float64
	Min    float64
	Max    float64
	P25    float64
	P75    float64
}

// Report compares bucket proportions across the source, train, and test sets.
type Report struct {
	Column  string
	Buckets []BucketRow
	Summary ColumnSummary
}

// NewReport tallies result by bucket and summarises the column values.
func NewReport(column string, bins Bins, result *Result) (*Report, error) {
	buckets := make([]BucketRow, bins.Count())
	for i := range buckets {
		lower, upper := bins.Bounds(i + 1)
		buckets[i] = BucketRow{
			Bucket: i + 1,
			Lower:  strconv.FormatFloat(lower, 'g', -1, 64),
			Upper:  strconv.FormatFloat(upper, 'g', -1, 64),
		}
	}

	for _, l := range result.Labels {
		buckets[l-1].SourceRows++
	}
	for _, idx := range result.TrainIndex {
		buckets[result.Labels[idx]-1].TrainRows++
	}
	for _, idx := range result.TestIndex {
		buckets[result.Labels[idx]-1].TestRows++
	}

	total := len(result.Labels)
	nTrain := len(result.TrainIndex)
	nTest := len(result.TestIndex)
	for i := range buckets {
		buckets[i].SourceShare = share(buckets[i].SourceRows, total)
		buckets[i].TrainShare = share(buckets[i].TrainRows, nTrain)
		buckets[i].TestShare = share(buckets[i].TestRows, nTest)
	}

	summary, err := summarize(result.Values)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize column %q: %w", column, err)
	}

	return &Report{Column: column, Buckets: buckets, Summary: summary}, nil
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func summarize(values []float64) (ColumnSummary, error) {
	data := stats.Float64Data(values)

	var s ColumnSummary
	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, err
	}
	if s.Min, err = stats.Min(data); err != nil {
		return s, err
	}
	if s.Max, err = stats.Max(data); err != nil {
		return s, err
	}
	if s.P25, err = stats.Percentile(data, 25); err != nil {
		return s, err
	}
	if s.P75, err = stats.Percentile(data, 75); err != nil {
		return s, err
	}
	return s, nil
}

// MaxShareDelta is the largest gap between a bucket's train and test share.
func (r *Report) MaxShareDelta() float64 {
	var worst float64
	for _, b := range r.Buckets {
		d := b.TrainShare - b.TestShare
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst = d
		}
	}
	return worst
}

// WriteCSV writes one row per bucket with a header.
func (r *Report) WriteCSV(w io.Writer) error {
	return gocsv.Marshal(&r.Buckets, w)
}

// Log emits the report through the context logger.
func (r *Report) Log(ctx context.Context) {
	logger := common.LoggerFrom(ctx)
	logger.Info("Stratification column summary",
		"column", r.Column,
		"mean", r.Summary.Mean,
		"median", r.Summary.Median,
		"min", r.Summary.Min,
		"max", r.Summary.Max,
		"p25", r.Summary.P25,
		"p75", r.Summary.P75)
	for _, b := range r.Buckets {
		logger.Debug("Stratification bucket",
			"bucket", b.Bucket,
			"source_rows", b.SourceRows,
			"train_share", b.TrainShare,
			"test_share", b.TestShare)
	}
}

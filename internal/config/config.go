package config

import (
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"time"

	"github.com/Veraticus/sharing-ingest/internal/common"
	"github.com/spf13/viper"
)

// Defaults applied when a key is absent from file, env, and flags.
const (
	DefaultColumn       = "count"
	DefaultTestSize     = 0.2
	DefaultSeed         = 42
	DefaultFetchTimeout = 5 * time.Minute
	DefaultDatabasePath = "$HOME/.local/share/sharing/sharing.db"
)

// DefaultBins are the stratification edges for the default column.
var DefaultBins = []float64{0.0, 1.5, 3.0, 4.5, 6.0, math.Inf(1)}

// Config is the full set of ingestion settings. It is read once at startup
// and never mutated by the pipeline.
type Config struct {
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Split     SplitConfig     `mapstructure:"split"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
}

// IngestionConfig names the source and the directory tree a run owns.
type IngestionConfig struct {
	SourceURL   string `mapstructure:"source_url"`
	DownloadDir string `mapstructure:"download_dir"`
	RawDataDir  string `mapstructure:"raw_data_dir"`
	TrainDir    string `mapstructure:"train_dir"`
	TestDir     string `mapstructure:"test_dir"`
}

// SplitConfig controls the stratified split.
type SplitConfig struct {
	Column   string    `mapstructure:"column"`
	Bins     []float64 `mapstructure:"bins"`
	TestSize float64   `mapstructure:"test_size"`
	Seed     uint64    `mapstructure:"seed"`
}

// FetchConfig controls the download.
type FetchConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Progress bool          `mapstructure:"progress"`
}

// DatabaseConfig locates the run history database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig enables the Prometheus textfile export when Textfile is set.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers default values on v. Keys without a useful default
// are registered empty so AutomaticEnv can still fill them on Unmarshal.
func SetDefaults(v *viper.Viper) {
	for _, key := range []string{
		"ingestion.source_url",
		"ingestion.download_dir",
		"ingestion.raw_data_dir",
		"ingestion.train_dir",
		"ingestion.test_dir",
		"metrics.textfile",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("split.column", DefaultColumn)
	v.SetDefault("split.test_size", DefaultTestSize)
	v.SetDefault("split.seed", DefaultSeed)
	v.SetDefault("fetch.timeout", DefaultFetchTimeout)
	v.SetDefault("fetch.progress", true)
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load decodes v into a Config, expands paths, and fills in defaults that
// viper cannot express (the +Inf bin edge).
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}

	if len(cfg.Split.Bins) == 0 {
		cfg.Split.Bins = append([]float64(nil), DefaultBins...)
	}
	if cfg.Split.Column == "" {
		cfg.Split.Column = DefaultColumn
	}

	cfg.Ingestion.DownloadDir = ExpandPath(cfg.Ingestion.DownloadDir)
	cfg.Ingestion.RawDataDir = ExpandPath(cfg.Ingestion.RawDataDir)
	cfg.Ingestion.TrainDir = ExpandPath(cfg.Ingestion.TrainDir)
	cfg.Ingestion.TestDir = ExpandPath(cfg.Ingestion.TestDir)
	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Metrics.Textfile = ExpandPath(cfg.Metrics.Textfile)

	return &cfg, nil
}

// Validate checks everything a full ingestion run needs.
func (c *Config) Validate() error {
	if err := c.ValidateSplit(); err != nil {
		return err
	}

	required := []struct {
		name  string
		value string
	}{
		{"ingestion.source_url", c.Ingestion.SourceURL},
		{"ingestion.download_dir", c.Ingestion.DownloadDir},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", common.ErrMissingConfig, r.name)
		}
	}

	u, err := url.Parse(c.Ingestion.SourceURL)
	if err != nil {
		return fmt.Errorf("%w: ingestion.source_url: %v", common.ErrInvalidConfig, err)
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return fmt.Errorf("%w: ingestion.source_url: unsupported scheme %q", common.ErrInvalidConfig, u.Scheme)
	}

	if Overlaps(c.Ingestion.DownloadDir, c.Ingestion.RawDataDir) {
		return fmt.Errorf("%w: ingestion.download_dir %q and ingestion.raw_data_dir %q must not overlap",
			common.ErrInvalidConfig, c.Ingestion.DownloadDir, c.Ingestion.RawDataDir)
	}

	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("%w: fetch.timeout must not be negative", common.ErrInvalidConfig)
	}

	return nil
}

// ValidateSplit checks only what the splitter needs, so a split can run
// against an existing raw directory without a source URL.
func (c *Config) ValidateSplit() error {
	if c.Ingestion.RawDataDir == "" {
		return fmt.Errorf("%w: ingestion.raw_data_dir", common.ErrMissingConfig)
	}
	if c.Ingestion.TrainDir == "" {
		return fmt.Errorf("%w: ingestion.train_dir", common.ErrMissingConfig)
	}
	if c.Ingestion.TestDir == "" {
		return fmt.Errorf("%w: ingestion.test_dir", common.ErrMissingConfig)
	}
	if filepath.Clean(c.Ingestion.TrainDir) == filepath.Clean(c.Ingestion.TestDir) {
		return fmt.Errorf("%w: ingestion.train_dir and ingestion.test_dir must differ, both are %q",
			common.ErrInvalidConfig, c.Ingestion.TrainDir)
	}
	if c.Split.TestSize <= 0 || c.Split.TestSize >= 1 {
		return fmt.Errorf("%w: split.test_size must be in (0, 1), got %v", common.ErrInvalidConfig, c.Split.TestSize)
	}
	if len(c.Split.Bins) < 2 {
		return fmt.Errorf("%w: split.bins needs at least two edges", common.ErrInvalidConfig)
	}
	for i := 1; i < len(c.Split.Bins); i++ {
		if !(c.Split.Bins[i] > c.Split.Bins[i-1]) {
			return fmt.Errorf("%w: split.bins must be strictly increasing", common.ErrInvalidConfig)
		}
	}
	return nil
}

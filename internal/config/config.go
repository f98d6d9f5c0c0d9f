// Package config holds the run-wide settings cmd/extract.go collects
// from flags, independent of any one region's settings (internal/region
// owns those).
package config

import (
	"fmt"
	"runtime"
	"time"
)

// WriterFormat selects which internal/osmio Writer implementation
// backs every configured region.
type WriterFormat string

const (
	WriterXML     WriterFormat = "xml"
	WriterGeoJSON WriterFormat = "geojson"
	WriterParquet WriterFormat = "parquet"
)

// Config holds the settings that apply to an entire extraction run,
// across every region.
type Config struct {
	InputFile   string
	RegionsFile string
	FilterFile  string

	Writer        WriterFormat
	Workers       int
	ChannelBuffer int
	BatchSize     int
	WithGeometry  bool
	TargetSRID    int

	Verbose         bool
	LogFile         string
	MetricsInterval time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Writer:          WriterXML,
		Workers:         runtime.NumCPU(),
		ChannelBuffer:   50_000,
		BatchSize:       50_000,
		TargetSRID:      4326,
		MetricsInterval: 30 * time.Second,
	}
}

// Validate checks that the configuration is usable before a run
// starts.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if c.RegionsFile == "" {
		return fmt.Errorf("regions file is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.ChannelBuffer < 1 {
		return fmt.Errorf("channel buffer must be at least 1")
	}
	switch c.Writer {
	case WriterXML, WriterGeoJSON, WriterParquet:
	default:
		return fmt.Errorf("unknown writer format %q (want xml, geojson, or parquet)", c.Writer)
	}
	return nil
}

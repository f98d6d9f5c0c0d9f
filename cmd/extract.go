package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"

	"github.com/wegman-software/osm-extract-go/internal/config"
	"github.com/wegman-software/osm-extract-go/internal/filter"
	"github.com/wegman-software/osm-extract-go/internal/logger"
	"github.com/wegman-software/osm-extract-go/internal/metrics"
	"github.com/wegman-software/osm-extract-go/internal/osmio"
	"github.com/wegman-software/osm-extract-go/internal/progress"
	"github.com/wegman-software/osm-extract-go/internal/region"
	"github.com/wegman-software/osm-extract-go/internal/softcut"
)

var (
	regionsFile  string
	filterFile   string
	writerFormat string
	withGeometry bool
	targetSRID   int
)

var extractCmd = &cobra.Command{
	Use:   "extract <input.osm.pbf|input.osm>",
	Short: "Extract reference-complete region extracts from an OSM input",
	Long: `extract drives the softcut two-pass algorithm once over the given
input and writes one output per region listed in --regions. Pass one
determines, for each region, the exact set of node, way, and relation
versions that belong to its extract; pass two emits them.

A region whose writer fails partway through is reported after the run
but does not stop the others from completing.`,
	Args: cobra.ExactArgs(1),
	Run:  runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&regionsFile, "regions", "", "Path to the regions YAML file (required)")
	extractCmd.Flags().StringVar(&filterFile, "filter", "", "Path to a tag-filter YAML file (optional)")
	extractCmd.Flags().StringVar(&writerFormat, "writer", string(config.WriterXML), "Output format: xml, geojson, or parquet")
	extractCmd.Flags().BoolVar(&withGeometry, "with-geometry", false, "Resolve and embed geometry (geojson always does; parquet is opt-in)")
	extractCmd.Flags().IntVar(&targetSRID, "target-srid", 4326, "Target SRID for embedded geometry (4326 or 3857)")
	extractCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per Parquet row group")
	extractCmd.Flags().IntVar(&cfg.ChannelBuffer, "channel-buffer", cfg.ChannelBuffer, "Buffer size for the scan-to-sink object channel")

	extractCmd.MarkFlagRequired("regions")
}

func runExtract(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	cfg.RegionsFile = regionsFile
	cfg.FilterFile = filterFile
	cfg.Writer = config.WriterFormat(writerFormat)
	cfg.WithGeometry = withGeometry
	cfg.TargetSRID = targetSRID

	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	specs, err := region.Load(cfg.RegionsFile)
	if err != nil {
		exitWithError("failed to load regions", err)
	}

	filterCfg := filter.Default()
	if cfg.FilterFile != "" {
		filterCfg, err = filter.Load(cfg.FilterFile)
		if err != nil {
			exitWithError("failed to load filter", err)
		}
	}

	states, err := buildStates(specs, filterCfg)
	if err != nil {
		exitWithError("failed to build region states", err)
	}

	var src softcut.Source
	if isXMLInput(cfg.InputFile) {
		src = osmio.NewXMLSource(cfg.InputFile, cfg.ChannelBuffer)
	} else {
		src = osmio.NewPBFSource(cfg.InputFile, cfg.Workers, cfg.ChannelBuffer)
	}

	log.Info("starting extraction",
		zap.String("input", cfg.InputFile),
		zap.Int("regions", len(states)),
		zap.String("writer", string(cfg.Writer)),
		zap.Int("channel_buffer", cfg.ChannelBuffer),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsCtx, cancelMetrics := context.WithCancel(ctx)
	defer cancelMetrics()
	collector := metrics.NewCollector(cfg.MetricsInterval, log)
	go collector.Start(metricsCtx)

	driver := softcut.NewDriver(src, states)

	// tracker is rebuilt whenever the active pass changes so its
	// elapsed/throughput figures describe that pass alone, not a
	// blend of pass one's tail and pass two's first tick.
	var tracker *progress.Tracker
	var trackedPass string
	heartbeat := progress.NewTicker(ctx, 10*time.Second, func() {
		pass, nodes, ways, relations := driver.Progress()
		if pass == "" {
			return
		}
		if pass != trackedPass {
			tracker = progress.NewTracker(pass)
			trackedPass = pass
		}
		snap := tracker.Calculate(nodes, ways, relations)
		log.Info("extraction in progress",
			zap.String("pass", pass),
			zap.Duration("elapsed", snap.Elapsed),
			zap.Int64("nodes", snap.Nodes),
			zap.Int64("ways", snap.Ways),
			zap.Int64("relations", snap.Relations),
			zap.String("throughput", progress.FormatThroughput(snap.Throughput)),
		)
	})
	go heartbeat.Run()

	start := time.Now()
	regionErrs, err := driver.Run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		exitWithError("extraction failed", err)
	}

	for _, re := range regionErrs {
		log.Error("region failed during pass two", zap.String("region", re.Region), zap.Error(re.Err))
	}

	log.Info("extraction complete",
		zap.Duration("duration", elapsed.Round(time.Second)),
		zap.Int("regions_ok", len(states)-len(regionErrs)),
		zap.Int("regions_failed", len(regionErrs)),
	)
}

func buildStates(specs []region.Spec, filterCfg *filter.Config) ([]*softcut.ExtractState, error) {
	states := make([]*softcut.ExtractState, 0, len(specs))
	for _, spec := range specs {
		pred, err := spec.Predicate()
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", spec.Name, err)
		}

		writer, err := buildWriter(spec, filterCfg)
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", spec.Name, err)
		}

		states = append(states, softcut.NewExtractState(spec.Name, pred, writer))
	}
	return states, nil
}

func buildWriter(spec region.Spec, filterCfg *filter.Config) (softcut.Writer, error) {
	switch cfg.Writer {
	case config.WriterXML:
		return osmio.NewXMLWriter(spec.Output, filterCfg), nil
	case config.WriterGeoJSON:
		return osmio.NewGeoJSONWriter(spec.Output, spec.Output+".nodeindex.tmp", filterCfg), nil
	case config.WriterParquet:
		return &osmio.ParquetWriter{
			Dir:          spec.Output,
			BatchSize:    cfg.BatchSize,
			WithGeometry: cfg.WithGeometry,
			TargetSRID:   cfg.TargetSRID,
			Filter:       filterCfg,
		}, nil
	default:
		return nil, fmt.Errorf("unknown writer format %q", cfg.Writer)
	}
}

func isXMLInput(path string) bool {
	n := len(path)
	return n >= 4 && path[n-4:] == ".osm"
}

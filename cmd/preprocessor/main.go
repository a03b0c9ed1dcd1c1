package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lintang-b-s/fastisochrone/pkg"
	da "github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/logger"
	"github.com/lintang-b-s/fastisochrone/pkg/metrics"
	"github.com/lintang-b-s/fastisochrone/pkg/osmparser"
	"github.com/lintang-b-s/fastisochrone/pkg/preprocessor"
	"github.com/lintang-b-s/fastisochrone/pkg/spatialindex"
	"github.com/lintang-b-s/fastisochrone/pkg/storage"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	configPath     = flag.String("config", pkg.DEFAULT_CONFIG_DIRECTORY, "directory containing config.yaml")
	osmFile        = flag.String("osm", "", "openstreetmap .osm.pbf file, overrides osm.file")
	contourTargets = flag.Bool("contour_targets", false, "measure eccentricities only to the nodes nearest to the cell contours")
	metricsFile    = flag.String("metrics_file", "", "write preprocessing metrics in prometheus text format to this file")
)

func main() {
	flag.Parse()

	configErr := util.ReadConfig(*configPath)
	cfg, err := util.LoadFastIsochroneConfig()
	if err != nil {
		panic(err)
	}
	if *osmFile != "" {
		cfg.OsmFile = *osmFile
	}

	log, err := logger.NewWithConfig(logger.Config{Level: cfg.LogLevel, FilePath: cfg.LogFile})
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if configErr != nil {
		log.Warn("no config file, using defaults", zap.Error(configErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	graph, err := loadGraph(ctx, cfg, log)
	if err != nil {
		log.Fatal("loading graph failed", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "fastisochrone")

	pipeline := preprocessor.NewPipeline(graph, storage.NewDirectory(cfg.StorageDir), cfg, m, log)
	if *contourTargets {
		rtree := spatialindex.NewRtree()
		rtree.Build(graph, log)
		pipeline.SetLocationIndex(rtree)
	}
	if err := pipeline.Run(ctx); err != nil {
		log.Fatal("preprocessing failed", zap.Error(err))
	}

	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			log.Error("writing metrics failed", zap.Error(err))
		}
	}
	log.Info("preprocessing completed successfully", zap.String("storageDir", cfg.StorageDir),
		zap.Duration("took", time.Since(start)))
}

// loadGraph reads the graph written by a previous run, or parses the osm file and writes it.
func loadGraph(ctx context.Context, cfg util.FastIsochroneConfig, log *zap.Logger) (*da.Graph, error) {
	graphFile := filepath.Join(cfg.StorageDir, pkg.GRAPH_FILE)
	if _, err := os.Stat(graphFile); err == nil {
		log.Info("reading graph", zap.String("file", graphFile))
		return da.ReadGraph(graphFile)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if cfg.OsmFile == "" {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "osm.file is required when %s does not exist", graphFile)
	}
	graph, err := osmparser.NewOsmParser(log).Parse(ctx, cfg.OsmFile)
	if err != nil {
		return nil, err
	}
	parsedVertices := graph.NumberOfVertices()
	graph, _ = graph.LargestStronglyConnectedComponent()
	log.Info("kept largest strongly connected component", zap.Int("vertices", graph.NumberOfVertices()),
		zap.Int("removed", parsedVertices-graph.NumberOfVertices()))

	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, err
	}
	if err := graph.WriteGraph(graphFile); err != nil {
		return nil, err
	}
	log.Info("graph written", zap.String("file", graphFile))
	return graph, nil
}

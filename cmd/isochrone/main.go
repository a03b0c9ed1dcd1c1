package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/lintang-b-s/fastisochrone/pkg"
	"github.com/lintang-b-s/fastisochrone/pkg/costfunction"
	da "github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/isochrone"
	"github.com/lintang-b-s/fastisochrone/pkg/logger"
	"github.com/lintang-b-s/fastisochrone/pkg/metrics"
	"github.com/lintang-b-s/fastisochrone/pkg/preprocessor"
	"github.com/lintang-b-s/fastisochrone/pkg/spatialindex"
	"github.com/lintang-b-s/fastisochrone/pkg/storage"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	configPath    = flag.String("config", pkg.DEFAULT_CONFIG_DIRECTORY, "directory containing config.yaml")
	lat           = flag.Float64("lat", -7.7829, "origin latitude")
	lon           = flag.Float64("lon", 110.3671, "origin longitude")
	limit         = flag.Float64("limit", 600, "isochrone limit, seconds for fastest, meter for shortest")
	approximation = flag.Float64("approximation", -1, "share of reachable cell nodes that turns an active cell fully reachable, overrides isochrone.approximation")
	supercells    = flag.Bool("supercells", true, "merge fully reachable cells into supercell contours")
	format        = flag.String("format", formatGeoJSON, "output format: geojson or polyline")
	outFile       = flag.String("out", "", "output file, stdout if empty")
	verify        = flag.Bool("verify", false, "compare the reachable nodes with a full dijkstra search")
	metricsFile   = flag.String("metrics_file", "", "write query metrics in prometheus text format to this file")
)

func main() {
	flag.Parse()

	configErr := util.ReadConfig(*configPath)
	cfg, err := util.LoadFastIsochroneConfig()
	if err != nil {
		panic(err)
	}
	log, err := logger.NewWithConfig(logger.Config{Level: cfg.LogLevel, FilePath: cfg.LogFile})
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if configErr != nil {
		log.Warn("no config file, using defaults", zap.Error(configErr))
	}
	if *approximation >= 0 {
		cfg.Approximation = *approximation
	}
	if err := util.ValidateConfig(cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	weighting, ok := costfunction.NewWeighting(cfg.Weighting)
	if !ok {
		log.Fatal("unknown weighting", zap.String("weighting", cfg.Weighting))
	}

	graph, err := da.ReadGraph(filepath.Join(cfg.StorageDir, pkg.GRAPH_FILE))
	if err != nil {
		log.Fatal("reading graph failed, run the preprocessor first", zap.Error(err))
	}
	storages, err := preprocessor.LoadStorages(storage.NewDirectory(cfg.StorageDir), graph.NumberOfVertices(), weighting)
	if err != nil {
		log.Fatal("loading storages failed", zap.Error(err))
	}

	rtree := spatialindex.NewRtree()
	rtree.Build(graph, log)
	if !rtree.Covers(*lat, *lon) {
		log.Fatal("origin outside the graph extent", zap.Error(util.WrapErrorf(nil, util.ErrBadParamInput,
			"origin (%f, %f) is outside the graph extent", *lat, *lon)))
	}
	from, snapDist, ok := rtree.Snap(*lat, *lon, nil)
	if !ok {
		log.Fatal("no node to snap the origin to")
	}
	log.Info("origin snapped", zap.Uint32("node", uint32(from)), zap.Float64("distance", snapDist))

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "fastisochrone")

	start := time.Now()
	alg := isochrone.NewFastIsochroneAlgorithm(graph, weighting, storages.IsoNodes, storages.CellStorage,
		storages.EccStorage, storages.DistStorage, nil)
	alg.SetPhaseObserver(m)
	result, err := alg.CalcIsochroneNodes(context.Background(), from, *limit)
	if err != nil {
		m.RecordQuery(err, 0, 0)
		log.Fatal("isochrone query failed", zap.Error(err))
	}
	result.ApproximateActiveCells(cfg.Approximation)
	m.RecordQuery(nil, len(result.GetActiveCellMaps()), len(result.GetFullyReachableCells()))
	reachable := result.ReachableNodes()
	log.Info("isochrone calculated", zap.Int("reachableNodes", len(reachable)),
		zap.Int("activeCells", len(result.GetActiveCellMaps())),
		zap.Int("fullyReachableCells", len(result.GetFullyReachableCells())),
		zap.Duration("took", time.Since(start)))

	if *verify {
		verifyResult(graph, weighting, from, reachable, log)
	}

	polygons := isochrone.BuildIsochronePolygons(result, storages.CellStorage, graph, *supercells)

	var w io.Writer = os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			log.Fatal("creating output file failed", zap.Error(err))
		}
		defer f.Close()
		w = f
	}

	switch *format {
	case formatPolyline:
		err = writePolylines(w, polygons)
	default:
		err = writeGeoJSON(w, polygons, queryInfo{
			lat:            *lat,
			lon:            *lon,
			limit:          *limit,
			weighting:      weighting.Name(),
			reachableNodes: len(reachable),
			activeCells:    len(result.GetActiveCellMaps()),
			fullyReachable: len(result.GetFullyReachableCells()),
		})
	}
	if err != nil {
		log.Fatal("writing isochrone failed", zap.Error(err))
	}

	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			log.Error("writing metrics failed", zap.Error(err))
		}
	}
}

func verifyResult(graph *da.Graph, weighting costfunction.Weighting, from da.Index, reachable []da.Index,
	log *zap.Logger) {
	start := time.Now()
	want := isochrone.BoundedDijkstra(graph, weighting, nil, from, *limit)
	missing, extra := 0, 0
	got := make(map[da.Index]struct{}, len(reachable))
	for _, v := range reachable {
		got[v] = struct{}{}
		if _, ok := want[v]; !ok {
			extra++
		}
	}
	for v := range want {
		if _, ok := got[v]; !ok {
			missing++
		}
	}
	log.Info("verified against dijkstra", zap.Int("dijkstraNodes", len(want)), zap.Int("missing", missing),
		zap.Int("extra", extra), zap.Duration("dijkstraTook", time.Since(start)))
}

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/lintang-b-s/fastisochrone/pkg"
	"github.com/lintang-b-s/fastisochrone/pkg/concurrent"
	"github.com/lintang-b-s/fastisochrone/pkg/costfunction"
	da "github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/isochrone"
	log "github.com/lintang-b-s/fastisochrone/pkg/logger"
	"github.com/lintang-b-s/fastisochrone/pkg/metrics"
	"github.com/lintang-b-s/fastisochrone/pkg/preprocessor"
	"github.com/lintang-b-s/fastisochrone/pkg/storage"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	configPath  = flag.String("config", pkg.DEFAULT_CONFIG_DIRECTORY, "directory containing config.yaml")
	numQueries  = flag.Int("queries", 1000, "number of random origins")
	limitsFlag  = flag.String("limits", "300,600,900", "comma separated isochrone limits")
	seed        = flag.Int64("seed", 42, "random seed")
	workers     = flag.Int("workers", runtime.NumCPU(), "concurrent queries")
	outFile     = flag.String("out", "rand_isochrone_queries_result.csv", "result csv")
	metricsFile = flag.String("metrics_file", "", "write query metrics in prometheus text format to this file")
)

type queryParam struct {
	row   int
	from  da.Index
	limit float64
}

type queryResult struct {
	queryParam
	fastNodes     int
	dijkstraNodes int
	mismatches    int
	fastTook      time.Duration
	dijkstraTook  time.Duration
}

func main() {
	flag.Parse()
	logger, err := log.New()
	if err != nil {
		panic(err)
	}
	if err := util.ReadConfig(*configPath); err != nil {
		logger.Warn("no config file, using defaults", zap.Error(err))
	}
	cfg, err := util.LoadFastIsochroneConfig()
	if err != nil {
		panic(err)
	}
	weighting, ok := costfunction.NewWeighting(cfg.Weighting)
	if !ok {
		panic(fmt.Sprintf("unknown weighting %s", cfg.Weighting))
	}

	limits, err := parseLimits(*limitsFlag)
	if err != nil {
		panic(err)
	}

	g, err := da.ReadGraph(filepath.Join(cfg.StorageDir, pkg.GRAPH_FILE))
	if err != nil {
		panic(err)
	}
	s, err := preprocessor.LoadStorages(storage.NewDirectory(cfg.StorageDir), g.NumberOfVertices(), weighting)
	if err != nil {
		panic(err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "fastisochrone")

	rng := rand.New(rand.NewSource(*seed))
	queries := make([]queryParam, 0, *numQueries*len(limits))
	for i := 0; i < *numQueries; i++ {
		from := da.Index(rng.Intn(g.NumberOfVertices()))
		for _, limit := range limits {
			queries = append(queries, queryParam{row: len(queries), from: from, limit: limit})
		}
	}

	calcIsochrone := func(ctx context.Context, p queryParam) (queryResult, error) {
		before := time.Now()
		alg := isochrone.NewFastIsochroneAlgorithm(g, weighting, s.IsoNodes, s.CellStorage, s.EccStorage,
			s.DistStorage, nil)
		alg.SetPhaseObserver(m)
		res, err := alg.CalcIsochroneNodes(ctx, p.from, p.limit)
		if err != nil {
			m.RecordQuery(err, 0, 0)
			return queryResult{}, err
		}
		m.RecordQuery(nil, len(res.GetActiveCellMaps()), len(res.GetFullyReachableCells()))
		fastTook := time.Since(before)
		reachable := res.ReachableNodes()

		before = time.Now()
		want := isochrone.BoundedDijkstra(g, weighting, nil, p.from, p.limit)
		dijkstraTook := time.Since(before)

		mismatches := len(want) - len(reachable)
		for _, v := range reachable {
			if _, ok := want[v]; !ok {
				mismatches += 2
			}
		}

		if (p.row+1)%1000 == 0 {
			logger.Sugar().Infof("done query %v", p.row+1)
		}
		return queryResult{
			queryParam:    p,
			fastNodes:     len(reachable),
			dijkstraNodes: len(want),
			mismatches:    mismatches,
			fastTook:      fastTook,
			dijkstraTook:  dijkstraTook,
		}, nil
	}

	wp := concurrent.NewWorkerPool[queryParam, queryResult](*workers, len(queries), len(queries))
	wp.Start(context.Background(), calcIsochrone)
	for _, q := range queries {
		wp.AddJob(q)
	}
	wp.Close()
	if err := wp.Wait(); err != nil {
		panic(err)
	}

	results := make([]queryResult, len(queries))
	for r := range wp.CollectResults() {
		results[r.row] = r
	}

	fout, err := os.Create(*outFile)
	if err != nil {
		panic(err)
	}
	defer fout.Close()
	w := bufio.NewWriter(fout)
	defer w.Flush()

	fmt.Fprintln(w, "from limit fast_nodes dijkstra_nodes mismatches fast_us dijkstra_us")
	var fastTotal, dijkstraTotal time.Duration
	wrong := 0
	for _, r := range results {
		fmt.Fprintf(w, "%d %s %d %d %d %d %d\n", r.from, strconv.FormatFloat(r.limit, 'f', -1, 64),
			r.fastNodes, r.dijkstraNodes, r.mismatches, r.fastTook.Microseconds(), r.dijkstraTook.Microseconds())
		fastTotal += r.fastTook
		dijkstraTotal += r.dijkstraTook
		if r.mismatches != 0 {
			wrong++
		}
	}

	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			panic(err)
		}
	}

	n := time.Duration(max(len(results), 1))
	logger.Info("random isochrone queries done", zap.Int("queries", len(results)), zap.Int("wrong", wrong),
		zap.Duration("avgFast", fastTotal/n), zap.Duration("avgDijkstra", dijkstraTotal/n))
}

func parseLimits(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	limits := make([]float64, 0, len(fields))
	for _, f := range fields {
		limit, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		limits = append(limits, limit)
	}
	return limits, nil
}

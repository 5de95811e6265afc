package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"
)

func main() {
	var (
		scale    = flag.Int("n", 200_000, "number of keys to load before running workloads")
		csvPath  = flag.String("csv", "flexbench_results.csv", "output CSV path")
		chart    = flag.String("chart", "flexbench_latency.png", "output chart path (empty to skip)")
		dataDir  = flag.String("pebble-dir", "flexbench_pebble_data", "scratch directory for the Pebble baseline")
	)
	flag.Parse()

	f, err := os.Create(*csvPath)
	if err != nil {
		log.Fatalf("flexbench: create %s: %v", *csvPath, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"Structure", "Config", "Operation", "LatencyNs", "MemMB", "HeapObjects"})

	var results []BenchResult
	record := func(res BenchResult) {
		results = append(results, res)
		Record(w, res)
	}

	fmt.Printf("flextree suite (n=%d)\n", *scale)
	runSuite(record, "flextree", "default", newFlexIndex(), *scale)

	_ = os.RemoveAll(*dataDir)
	pb, err := openPebble(*dataDir)
	if err != nil {
		log.Fatalf("flexbench: %v", err)
	}
	fmt.Printf("pebble suite (n=%d)\n", *scale)
	runSuite(record, "pebble", "default", pb, *scale)
	os.RemoveAll(*dataDir)

	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("flexbench: write csv: %v", err)
	}
	fmt.Printf("Benchmark complete, %d rows written to %s\n", len(results), *csvPath)

	if *chart != "" {
		if err := renderLatencyChart(results, *chart); err != nil {
			log.Fatalf("flexbench: %v", err)
		}
		fmt.Printf("Chart written to %s\n", *chart)
	}
}

func runSuite(record func(BenchResult), name, conf string, idx Index, n int) {
	defer idx.Close()

	r := rand.New(rand.NewSource(7))
	keyPool := make([][]byte, n)
	for i := range keyPool {
		keyPool[i] = randomKey(r)
	}

	start := time.Now()
	for _, key := range keyPool {
		if err := idx.Insert(key, []byte("v")); err != nil {
			log.Fatalf("flexbench: %s insert: %v", name, err)
		}
	}
	loadLatency := time.Since(start).Nanoseconds() / int64(n)

	stats := GetDetailedMem()
	record(BenchResult{
		Name:      name,
		Config:    conf,
		Operation: "Footprint_SteadyState",
		LatencyNs: loadLatency,
		MemMB:     stats.AllocMB,
		Objects:   stats.HeapObjects,
	})

	workloads := []struct {
		wType WorkloadType
		op    string
		ops   int
	}{
		{OLTP, "Workload_OLTP", n / 2},
		{OLAP, "Workload_OLAP", n / 2},
		{Reporting, "Workload_Range", 100},
	}

	for _, wl := range workloads {
		start = time.Now()
		ExecuteWorkload(idx, wl.wType, wl.ops, keyPool)
		record(BenchResult{
			Name:      name,
			Config:    conf,
			Operation: wl.op,
			LatencyNs: time.Since(start).Nanoseconds() / int64(wl.ops),
			MemMB:     GetDetailedMem().AllocMB,
		})
	}
}

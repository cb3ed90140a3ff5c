package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"tinylsm/pkg/rpc"
)

type BenchmarkResult struct {
	TotalOps      int
	SuccessfulOps int
	FailedOps     int
	Duration      time.Duration
	OpsPerSec     float64
	AvgLatency    time.Duration
	MinLatency    time.Duration
	MaxLatency    time.Duration
}

type benchConfig struct {
	keySize   int
	valueSize int
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "tinylsm server URL")
	ops := flag.Int("ops", 1000, "operations per test")
	concurrency := flag.Int("concurrency", 10, "goroutines for concurrent tests")
	keySize := flag.Int("key-size", 8, "key width of the target store")
	valueSize := flag.Int("value-size", 8, "value width of the target store")
	flag.Parse()

	if *keySize < 8 {
		fmt.Println("ERROR: key-size must be at least 8")
		os.Exit(1)
	}

	client := rpc.NewHTTPStore(*baseURL)
	cfg := benchConfig{keySize: *keySize, valueSize: *valueSize}

	fmt.Println("=== tinylsm Benchmark Test ===")
	fmt.Printf("Target: %s\n", *baseURL)
	fmt.Println()

	// Проверка доступности
	if err := client.Health(); err != nil {
		fmt.Printf("ERROR: Node %s is not available: %v\n", *baseURL, err)
		os.Exit(1)
	}

	fmt.Printf("Test 1: Sequential Writes (%d operations)\n", *ops)
	printResult(run(*ops, 1, func(i int) (bool, error) {
		_, _, err := client.Put(cfg.key(i), cfg.value(i))
		return true, err
	}))

	fmt.Printf("\nTest 2: Sequential Reads (%d operations)\n", *ops)
	printResult(run(*ops, 1, func(i int) (bool, error) {
		_, found, err := client.Get(cfg.key(i))
		return found, err
	}))

	fmt.Printf("\nTest 3: Concurrent Writes (%d operations, %d goroutines)\n", *ops, *concurrency)
	printResult(run(*ops, *concurrency, func(i int) (bool, error) {
		_, _, err := client.Put(cfg.key(*ops+i), cfg.value(i))
		return true, err
	}))

	fmt.Printf("\nTest 4: Concurrent Reads (%d operations, %d goroutines)\n", *ops, *concurrency)
	printResult(run(*ops, *concurrency, func(i int) (bool, error) {
		_, found, err := client.Get(cfg.key(*ops + i))
		return found, err
	}))

	fmt.Printf("\nTest 5: Batched Writes (%d batches of 100)\n", max(*ops/100, 1))
	printResult(run(max(*ops/100, 1), *concurrency, func(i int) (bool, error) {
		records := make([]rpc.BatchRecord, 0, 100)
		for j := 0; j < 100; j++ {
			n := 2*(*ops) + i*100 + j
			records = append(records, rpc.BatchRecord{Key: cfg.key(n), Value: cfg.value(n)})
		}
		return true, client.Batch(records)
	}))

	stats, err := client.Stats()
	if err != nil {
		fmt.Printf("\nERROR: stats: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nStore stats:")
	fmt.Printf("  Keys: %d\n", stats.Keys)
	fmt.Printf("  Sorted runs: %d\n", stats.SSTables)
	fmt.Printf("  On disk: %d bytes\n", stats.OnDiskBytes)
	fmt.Printf("  Space amplification: %.2f\n", stats.SpaceAmp)
	fmt.Printf("  Write amplification: %.2f\n", stats.WriteAmp)

	fmt.Println("\n=== Benchmark Complete ===")
}

func (c benchConfig) key(i int) []byte {
	k := make([]byte, c.keySize)
	binary.BigEndian.PutUint64(k[c.keySize-8:], uint64(i))
	return k
}

func (c benchConfig) value(i int) []byte {
	v := make([]byte, c.valueSize)
	for j := range v {
		v[j] = byte(i + j)
	}
	return v
}

// run splits totalOps across concurrency goroutines. op reports whether the
// operation found what it expected.
func run(totalOps, concurrency int, op func(i int) (bool, error)) BenchmarkResult {
	concurrency = max(concurrency, 1)
	start := time.Now()
	var wg sync.WaitGroup
	var mu sync.Mutex

	successful := 0
	failed := 0
	latencies := make([]time.Duration, 0, totalOps)

	opsPerGoroutine := totalOps / concurrency
	remainder := totalOps % concurrency

	first := 0
	for i := 0; i < concurrency; i++ {
		ops := opsPerGoroutine
		if i < remainder {
			ops++
		}

		wg.Add(1)
		go func(first, ops int) {
			defer wg.Done()

			for j := first; j < first+ops; j++ {
				opStart := time.Now()
				ok, err := op(j)
				latency := time.Since(opStart)

				mu.Lock()
				if err == nil && ok {
					successful++
				} else {
					failed++
				}
				latencies = append(latencies, latency)
				mu.Unlock()
			}
		}(first, ops)
		first += ops
	}

	wg.Wait()
	duration := time.Since(start)

	// Вычисление статистики латентности
	var minLat, maxLat, sum time.Duration
	if len(latencies) > 0 {
		minLat = latencies[0]
		maxLat = latencies[0]
		for _, lat := range latencies {
			minLat = min(minLat, lat)
			maxLat = max(maxLat, lat)
			sum += lat
		}
	}

	var avgLatency time.Duration
	if len(latencies) > 0 {
		avgLatency = sum / time.Duration(len(latencies))
	}

	return BenchmarkResult{
		TotalOps:      totalOps,
		SuccessfulOps: successful,
		FailedOps:     failed,
		Duration:      duration,
		OpsPerSec:     float64(successful) / duration.Seconds(),
		AvgLatency:    avgLatency,
		MinLatency:    minLat,
		MaxLatency:    maxLat,
	}
}

func printResult(result BenchmarkResult) {
	fmt.Printf("  Total Operations: %d\n", result.TotalOps)
	fmt.Printf("  Successful: %d\n", result.SuccessfulOps)
	fmt.Printf("  Failed: %d\n", result.FailedOps)
	fmt.Printf("  Duration: %v\n", result.Duration)
	fmt.Printf("  Operations/sec: %.2f\n", result.OpsPerSec)
	fmt.Printf("  Avg Latency: %v\n", result.AvgLatency)
	fmt.Printf("  Min Latency: %v\n", result.MinLatency)
	fmt.Printf("  Max Latency: %v\n", result.MaxLatency)
}

// Package parallel provides the chunked parallel loop used by CPU kernels.
package parallel

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig sizes the pool from the number of physical cores.
//
// Element-wise kernels are memory bound, so hyper-threads add little;
// cpuid reports 0 cores on platforms it cannot probe, in which case the
// logical CPU count is used.
func DefaultConfig() Config {
	n := cpuid.CPU.PhysicalCores
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4096,
	}
}

// Sequential returns a configuration that never spawns goroutines.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1, MinChunkSize: 1}
}

// CPUInfo describes the host processor for logging.
func CPUInfo() string {
	if cpuid.CPU.BrandName == "" {
		return runtime.GOARCH
	}
	return cpuid.CPU.BrandName
}

// For calls f(lo, hi) over disjoint ranges covering [0, n).
//
// Every index is visited exactly once, so kernels whose iterations are
// independent produce identical results with or without parallelism.
// Falls back to one sequential call when disabled or when n is small.
func For(n int, cfg Config, f func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*cfg.MinChunkSize {
		f(0, n)
		return
	}

	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			f(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}

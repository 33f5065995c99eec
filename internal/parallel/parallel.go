// Package parallel chunks batch-kernel loops across worker goroutines. The
// CPU encoders process independent batch columns, so the split is over the
// column index; small batches stay sequential to avoid goroutine overhead.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how a kernel loop is split.
type Config struct {
	Workers  int // worker goroutine count
	MinChunk int // minimum columns per worker
}

// Default sizes the split to the machine.
func Default() Config {
	return Config{
		Workers:  runtime.NumCPU(),
		MinChunk: 64,
	}
}

// For executes f(i) for i in [0, n), splitting the range across workers when
// it is large enough. f must be safe to call concurrently for distinct i.
func For(n int, f func(i int), cfg Config) {
	if cfg.Workers <= 1 || n < 2*cfg.MinChunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := (n + cfg.Workers - 1) / cfg.Workers
	if chunk < cfg.MinChunk {
		chunk = cfg.MinChunk
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Columns splits a batch-column loop with the machine default configuration.
func Columns(n int, f func(c int)) {
	For(n, f, Default())
}
